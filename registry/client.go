package registry

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ruteri/decision-ledger/interfaces"
)

// ErrNoTransactOpts is returned when a transaction is attempted without first setting transaction options.
var ErrNoTransactOpts = errors.New("no authorized transactor available")

// Client implements interfaces.DecisionRegistry against a deployed
// AIDecisionRegistry contract.
type Client struct {
	contract *bind.BoundContract
	backend  bind.DeployBackend
	address  common.Address
	auth     *bind.TransactOpts
}

// NewClient creates a client for the contract at address. The ContractBackend
// is used for calls and transactions, the DeployBackend for waiting on receipts.
func NewClient(client bind.ContractBackend, backend bind.DeployBackend, address common.Address) (*Client, error) {
	parsed, err := ParsedABI()
	if err != nil {
		return nil, fmt.Errorf("could not parse registry ABI: %w", err)
	}

	return &Client{
		contract: bind.NewBoundContract(address, parsed, client, client, client),
		backend:  backend,
		address:  address,
	}, nil
}

// SetTransactOpts sets the transaction options required for RegisterDecision.
func (c *Client) SetTransactOpts(auth *bind.TransactOpts) {
	c.auth = auth
}

// Address returns the contract address.
func (c *Client) Address() interfaces.ContractAddress {
	return interfaces.ContractAddress(c.address)
}

// RegisterDecision submits a registerDecision transaction.
func (c *Client) RegisterDecision(ctx context.Context, decisionID string, fingerprint [32]byte, modelID string) (*types.Transaction, error) {
	if c.auth == nil {
		return nil, ErrNoTransactOpts
	}

	opts := *c.auth
	opts.Context = ctx
	return c.contract.Transact(&opts, MethodRegisterDecision, decisionID, fingerprint, modelID)
}

// WaitMined blocks until tx is included in a block and returns its receipt.
func (c *Client) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return bind.WaitMined(ctx, c.backend, tx)
}

// VerifyDecision calls verifyDecision and returns the validity flag and the
// registration timestamp in seconds.
func (c *Client) VerifyDecision(ctx context.Context, decisionID string, fingerprint [32]byte) (bool, *big.Int, error) {
	var out []interface{}
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, MethodVerifyDecision, decisionID, fingerprint)
	if err != nil {
		return false, nil, err
	}
	if len(out) != 2 {
		return false, nil, fmt.Errorf("unexpected %s output length %d", MethodVerifyDecision, len(out))
	}

	isValid := *abi.ConvertType(out[0], new(bool)).(*bool)
	timestamp := *abi.ConvertType(out[1], new(*big.Int)).(**big.Int)
	return isValid, timestamp, nil
}

// GetDecision calls getDecision.
func (c *Client) GetDecision(ctx context.Context, decisionID string) (*interfaces.OnchainDecision, error) {
	var out []interface{}
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, MethodGetDecision, decisionID)
	if err != nil {
		return nil, err
	}
	if len(out) != 4 {
		return nil, fmt.Errorf("unexpected %s output length %d", MethodGetDecision, len(out))
	}

	return &interfaces.OnchainDecision{
		Fingerprint: *abi.ConvertType(out[0], new([32]byte)).(*[32]byte),
		Timestamp:   *abi.ConvertType(out[1], new(*big.Int)).(**big.Int),
		ModelID:     *abi.ConvertType(out[2], new(string)).(*string),
		Exists:      *abi.ConvertType(out[3], new(bool)).(*bool),
	}, nil
}
