package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ruteri/decision-ledger/interfaces"
	"github.com/ruteri/decision-ledger/registry"
)

// Config holds the connection parameters of the on-chain ledger.
type Config struct {
	// ContractAddress is the hex address of the AIDecisionRegistry contract.
	ContractAddress string

	// RPCURL is the JSON-RPC endpoint of the node.
	RPCURL string

	// PrivateKey is the hex-encoded secp256k1 key used to sign registrations.
	PrivateKey string

	// Timeout bounds each ledger call. Zero leaves calls unbounded.
	Timeout time.Duration
}

// New returns an OnChainLedger if one can be initialized from cfg, and a
// LocalLedger otherwise. The choice is final for the process lifetime.
func New(ctx context.Context, cfg *Config, log *slog.Logger) interfaces.LedgerBackend {
	onchain, err := NewOnChainLedgerFromConfig(ctx, cfg, log)
	if err != nil {
		log.Warn("Blockchain unavailable, running with local fallback ledger", "err", err)
		return NewLocalLedger()
	}
	return onchain
}

// NewOnChainLedgerFromConfig dials the RPC endpoint, checks that the chain is
// reachable and that code is deployed at the contract address, and sets up a
// keyed transactor.
func NewOnChainLedgerFromConfig(ctx context.Context, cfg *Config, log *slog.Logger) (*OnChainLedger, error) {
	if cfg.ContractAddress == "" {
		return nil, fmt.Errorf("%w: missing contract address", ErrNotConfigured)
	}
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("%w: missing RPC URL", ErrNotConfigured)
	}
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", cfg.ContractAddress)
	}
	if cfg.PrivateKey == "" {
		return nil, ErrNoSigningKey
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid signing key: %w", err)
	}

	address := common.HexToAddress(cfg.ContractAddress)

	log.Info("Connecting to Ethereum RPC", "address", cfg.RPCURL)
	ethClient, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("could not dial RPC: %w", err)
	}

	chainID, err := ethClient.ChainID(ctx)
	if err != nil {
		ethClient.Close()
		return nil, fmt.Errorf("could not read chain id: %w", err)
	}

	code, err := ethClient.CodeAt(ctx, address, nil)
	if err != nil {
		ethClient.Close()
		return nil, fmt.Errorf("could not read contract code: %w", err)
	}
	if len(code) == 0 {
		ethClient.Close()
		return nil, fmt.Errorf("no contract deployed at %s", address.Hex())
	}

	auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		ethClient.Close()
		return nil, fmt.Errorf("could not create transactor: %w", err)
	}

	client, err := registry.NewClient(ethClient, ethClient, address)
	if err != nil {
		ethClient.Close()
		return nil, err
	}
	client.SetTransactOpts(auth)

	log.Info("Connected to blockchain",
		"contract", address.Hex(),
		"signer", auth.From.Hex(),
		"chainId", chainID.String())

	return NewOnChainLedger(client, log, cfg.Timeout), nil
}
