package registry

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ruteri/decision-ledger/interfaces"
)

// Revert reasons of the AIDecisionRegistry contract.
const (
	RevertAlreadyRegistered = "Decision already registered"
	RevertNotFound          = "Decision not found"
)

// MockRegistryClient provides an in-memory implementation of the DecisionRegistry
// interface with the contract's semantics: duplicate ids are rejected and
// records carry the registration time. It needs no blockchain connection.
// The client starts in a read-only state - call SetTransactOpts to enable registration.
type MockRegistryClient struct {
	mutex            sync.RWMutex
	decisions        map[string]interfaces.OnchainDecision
	pending          map[common.Hash]string
	nonce            uint64
	address          interfaces.ContractAddress
	allowTransacting bool

	// Now returns the block time used for new records.
	Now func() time.Time
}

// NewMockRegistryClient creates a new mock registry client with empty initial state.
func NewMockRegistryClient(address interfaces.ContractAddress) *MockRegistryClient {
	return &MockRegistryClient{
		decisions: make(map[string]interfaces.OnchainDecision),
		pending:   make(map[common.Hash]string),
		address:   address,
		Now:       time.Now,
	}
}

// SetTransactOpts enables registration on the mock client.
func (m *MockRegistryClient) SetTransactOpts() {
	m.allowTransacting = true
}

// Address returns the configured contract address.
func (m *MockRegistryClient) Address() interfaces.ContractAddress {
	return m.address
}

// RegisterDecision stores the decision, or fails with the contract's revert
// reason if the id is already registered.
func (m *MockRegistryClient) RegisterDecision(ctx context.Context, decisionID string, fingerprint [32]byte, modelID string) (*types.Transaction, error) {
	if !m.allowTransacting {
		return nil, ErrNoTransactOpts
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.decisions[decisionID]; exists {
		return nil, errors.New("execution reverted: " + RevertAlreadyRegistered)
	}

	m.decisions[decisionID] = interfaces.OnchainDecision{
		Fingerprint: fingerprint,
		Timestamp:   big.NewInt(m.Now().Unix()),
		ModelID:     modelID,
		Exists:      true,
	}

	m.nonce++
	tx := types.NewTx(&types.LegacyTx{
		Nonce: m.nonce,
		Data:  append([]byte(decisionID), fingerprint[:]...),
	})
	m.pending[tx.Hash()] = decisionID
	return tx, nil
}

// WaitMined returns a successful receipt for transactions created by this client.
func (m *MockRegistryClient) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, ok := m.pending[tx.Hash()]; !ok {
		return nil, errors.New("unknown transaction")
	}
	delete(m.pending, tx.Hash())

	return &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		TxHash: tx.Hash(),
	}, nil
}

// VerifyDecision reports whether fingerprint matches the stored one.
func (m *MockRegistryClient) VerifyDecision(ctx context.Context, decisionID string, fingerprint [32]byte) (bool, *big.Int, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	decision, exists := m.decisions[decisionID]
	if !exists {
		return false, nil, errors.New("execution reverted: " + RevertNotFound)
	}
	return decision.Fingerprint == fingerprint, new(big.Int).Set(decision.Timestamp), nil
}

// GetDecision returns the stored decision, or a zero record with Exists=false.
func (m *MockRegistryClient) GetDecision(ctx context.Context, decisionID string) (*interfaces.OnchainDecision, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	decision, exists := m.decisions[decisionID]
	if !exists {
		return &interfaces.OnchainDecision{Timestamp: new(big.Int)}, nil
	}
	decision.Timestamp = new(big.Int).Set(decision.Timestamp)
	return &decision, nil
}
