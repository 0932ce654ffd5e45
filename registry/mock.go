package registry

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ruteri/decision-ledger/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockRegistry mocks the DecisionRegistry interface
type MockRegistry struct {
	mock.Mock
}

// RegisterDecision mocks the RegisterDecision method
func (m *MockRegistry) RegisterDecision(ctx context.Context, decisionID string, fingerprint [32]byte, modelID string) (*types.Transaction, error) {
	args := m.Called(ctx, decisionID, fingerprint, modelID)
	tx, _ := args.Get(0).(*types.Transaction)
	return tx, args.Error(1)
}

// WaitMined mocks the WaitMined method
func (m *MockRegistry) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	args := m.Called(ctx, tx)
	receipt, _ := args.Get(0).(*types.Receipt)
	return receipt, args.Error(1)
}

// VerifyDecision mocks the VerifyDecision method
func (m *MockRegistry) VerifyDecision(ctx context.Context, decisionID string, fingerprint [32]byte) (bool, *big.Int, error) {
	args := m.Called(ctx, decisionID, fingerprint)
	timestamp, _ := args.Get(1).(*big.Int)
	return args.Bool(0), timestamp, args.Error(2)
}

// GetDecision mocks the GetDecision method
func (m *MockRegistry) GetDecision(ctx context.Context, decisionID string) (*interfaces.OnchainDecision, error) {
	args := m.Called(ctx, decisionID)
	decision, _ := args.Get(0).(*interfaces.OnchainDecision)
	return decision, args.Error(1)
}

// Address mocks the Address method
func (m *MockRegistry) Address() interfaces.ContractAddress {
	args := m.Called()
	return args.Get(0).(interfaces.ContractAddress)
}
