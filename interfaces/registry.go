package interfaces

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
)

// OnchainDecision mirrors the getDecision return tuple of the registry contract.
type OnchainDecision struct {
	Fingerprint [32]byte
	Timestamp   *big.Int
	ModelID     string
	Exists      bool
}

// DecisionRegistry is the client surface of the AIDecisionRegistry contract.
//
// RegisterDecision sends a transaction and returns once it is submitted;
// WaitMined blocks until the transaction is included and returns its receipt.
// VerifyDecision and GetDecision are read-only calls.
type DecisionRegistry interface {
	RegisterDecision(ctx context.Context, decisionID string, fingerprint [32]byte, modelID string) (*types.Transaction, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
	VerifyDecision(ctx context.Context, decisionID string, fingerprint [32]byte) (bool, *big.Int, error)
	GetDecision(ctx context.Context, decisionID string) (*OnchainDecision, error)
	Address() ContractAddress
}
