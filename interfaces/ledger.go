package interfaces

import (
	"context"
	"fmt"
	"time"
)

// LedgerKind tags which ledger backend is active.
type LedgerKind int

const (
	LedgerOnChain LedgerKind = iota
	LedgerLocal
)

func (k LedgerKind) String() string {
	switch k {
	case LedgerOnChain:
		return "onchain"
	case LedgerLocal:
		return "local"
	default:
		return fmt.Sprintf("LedgerKind(%d)", int(k))
	}
}

// RegisterReceipt is returned by a successful registration. TxHash is empty
// for backends without transactions.
type RegisterReceipt struct {
	TxHash string
}

// VerifyResult is the outcome of comparing a fingerprint against the ledger.
type VerifyResult struct {
	IsValid      bool
	RegisteredAt *time.Time
}

// LedgerBackend stores decision fingerprints. Implementations report failures
// as errors carrying a typed reason (see package ledger); they never panic on
// collaborator failures.
type LedgerBackend interface {
	Kind() LedgerKind

	// Register records the fingerprint for decisionID.
	Register(ctx context.Context, decisionID string, fp Fingerprint, modelID string) (*RegisterReceipt, error)

	// Verify compares fp with the stored fingerprint for decisionID.
	Verify(ctx context.Context, decisionID string, fp Fingerprint) (*VerifyResult, error)

	// Get returns the stored record. An unknown id yields Exists=false, not an error.
	Get(ctx context.Context, decisionID string) (*DecisionRecord, error)
}
