package ledger

import (
	"context"
	"sync"

	"github.com/ruteri/decision-ledger/interfaces"
)

type localEntry struct {
	fingerprint interfaces.Fingerprint
	modelID     string
}

// LocalLedger is the in-process fallback backend. Registration overwrites any
// previous entry for the same id. Nothing is persisted and no registration
// time is kept.
type LocalLedger struct {
	mu      sync.RWMutex
	entries map[string]localEntry
}

// NewLocalLedger creates an empty local ledger.
func NewLocalLedger() *LocalLedger {
	return &LocalLedger{
		entries: make(map[string]localEntry),
	}
}

func (l *LocalLedger) Kind() interfaces.LedgerKind {
	return interfaces.LedgerLocal
}

// Register stores fp under decisionID, replacing any existing entry.
func (l *LocalLedger) Register(ctx context.Context, decisionID string, fp interfaces.Fingerprint, modelID string) (*interfaces.RegisterReceipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[decisionID] = localEntry{fingerprint: fp, modelID: modelID}
	return &interfaces.RegisterReceipt{}, nil
}

// Verify compares fp with the stored fingerprint byte for byte. For an
// unknown id it returns an invalid result together with a ReasonNotFound error.
func (l *LocalLedger) Verify(ctx context.Context, decisionID string, fp interfaces.Fingerprint) (*interfaces.VerifyResult, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entry, ok := l.entries[decisionID]
	if !ok {
		return &interfaces.VerifyResult{IsValid: false}, &Error{Op: "verify", Reason: ReasonNotFound, Err: ErrNotFound}
	}
	return &interfaces.VerifyResult{IsValid: entry.fingerprint == fp}, nil
}

// Get returns the stored entry, or Exists=false.
func (l *LocalLedger) Get(ctx context.Context, decisionID string) (*interfaces.DecisionRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entry, ok := l.entries[decisionID]
	if !ok {
		return &interfaces.DecisionRecord{DecisionID: decisionID}, nil
	}
	return &interfaces.DecisionRecord{
		DecisionID:  decisionID,
		Fingerprint: entry.fingerprint,
		ModelID:     entry.modelID,
		Exists:      true,
	}, nil
}

// Len returns the number of stored decisions.
func (l *LocalLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
