package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ruteri/decision-ledger/interfaces"
)

// OnChainLedger implements interfaces.LedgerBackend on the registry contract.
type OnChainLedger struct {
	registry interfaces.DecisionRegistry
	log      *slog.Logger
	timeout  time.Duration
}

// NewOnChainLedger wraps a contract client. A non-zero timeout bounds every
// call, including the wait for a registration receipt.
func NewOnChainLedger(registry interfaces.DecisionRegistry, log *slog.Logger, timeout time.Duration) *OnChainLedger {
	return &OnChainLedger{
		registry: registry,
		log:      log,
		timeout:  timeout,
	}
}

func (l *OnChainLedger) Kind() interfaces.LedgerKind {
	return interfaces.LedgerOnChain
}

// ContractAddress returns the address of the backing contract.
func (l *OnChainLedger) ContractAddress() interfaces.ContractAddress {
	return l.registry.Address()
}

func (l *OnChainLedger) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, l.timeout)
}

// Register sends registerDecision and waits for it to be mined.
func (l *OnChainLedger) Register(ctx context.Context, decisionID string, fp interfaces.Fingerprint, modelID string) (*interfaces.RegisterReceipt, error) {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	tx, err := l.registry.RegisterDecision(ctx, decisionID, fp, modelID)
	if err != nil {
		return nil, classify("register", err)
	}

	l.log.Debug("Submitted decision registration",
		slog.String("decisionId", decisionID),
		slog.String("txHash", tx.Hash().Hex()))

	receipt, err := l.registry.WaitMined(ctx, tx)
	if err != nil {
		return nil, classify("register", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, &Error{
			Op:     "register",
			Reason: ReasonReverted,
			Err:    fmt.Errorf("transaction %s reverted", tx.Hash().Hex()),
		}
	}

	return &interfaces.RegisterReceipt{TxHash: tx.Hash().Hex()}, nil
}

// Verify calls verifyDecision. It never changes local state.
func (l *OnChainLedger) Verify(ctx context.Context, decisionID string, fp interfaces.Fingerprint) (*interfaces.VerifyResult, error) {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	isValid, timestamp, err := l.registry.VerifyDecision(ctx, decisionID, fp)
	if err != nil {
		return nil, classify("verify", err)
	}

	return &interfaces.VerifyResult{
		IsValid:      isValid,
		RegisteredAt: blockTime(timestamp),
	}, nil
}

// Get calls getDecision.
func (l *OnChainLedger) Get(ctx context.Context, decisionID string) (*interfaces.DecisionRecord, error) {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	decision, err := l.registry.GetDecision(ctx, decisionID)
	if err != nil {
		return nil, classify("get", err)
	}

	return &interfaces.DecisionRecord{
		DecisionID:   decisionID,
		Fingerprint:  interfaces.Fingerprint(decision.Fingerprint),
		ModelID:      decision.ModelID,
		RegisteredAt: blockTime(decision.Timestamp),
		Exists:       decision.Exists,
	}, nil
}

// blockTime converts a uint256 unix timestamp; zero means unset.
func blockTime(ts *big.Int) *time.Time {
	if ts == nil || ts.Sign() <= 0 || !ts.IsInt64() {
		return nil
	}
	t := time.Unix(ts.Int64(), 0).UTC()
	return &t
}
