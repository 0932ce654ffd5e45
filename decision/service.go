package decision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ruteri/decision-ledger/fingerprint"
	"github.com/ruteri/decision-ledger/interfaces"
	"github.com/ruteri/decision-ledger/ledger"
	"github.com/ruteri/decision-ledger/metrics"
)

// ErrInvalidInput is returned when a decision cannot be fingerprinted.
var ErrInvalidInput = errors.New("invalid decision input")

// Ledger notices reported in LedgerError when running on the local fallback.
const (
	MsgLocalRegistered = "blockchain not connected - decision stored in local fallback ledger, which does not reject duplicate ids"
	MsgLocalVerified   = "blockchain not connected - running in local fallback mode"
	MsgLocalNotFound   = "decision not found in local fallback ledger"
)

// Outcome is the result of a single verification. It is never persisted.
type Outcome string

const (
	OutcomeAuthentic Outcome = "authentic"
	OutcomeTampered  Outcome = "tampered"
	OutcomeNotFound  Outcome = "not_found"
	// OutcomeUnverified means the ledger could not be consulted.
	OutcomeUnverified Outcome = "unverified"
)

// ProofRequest is the input of GenerateProof. An empty DecisionID is replaced
// with a generated one.
type ProofRequest struct {
	InputText     string
	OutputValue   string
	ModelMetadata interfaces.ModelMetadata
	DecisionID    string
}

// ProofRecord is the result of GenerateProof.
type ProofRecord struct {
	DecisionID    string
	Fingerprint   interfaces.Fingerprint
	InputHash     string
	StoredOnChain bool
	TxHash        string
	LedgerError   string
}

// VerifyRequest is the input of VerifyDecision.
type VerifyRequest struct {
	DecisionID    string
	InputText     string
	OutputValue   string
	ModelMetadata interfaces.ModelMetadata
}

// VerificationRecord is the result of VerifyDecision.
type VerificationRecord struct {
	DecisionID          string
	ProvidedFingerprint interfaces.Fingerprint
	StoredFingerprint   *interfaces.Fingerprint
	IsValid             bool
	RegisteredAt        *time.Time
	Outcome             Outcome
	LedgerConnected     bool
	LedgerError         string
}

// Service generates and verifies proofs against a single ledger backend
// chosen at startup.
type Service struct {
	ledger  interfaces.LedgerBackend
	metrics *metrics.Metrics
	log     *slog.Logger

	now   func() time.Time
	newID func(time.Time) string
}

// NewService creates a Service. metrics may be nil.
func NewService(backend interfaces.LedgerBackend, m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{
		ledger:  backend,
		metrics: m,
		log:     log,
		now:     time.Now,
		newID:   NewDecisionID,
	}
}

// LedgerKind reports which backend the service runs on.
func (s *Service) LedgerKind() interfaces.LedgerKind {
	return s.ledger.Kind()
}

func (s *Service) fingerprint(inputText, outputValue string, meta interfaces.ModelMetadata) (string, interfaces.Fingerprint, error) {
	inputHash := fingerprint.HashInput(inputText)
	fp, err := fingerprint.Compute(interfaces.NewFingerprintInput(inputHash, outputValue, meta))
	if err != nil {
		return "", interfaces.Fingerprint{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return inputHash, fp, nil
}

// GenerateProof fingerprints the decision and registers it. Only a failure to
// compute the fingerprint is returned as an error.
func (s *Service) GenerateProof(ctx context.Context, req ProofRequest) (*ProofRecord, error) {
	inputHash, fp, err := s.fingerprint(req.InputText, req.OutputValue, req.ModelMetadata)
	if err != nil {
		return nil, err
	}

	decisionID := req.DecisionID
	if decisionID == "" {
		decisionID = s.newID(s.now())
	}

	rec := &ProofRecord{
		DecisionID:  decisionID,
		Fingerprint: fp,
		InputHash:   inputHash,
	}

	receipt, err := s.ledger.Register(ctx, decisionID, fp, req.ModelMetadata.ID())
	if err != nil {
		s.log.Error("Ledger registration failed", "err", err,
			slog.String("decisionId", decisionID),
			slog.String("ledger", s.ledger.Kind().String()))
		s.metrics.LedgerError("register", ledger.ReasonOf(err).String())
		rec.LedgerError = err.Error()
	}

	switch kind := s.ledger.Kind(); kind {
	case interfaces.LedgerOnChain:
		if err == nil {
			rec.StoredOnChain = true
			rec.TxHash = receipt.TxHash
		}
	case interfaces.LedgerLocal:
		if err == nil {
			rec.LedgerError = MsgLocalRegistered
		}
	default:
		return nil, fmt.Errorf("unsupported ledger kind %s", kind)
	}

	s.metrics.ProofGenerated(rec.StoredOnChain)
	s.log.Info("Generated decision proof",
		slog.String("decisionId", decisionID),
		slog.String("fingerprint", fp.String()),
		slog.Bool("storedOnChain", rec.StoredOnChain))

	return rec, nil
}

// VerifyDecision recomputes the fingerprint from the claimed values and
// checks it against the ledger.
func (s *Service) VerifyDecision(ctx context.Context, req VerifyRequest) (*VerificationRecord, error) {
	_, fp, err := s.fingerprint(req.InputText, req.OutputValue, req.ModelMetadata)
	if err != nil {
		return nil, err
	}

	kind := s.ledger.Kind()
	rec := &VerificationRecord{
		DecisionID:          req.DecisionID,
		ProvidedFingerprint: fp,
	}

	switch kind {
	case interfaces.LedgerOnChain:
		rec.LedgerConnected = true
	case interfaces.LedgerLocal:
		rec.LedgerConnected = false
	default:
		return nil, fmt.Errorf("unsupported ledger kind %s", kind)
	}

	result, err := s.ledger.Verify(ctx, req.DecisionID, fp)
	switch {
	case err != nil && ledger.IsNotFound(err):
		rec.Outcome = OutcomeNotFound
		rec.LedgerError = err.Error()
		if kind == interfaces.LedgerLocal {
			rec.LedgerError = MsgLocalNotFound
		}
	case err != nil:
		s.log.Error("Ledger verification failed", "err", err, slog.String("decisionId", req.DecisionID))
		s.metrics.LedgerError("verify", ledger.ReasonOf(err).String())
		rec.Outcome = OutcomeUnverified
		rec.LedgerError = err.Error()
	default:
		rec.IsValid = result.IsValid
		rec.RegisteredAt = result.RegisteredAt
		rec.Outcome = s.lookupStored(ctx, rec)
		if kind == interfaces.LedgerLocal && rec.LedgerError == "" {
			rec.LedgerError = MsgLocalVerified
		}
	}

	s.metrics.Verification(string(rec.Outcome))
	s.log.Info("Verified decision",
		slog.String("decisionId", req.DecisionID),
		slog.String("outcome", string(rec.Outcome)))

	return rec, nil
}

// lookupStored fills in the stored fingerprint for display and derives the
// outcome of a verification that the ledger answered.
func (s *Service) lookupStored(ctx context.Context, rec *VerificationRecord) Outcome {
	stored, err := s.ledger.Get(ctx, rec.DecisionID)
	if err != nil {
		s.log.Warn("Could not read stored decision", "err", err, slog.String("decisionId", rec.DecisionID))
		s.metrics.LedgerError("get", ledger.ReasonOf(err).String())
		rec.LedgerError = err.Error()
	} else if stored.Exists {
		fp := stored.Fingerprint
		rec.StoredFingerprint = &fp
	}

	switch {
	case rec.IsValid:
		return OutcomeAuthentic
	case err == nil && !stored.Exists:
		return OutcomeNotFound
	default:
		return OutcomeTampered
	}
}
