package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ruteri/decision-ledger/registry"
)

// ErrNotFound is wrapped by errors for decision ids the ledger does not know.
var ErrNotFound = errors.New("decision not found")

// ErrNotConfigured is returned by NewOnChainLedgerFromConfig when the
// contract address or RPC endpoint is missing.
var ErrNotConfigured = errors.New("blockchain not configured")

// ErrNoSigningKey is returned when no PRIVATE_KEY is set. Accounts unlocked on
// the RPC node are never used for signing.
var ErrNoSigningKey = errors.New("no signing key configured: set PRIVATE_KEY, unlocked node accounts are not used")

// Reason classifies a ledger failure.
type Reason int

const (
	ReasonUnknown Reason = iota
	// ReasonRPC is a transport or node error.
	ReasonRPC
	// ReasonSigner is a missing or unusable signing identity.
	ReasonSigner
	// ReasonDuplicate is a registration of an id that already exists.
	ReasonDuplicate
	// ReasonNotFound is a lookup of an unknown id.
	ReasonNotFound
	// ReasonReverted is any other contract revert, including failed receipts.
	ReasonReverted
	// ReasonTimeout is a call abandoned by its deadline. The transaction may
	// still be mined later.
	ReasonTimeout
)

func (r Reason) String() string {
	switch r {
	case ReasonRPC:
		return "rpc"
	case ReasonSigner:
		return "signer"
	case ReasonDuplicate:
		return "duplicate"
	case ReasonNotFound:
		return "not_found"
	case ReasonReverted:
		return "reverted"
	case ReasonTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is a failed ledger operation.
type Error struct {
	Op     string
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ReasonOf returns the Reason of a ledger error, or ReasonUnknown.
func ReasonOf(err error) Reason {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.Reason
	}
	return ReasonUnknown
}

// IsNotFound reports whether err is a ledger not-found failure.
func IsNotFound(err error) bool {
	return ReasonOf(err) == ReasonNotFound
}

var signerErrors = []string{
	"insufficient funds",
	"invalid sender",
	"unknown account",
	"authentication needed",
}

// classify wraps an error from the contract client into an *Error.
func classify(op string, err error) *Error {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr
	}

	reason := ReasonRPC
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, registry.ErrNoTransactOpts):
		reason = ReasonSigner
	case errors.Is(err, context.DeadlineExceeded):
		reason = ReasonTimeout
	case strings.Contains(msg, "already registered"):
		reason = ReasonDuplicate
	case strings.Contains(msg, "decision not found"):
		reason = ReasonNotFound
	case strings.Contains(msg, "execution reverted"):
		reason = ReasonReverted
	default:
		for _, s := range signerErrors {
			if strings.Contains(msg, s) {
				reason = ReasonSigner
				break
			}
		}
	}
	return &Error{Op: op, Reason: reason, Err: err}
}
