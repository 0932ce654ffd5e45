// Package ledger implements the two LedgerBackend variants and the startup
// policy that chooses between them.
//
// OnChainLedger delegates to the AIDecisionRegistry contract through an
// interfaces.DecisionRegistry. Registration waits for the transaction
// receipt. The contract rejects duplicate decision ids.
//
// LocalLedger is the degraded-mode fallback: a process-local map with no
// durability and no duplicate protection. Registering an existing id
// overwrites it (last writer wins). Callers that need append-only semantics
// must check Kind() and treat LedgerLocal records accordingly.
//
// New attempts to connect to the contract once. On any failure it logs the
// cause and returns a LocalLedger for the rest of the process lifetime; there
// is no retry and no later promotion back to the chain.
//
// All failures are returned as *Error values carrying a Reason, so callers
// can branch on the kind of failure with errors.As or ReasonOf.
package ledger
