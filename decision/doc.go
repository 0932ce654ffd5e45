// Package decision orchestrates fingerprinting and the ledger backend to
// generate and verify decision proofs.
//
// Ledger failures never fail a request. GenerateProof and VerifyDecision
// return a record with the ledger error attached as text, so a caller can
// tell a failed request (an error return) from a successful request whose
// ledger write or read degraded (a populated LedgerError).
//
// Verification always recomputes the fingerprint from the claimed values and
// never mutates the ledger. Its Outcome separates a mismatch (tampered) from
// an unknown id (not_found); IsValid is true only for authentic decisions.
package decision
