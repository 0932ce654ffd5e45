// Package interfaces defines the core types and contracts of the decision
// ledger, separating them from their implementations.
//
// # Ledger
//
// LedgerBackend is the storage system of record for decision fingerprints.
// It is a tagged variant over two kinds, chosen once at startup:
//
//   - LedgerOnChain: an AIDecisionRegistry contract. Records are immutable and
//     a duplicate decision id is rejected by the contract.
//   - LedgerLocal: a process-local map. Records live for the process lifetime
//     and a repeated decision id overwrites the previous entry.
//
// DecisionRegistry is the narrower contract-client surface that the on-chain
// backend delegates to.
//
// # Fingerprints
//
// Fingerprint is a 32-byte SHA-256 digest over the canonical encoding of a
// FingerprintInput. On the contract boundary it is a bytes32 value, written as
// 0x-prefixed hex.
//
// # Inference
//
// InferenceProvider is the request/response boundary to the AI service:
// text in, prediction and model metadata out.
package interfaces
