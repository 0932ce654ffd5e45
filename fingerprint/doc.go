// Package fingerprint computes the deterministic digests that the decision
// ledger registers and verifies.
//
// A fingerprint is SHA-256 over a canonical JSON record
//
//	{"inference_params":"<params JSON>","input_hash":"…","model_checksum":"…","model_id":"…","output_value":"…"}
//
// with the outer member names sorted. The inference parameters are first
// serialized on their own and embedded as a string; their members are not
// sorted but enumerated the way a JavaScript engine does after parsing, with
// array-index keys first. Only the outer record is sorted. Changing either
// rule changes every digest ever issued, so both are part of the wire
// contract.
//
// Metadata members that were not sent are left out of the record. An empty
// string or null is kept.
//
// String escaping and number formatting follow ECMAScript JSON.stringify so
// that digests match previously issued fingerprints.
//
// HashInput does not normalize case or whitespace. Callers that want
// normalization must apply it before hashing.
package fingerprint
