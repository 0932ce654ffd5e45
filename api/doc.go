/*
Package api holds the wire types and server configuration of the decision
ledger HTTP API, and (in clients) a Go client for it.

# Endpoints

	GET  /health              service and ledger status
	POST /api/inference       {text} -> prediction and model metadata
	POST /api/generate-proof  fingerprint a decision and register it on the ledger
	POST /api/verify          recompute a fingerprint and compare it with the ledger

Errors use the envelope {"error", "details", "timestamp"}; see package apierr.
*/
package api
