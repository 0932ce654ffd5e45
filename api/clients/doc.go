// Package clients provides a Go client for the decision ledger HTTP API.
package clients
