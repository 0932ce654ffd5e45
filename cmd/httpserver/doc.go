// Command httpserver runs the decision ledger API.
//
// The server fingerprints AI decisions, registers them on the AIDecisionRegistry
// contract and verifies claimed decisions against it. When the contract,
// RPC endpoint or signing key is missing or unusable at startup, it runs for
// its whole lifetime on an in-memory ledger instead and says so in every
// response.
//
// Every flag can also be set through its environment variable:
//
//	CONTRACT_ADDRESS=0x5FbDB2315678afecb367f032d93F642f64180aa3 \
//	RPC_URL=http://127.0.0.1:8545 \
//	PRIVATE_KEY=... \
//	AI_SERVICE_URL=http://127.0.0.1:5000 \
//	PORT=3001 \
//	    httpserver --log-json
//
// Setting REDIS_ADDR shares the per-client rate limit between replicas.
package main
