// Package registry provides a client for the AIDecisionRegistry contract,
// the on-chain system of record for decision fingerprints.
//
// The contract exposes three functions:
//
//	function registerDecision(string decisionId, bytes32 fingerprint, string modelId)
//	function verifyDecision(string decisionId, bytes32 providedFingerprint) view returns (bool isValid, uint256 timestamp)
//	function getDecision(string decisionId) view returns (bytes32 fingerprint, uint256 timestamp, string modelId, bool exists)
//
// registerDecision reverts with "Decision already registered" when the id is
// taken, so on-chain records are append-only.
//
// # Transaction Operations
//
// RegisterDecision requires transaction signing. Call SetTransactOpts with a
// keyed transactor before using it:
//
//	client, err := registry.NewClient(ethClient, ethClient, contractAddress)
//	if err != nil {
//	    return err
//	}
//	privateKey, _ := crypto.HexToECDSA("your-private-key")
//	auth, _ := bind.NewKeyedTransactorWithChainID(privateKey, chainID)
//	client.SetTransactOpts(auth)
//
//	tx, err := client.RegisterDecision(ctx, "decision-1", fingerprint, "model-v1")
//	receipt, err := client.WaitMined(ctx, tx)
//
// Read-only operations need no transaction options.
//
// MockRegistry (testify) and MockRegistryClient (in-memory contract
// semantics) stand in for the contract in tests.
package registry
