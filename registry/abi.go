package registry

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// DecisionRegistryABI is the ABI of the AIDecisionRegistry contract.
const DecisionRegistryABI = `[
	{
		"type": "function",
		"name": "registerDecision",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "decisionId", "type": "string"},
			{"name": "fingerprint", "type": "bytes32"},
			{"name": "modelId", "type": "string"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "verifyDecision",
		"stateMutability": "view",
		"inputs": [
			{"name": "decisionId", "type": "string"},
			{"name": "providedFingerprint", "type": "bytes32"}
		],
		"outputs": [
			{"name": "isValid", "type": "bool"},
			{"name": "timestamp", "type": "uint256"}
		]
	},
	{
		"type": "function",
		"name": "getDecision",
		"stateMutability": "view",
		"inputs": [
			{"name": "decisionId", "type": "string"}
		],
		"outputs": [
			{"name": "fingerprint", "type": "bytes32"},
			{"name": "timestamp", "type": "uint256"},
			{"name": "modelId", "type": "string"},
			{"name": "exists", "type": "bool"}
		]
	}
]`

// Contract method names.
const (
	MethodRegisterDecision = "registerDecision"
	MethodVerifyDecision   = "verifyDecision"
	MethodGetDecision      = "getDecision"
)

var parsedABI = sync.OnceValues(func() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(DecisionRegistryABI))
})

// ParsedABI returns the parsed contract ABI.
func ParsedABI() (abi.ABI, error) {
	return parsedABI()
}
