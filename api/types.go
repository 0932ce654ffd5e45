package api

import "encoding/json"

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status              string `json:"status"`
	BlockchainConnected bool   `json:"blockchain_connected"`
	ContractAddress     string `json:"contract_address"`
	// LedgerMode is "onchain" or "local".
	LedgerMode string `json:"ledger_mode"`
}

type InferenceRequest struct {
	Text string `json:"text"`
}

// InferenceResponse relays the inference service's prediction and model metadata verbatim.
type InferenceResponse struct {
	Success       bool            `json:"success"`
	InputText     string          `json:"input_text"`
	Prediction    json.RawMessage `json:"prediction"`
	ModelMetadata json.RawMessage `json:"model_metadata"`
	Timestamp     string          `json:"timestamp"`
}

// GenerateProofRequest asks for a decision to be fingerprinted and registered.
// ModelMetadata is kept raw so that inference_params keeps its member order.
type GenerateProofRequest struct {
	InputText     string          `json:"input_text"`
	OutputValue   string          `json:"output_value"`
	ModelMetadata json.RawMessage `json:"model_metadata"`
	DecisionID    string          `json:"decision_id,omitempty"`
}

type GenerateProofResponse struct {
	Success    bool   `json:"success"`
	DecisionID string `json:"decision_id"`
	// Fingerprint is lowercase hex without prefix.
	Fingerprint        string  `json:"fingerprint"`
	InputHash          string  `json:"input_hash"`
	StoredOnBlockchain bool    `json:"stored_on_blockchain"`
	TransactionHash    *string `json:"transaction_hash"`
	BlockchainError    *string `json:"blockchain_error"`
	Timestamp          string  `json:"timestamp"`
}

// VerifyRequest asks whether a decision matches its registered fingerprint.
type VerifyRequest struct {
	DecisionID    string          `json:"decision_id"`
	InputText     string          `json:"input_text"`
	OutputValue   string          `json:"output_value"`
	ModelMetadata json.RawMessage `json:"model_metadata"`
}

type VerifyResponse struct {
	Success             bool   `json:"success"`
	DecisionID          string `json:"decision_id"`
	ProvidedFingerprint string `json:"provided_fingerprint"`
	// StoredFingerprint is 0x-prefixed hex, null when nothing was read from the ledger.
	StoredFingerprint *string `json:"stored_fingerprint"`
	IsValid           bool    `json:"is_valid"`
	// Outcome is one of authentic, tampered, not_found, unverified.
	Outcome string `json:"outcome"`
	// Timestamp is the registration time in unix seconds, when the ledger reports one.
	Timestamp           *string `json:"timestamp"`
	BlockchainConnected bool    `json:"blockchain_connected"`
	BlockchainError     *string `json:"blockchain_error"`
	VerificationTime    string  `json:"verification_time"`
}
