package interfaces

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Fingerprint is the 32-byte digest registered for a decision.
type Fingerprint [32]byte

// String returns lowercase hex without prefix.
func (fp Fingerprint) String() string {
	return hex.EncodeToString(fp[:])
}

// PrefixedHex returns the 0x-prefixed form used for bytes32 values on the wire.
func (fp Fingerprint) PrefixedHex() string {
	return "0x" + fp.String()
}

// Bytes returns the raw 32 bytes.
func (fp Fingerprint) Bytes() []byte {
	return fp[:]
}

// ContractAddress represents an Ethereum contract address.
type ContractAddress [20]byte

// NewContractAddressFromHex parses a 40-character hex address, with or without 0x prefix.
func NewContractAddressFromHex(addr string) (ContractAddress, error) {
	clean := strings.TrimPrefix(addr, "0x")
	if len(clean) != 40 {
		return ContractAddress{}, errors.New("invalid address length: hex string must be 40 characters")
	}

	addrBytes, err := hex.DecodeString(clean)
	if err != nil {
		return ContractAddress{}, fmt.Errorf("invalid hex format: %w", err)
	}

	var res ContractAddress
	copy(res[:], addrBytes)
	return res, nil
}

// String returns the 0x-prefixed hex representation of the address.
func (addr ContractAddress) String() string {
	return "0x" + hex.EncodeToString(addr[:])
}

// ModelMetadata describes the model that produced a decision, as reported by
// the inference service. Members are kept as raw JSON: a member that was not
// sent stays nil, while "" and null are kept as sent.
type ModelMetadata struct {
	ModelID       json.RawMessage `json:"model_id,omitempty"`
	ModelChecksum json.RawMessage `json:"model_checksum,omitempty"`

	// InferenceParams is kept verbatim so that its member order survives
	// until fingerprinting.
	InferenceParams json.RawMessage `json:"inference_params,omitempty"`
}

// ID returns model_id when it is a JSON string, and "" otherwise.
func (m ModelMetadata) ID() string {
	var id string
	if err := json.Unmarshal(m.ModelID, &id); err != nil {
		return ""
	}
	return id
}

// FingerprintInput is the set of values a fingerprint commits to.
type FingerprintInput struct {
	InputHash       string
	OutputValue     string
	ModelID         json.RawMessage
	ModelChecksum   json.RawMessage
	InferenceParams json.RawMessage
}

// NewFingerprintInput assembles the fingerprint input for an already hashed input.
func NewFingerprintInput(inputHash, outputValue string, meta ModelMetadata) FingerprintInput {
	return FingerprintInput{
		InputHash:       inputHash,
		OutputValue:     outputValue,
		ModelID:         meta.ModelID,
		ModelChecksum:   meta.ModelChecksum,
		InferenceParams: meta.InferenceParams,
	}
}

// DecisionRecord is a registered decision as reported by a ledger backend.
// RegisteredAt is nil when the backend keeps no timestamp.
type DecisionRecord struct {
	DecisionID   string
	Fingerprint  Fingerprint
	ModelID      string
	RegisteredAt *time.Time
	Exists       bool
}
