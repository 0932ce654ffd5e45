package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/ruteri/decision-ledger/interfaces"
)

// Field names of the canonical record.
const (
	FieldInferenceParams = "inference_params"
	FieldInputHash       = "input_hash"
	FieldModelChecksum   = "model_checksum"
	FieldModelID         = "model_id"
	FieldOutputValue     = "output_value"
)

// HashInput returns the lowercase hex SHA-256 of the raw text bytes.
func HashInput(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Compute returns the fingerprint of in.
func Compute(in interfaces.FingerprintInput) (interfaces.Fingerprint, error) {
	record, err := CanonicalBytes(in)
	if err != nil {
		return interfaces.Fingerprint{}, err
	}
	return interfaces.Fingerprint(sha256.Sum256(record)), nil
}

// recordFields lists the record members in output order. Nested objects
// inside model_id or model_checksum are reduced to these names as well.
var recordFields = []string{
	FieldInferenceParams,
	FieldInputHash,
	FieldModelChecksum,
	FieldModelID,
	FieldOutputValue,
}

// CanonicalBytes returns the exact byte string that Compute hashes.
//
// model_id, model_checksum and inference_params are left out when absent
// (empty raw value). Any present value, including "" and null, is part of
// the record.
func CanonicalBytes(in interfaces.FingerprintInput) ([]byte, error) {
	fields := make(map[string][]byte, len(recordFields))

	var str bytes.Buffer
	writeString(&str, in.InputHash)
	fields[FieldInputHash] = bytes.Clone(str.Bytes())
	str.Reset()
	writeString(&str, in.OutputValue)
	fields[FieldOutputValue] = bytes.Clone(str.Bytes())

	for name, raw := range map[string]json.RawMessage{
		FieldModelID:       in.ModelID,
		FieldModelChecksum: in.ModelChecksum,
	} {
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		value, err := encodeFiltered(raw, recordFields)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", name, err)
		}
		fields[name] = value
	}

	if len(bytes.TrimSpace(in.InferenceParams)) > 0 {
		params, err := encodeOrdered(in.InferenceParams)
		if err != nil {
			return nil, fmt.Errorf("invalid inference_params: %w", err)
		}
		str.Reset()
		writeString(&str, string(params))
		fields[FieldInferenceParams] = str.Bytes()
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for _, name := range recordFields {
		value, ok := fields[name]
		if !ok {
			continue
		}
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		writeString(&buf, name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
