package interfaces

import (
	"context"
	"encoding/json"
)

// Prediction is the inference service's response to a predict call.
// Prediction and RawMetadata are passed through to API clients verbatim.
type Prediction struct {
	Prediction  json.RawMessage `json:"prediction"`
	RawMetadata json.RawMessage `json:"model_metadata"`
}

// Metadata decodes the model metadata block of the prediction.
func (p *Prediction) Metadata() (ModelMetadata, error) {
	var meta ModelMetadata
	if len(p.RawMetadata) == 0 {
		return meta, nil
	}
	err := json.Unmarshal(p.RawMetadata, &meta)
	return meta, err
}

// InferenceProvider produces AI predictions for input text.
type InferenceProvider interface {
	Predict(ctx context.Context, text string) (*Prediction, error)
}
