// Package inference is the HTTP client for the AI inference service.
//
// The service accepts POST {base}/predict with {"text": "..."} and answers
// {"prediction": {...}, "model_metadata": {"model_id", "model_checksum", "inference_params", ...}}.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ruteri/decision-ledger/interfaces"
	"github.com/stretchr/testify/mock"
)

// ErrEmptyText is returned for predict requests without text.
var ErrEmptyText = errors.New("text is required")

// maxResponseSize caps how much of an inference response is read.
const maxResponseSize = 10 * 1024 * 1024

// Client implements interfaces.InferenceProvider over HTTP.
type Client struct {
	// BaseURL is the inference service root, e.g. http://127.0.0.1:5000.
	BaseURL string

	HTTPClient *http.Client
}

// NewClient creates a client for baseURL. Connections are made over IPv4,
// since the inference service commonly listens on 127.0.0.1 only while
// "localhost" may resolve to ::1 first. A non-zero timeout bounds each call.
func NewClient(baseURL string, timeout time.Duration) *Client {
	dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = func(ctx context.Context, _, addr string) (net.Conn, error) {
		return dialer.DialContext(ctx, "tcp4", addr)
	}

	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
	}
}

// Predict requests a prediction for text.
func (c *Client) Predict(ctx context.Context, text string) (*interfaces.Prediction, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not request inference endpoint: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("could not read inference response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("inference endpoint returned error %d: %s", resp.StatusCode, errResp.Error)
		}
		return nil, fmt.Errorf("inference endpoint returned non-200 response: %d", resp.StatusCode)
	}

	var prediction interfaces.Prediction
	if err := json.Unmarshal(respBody, &prediction); err != nil {
		return nil, fmt.Errorf("could not parse inference response: %w", err)
	}
	if len(prediction.Prediction) == 0 {
		return nil, errors.New("inference response has no prediction")
	}

	return &prediction, nil
}

// MockInferenceProvider implements a mock InferenceProvider for testing.
type MockInferenceProvider struct {
	mock.Mock
}

// Predict implements the InferenceProvider interface for testing.
func (m *MockInferenceProvider) Predict(ctx context.Context, text string) (*interfaces.Prediction, error) {
	args := m.Called(ctx, text)
	prediction, _ := args.Get(0).(*interfaces.Prediction)
	return prediction, args.Error(1)
}
