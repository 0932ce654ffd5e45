package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ruteri/decision-ledger/api"
	"github.com/stretchr/testify/mock"
)

// DecisionProvider is the client-side view of the decision ledger API.
type DecisionProvider interface {
	Health(ctx context.Context) (*api.HealthResponse, error)
	Inference(ctx context.Context, text string) (*api.InferenceResponse, error)
	GenerateProof(ctx context.Context, req *api.GenerateProofRequest) (*api.GenerateProofResponse, error)
	Verify(ctx context.Context, req *api.VerifyRequest) (*api.VerifyResponse, error)
}

// DecisionClient implements DecisionProvider over HTTP.
type DecisionClient struct {
	// ServerAddr is the base URL of the decision ledger server
	ServerAddr string

	// HTTPClient defaults to http.DefaultClient when nil.
	HTTPClient *http.Client
}

func (c *DecisionClient) Health(ctx context.Context) (*api.HealthResponse, error) {
	var resp api.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *DecisionClient) Inference(ctx context.Context, text string) (*api.InferenceResponse, error) {
	var resp api.InferenceResponse
	if err := c.do(ctx, http.MethodPost, "/api/inference", &api.InferenceRequest{Text: text}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *DecisionClient) GenerateProof(ctx context.Context, req *api.GenerateProofRequest) (*api.GenerateProofResponse, error) {
	var resp api.GenerateProofResponse
	if err := c.do(ctx, http.MethodPost, "/api/generate-proof", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *DecisionClient) Verify(ctx context.Context, req *api.VerifyRequest) (*api.VerifyResponse, error) {
	var resp api.VerifyResponse
	if err := c.do(ctx, http.MethodPost, "/api/verify", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *DecisionClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		reqBody, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.ServerAddr+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%s returned non-200 response: %d", path, resp.StatusCode)
		}
		return fmt.Errorf("%s returned error %d: %s", path, resp.StatusCode, string(bytes.TrimSpace(bodyBytes)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("could not parse %s response: %w", path, err)
	}
	return nil
}

// MockDecisionProvider implements a mock DecisionProvider for testing.
type MockDecisionProvider struct {
	mock.Mock
}

func (m *MockDecisionProvider) Health(ctx context.Context) (*api.HealthResponse, error) {
	args := m.Called(ctx)
	resp, _ := args.Get(0).(*api.HealthResponse)
	return resp, args.Error(1)
}

func (m *MockDecisionProvider) Inference(ctx context.Context, text string) (*api.InferenceResponse, error) {
	args := m.Called(ctx, text)
	resp, _ := args.Get(0).(*api.InferenceResponse)
	return resp, args.Error(1)
}

func (m *MockDecisionProvider) GenerateProof(ctx context.Context, req *api.GenerateProofRequest) (*api.GenerateProofResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*api.GenerateProofResponse)
	return resp, args.Error(1)
}

func (m *MockDecisionProvider) Verify(ctx context.Context, req *api.VerifyRequest) (*api.VerifyResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*api.VerifyResponse)
	return resp, args.Error(1)
}
