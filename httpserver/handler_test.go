package httpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ruteri/decision-ledger/api"
	"github.com/ruteri/decision-ledger/apierr"
	"github.com/ruteri/decision-ledger/decision"
	"github.com/ruteri/decision-ledger/guard"
	"github.com/ruteri/decision-ledger/inference"
	"github.com/ruteri/decision-ledger/interfaces"
	"github.com/ruteri/decision-ledger/ledger"
	"github.com/ruteri/decision-ledger/metrics"
	"github.com/ruteri/decision-ledger/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testContract = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

const testMetadata = `{
	"model_id": "hf-distilbert-base-uncased-finetuned-sst-2-english",
	"model_version": "1.0.0",
	"model_checksum": "4b1f0c2e",
	"inference_params": {"task": "text-classification", "hf_model_name": "distilbert-base-uncased-finetuned-sst-2-english"}
}`

type testEnv struct {
	server    *Server
	inference *inference.MockInferenceProvider
	limiter   *guard.SlidingWindowLimiter
	metrics   *metrics.Metrics
}

func newTestEnv(t *testing.T, backend interfaces.LedgerBackend, maxRequests int) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New("test")

	inf := new(inference.MockInferenceProvider)
	svc := decision.NewService(backend, m, log)
	handler := NewHandler(svc, inf, testContract, m, log)

	limiter := guard.NewSlidingWindowLimiter(time.Minute, maxRequests)
	srv, err := New(&api.HTTPServerConfig{
		ListenAddr:     "127.0.0.1:0",
		Log:            log,
		AllowedOrigins: []string{"https://dashboard.example"},
	}, handler, limiter, m)
	require.NoError(t, err)

	return &testEnv{server: srv, inference: inf, limiter: limiter, metrics: m}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func proofBody(decisionID, input, output string) string {
	body := map[string]any{
		"input_text":     input,
		"output_value":   output,
		"model_metadata": json.RawMessage(testMetadata),
	}
	if decisionID != "" {
		body["decision_id"] = decisionID
	}
	out, _ := json.Marshal(body)
	return string(out)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, ledger.NewLocalLedger(), 100)

	rec := env.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	health := decode[api.HealthResponse](t, rec)
	assert.Equal(t, "healthy", health.Status)
	assert.False(t, health.BlockchainConnected)
	assert.Equal(t, testContract, health.ContractAddress)
	assert.Equal(t, "local", health.LedgerMode)

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestHealth_NoContractConfigured(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := decision.NewService(ledger.NewLocalLedger(), nil, log)
	handler := NewHandler(svc, new(inference.MockInferenceProvider), "", nil, log)

	rec := httptest.NewRecorder()
	require.NoError(t, handler.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil)))

	var fields map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fields))
	assert.Equal(t, "", fields["contract_address"])
	assert.Equal(t, false, fields["blockchain_connected"])
	assert.Equal(t, "local", fields["ledger_mode"])
}

func TestInference(t *testing.T) {
	env := newTestEnv(t, ledger.NewLocalLedger(), 100)
	env.inference.On("Predict", mock.Anything, "fever and cough").Return(&interfaces.Prediction{
		Prediction:  json.RawMessage(`{"prediction":"Pneumonia risk: 72%","risk_score":72}`),
		RawMetadata: json.RawMessage(testMetadata),
	}, nil)

	rec := env.do(http.MethodPost, "/api/inference", `{"text": "  fever and cough "}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[api.InferenceResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "fever and cough", resp.InputText)
	assert.JSONEq(t, `{"prediction":"Pneumonia risk: 72%","risk_score":72}`, string(resp.Prediction))
	assert.JSONEq(t, testMetadata, string(resp.ModelMetadata))
	env.inference.AssertExpectations(t)
}

func TestInference_Errors(t *testing.T) {
	env := newTestEnv(t, ledger.NewLocalLedger(), 100)
	env.inference.On("Predict", mock.Anything, "text").Return(nil, errors.New("connect: connection refused"))

	rec := env.do(http.MethodPost, "/api/inference", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Medical text is required", decode[apierr.Envelope](t, rec).Error)

	rec = env.do(http.MethodPost, "/api/inference", `{"text": "text"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	envelope := decode[apierr.Envelope](t, rec)
	assert.Equal(t, "Failed to get AI prediction", envelope.Error)
	assert.Equal(t, "connect: connection refused", envelope.Details)
	assert.NotEmpty(t, envelope.Timestamp)
}

func TestProofAndVerify_LocalLedger(t *testing.T) {
	env := newTestEnv(t, ledger.NewLocalLedger(), 100)

	rec := env.do(http.MethodPost, "/api/generate-proof", proofBody("", "patient reports fever", "Pneumonia risk: 72%"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	proof := decode[api.GenerateProofResponse](t, rec)
	assert.True(t, proof.Success)
	assert.Regexp(t, `^decision-\d+-[0-9a-z]{9}$`, proof.DecisionID)
	assert.Regexp(t, `^[0-9a-f]{64}$`, proof.Fingerprint)
	assert.Regexp(t, `^[0-9a-f]{64}$`, proof.InputHash)
	assert.False(t, proof.StoredOnBlockchain)
	assert.Nil(t, proof.TransactionHash)
	require.NotNil(t, proof.BlockchainError)
	assert.Equal(t, decision.MsgLocalRegistered, *proof.BlockchainError)

	verify := func(input, output string) api.VerifyResponse {
		body, _ := json.Marshal(map[string]any{
			"decision_id":    proof.DecisionID,
			"input_text":     input,
			"output_value":   output,
			"model_metadata": json.RawMessage(testMetadata),
		})
		rec := env.do(http.MethodPost, "/api/verify", string(body))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		return decode[api.VerifyResponse](t, rec)
	}

	authentic := verify("patient reports fever", "Pneumonia risk: 72%")
	assert.True(t, authentic.IsValid)
	assert.Equal(t, "authentic", authentic.Outcome)
	assert.Equal(t, proof.Fingerprint, authentic.ProvidedFingerprint)
	require.NotNil(t, authentic.StoredFingerprint)
	assert.Equal(t, "0x"+proof.Fingerprint, *authentic.StoredFingerprint)
	assert.False(t, authentic.BlockchainConnected)
	require.NotNil(t, authentic.BlockchainError)
	assert.Equal(t, decision.MsgLocalVerified, *authentic.BlockchainError)

	tampered := verify("patient reports fever", "Pneumonia risk: 12%")
	assert.False(t, tampered.IsValid)
	assert.Equal(t, "tampered", tampered.Outcome)
	assert.NotEqual(t, proof.Fingerprint, tampered.ProvidedFingerprint)
}

func TestVerify_UnknownDecision(t *testing.T) {
	env := newTestEnv(t, ledger.NewLocalLedger(), 100)

	body, _ := json.Marshal(map[string]any{
		"decision_id":    "decision-0-missing",
		"input_text":     "x",
		"output_value":   "y",
		"model_metadata": json.RawMessage(testMetadata),
	})
	rec := env.do(http.MethodPost, "/api/verify", string(body))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[api.VerifyResponse](t, rec)
	assert.False(t, resp.IsValid)
	assert.Equal(t, "not_found", resp.Outcome)
	assert.Nil(t, resp.StoredFingerprint)
	require.NotNil(t, resp.BlockchainError)
	assert.Equal(t, decision.MsgLocalNotFound, *resp.BlockchainError)
}

func TestProofAndVerify_OnChainLedger(t *testing.T) {
	address, err := interfaces.NewContractAddressFromHex(testContract)
	require.NoError(t, err)
	client := registry.NewMockRegistryClient(address)
	client.SetTransactOpts()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := newTestEnv(t, ledger.NewOnChainLedger(client, log, 0), 100)

	rec := env.do(http.MethodPost, "/api/generate-proof", proofBody("decision-onchain-1", "input", "output"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	proof := decode[api.GenerateProofResponse](t, rec)
	assert.Equal(t, "decision-onchain-1", proof.DecisionID)
	assert.True(t, proof.StoredOnBlockchain)
	require.NotNil(t, proof.TransactionHash)
	assert.Regexp(t, `^0x[0-9a-f]{64}$`, *proof.TransactionHash)
	assert.Nil(t, proof.BlockchainError)

	// Registering the same id again is refused by the contract but still answers 200.
	rec = env.do(http.MethodPost, "/api/generate-proof", proofBody("decision-onchain-1", "input", "output"))
	require.Equal(t, http.StatusOK, rec.Code)
	dup := decode[api.GenerateProofResponse](t, rec)
	assert.False(t, dup.StoredOnBlockchain)
	require.NotNil(t, dup.BlockchainError)
	assert.Contains(t, *dup.BlockchainError, registry.RevertAlreadyRegistered)

	body, _ := json.Marshal(map[string]any{
		"decision_id":    "decision-onchain-1",
		"input_text":     "input",
		"output_value":   "output",
		"model_metadata": json.RawMessage(testMetadata),
	})
	rec = env.do(http.MethodPost, "/api/verify", string(body))
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[api.VerifyResponse](t, rec)
	assert.True(t, resp.IsValid)
	assert.Equal(t, "authentic", resp.Outcome)
	assert.True(t, resp.BlockchainConnected)
	assert.Nil(t, resp.BlockchainError)
	require.NotNil(t, resp.Timestamp)
	assert.Regexp(t, `^\d+$`, *resp.Timestamp)

	rec = env.do(http.MethodGet, "/health", "")
	health := decode[api.HealthResponse](t, rec)
	assert.True(t, health.BlockchainConnected)
	assert.Equal(t, "onchain", health.LedgerMode)
}

func TestValidation(t *testing.T) {
	env := newTestEnv(t, ledger.NewLocalLedger(), 100)

	testCases := []struct {
		name    string
		path    string
		body    string
		message string
	}{
		{"proof missing output", "/api/generate-proof", `{"input_text":"a","model_metadata":{}}`, "input_text, output_value, and model_metadata are required"},
		{"proof null metadata", "/api/generate-proof", `{"input_text":"a","output_value":"b","model_metadata":null}`, "input_text, output_value, and model_metadata are required"},
		{"proof blank input", "/api/generate-proof", `{"input_text":"   ","output_value":"b","model_metadata":{}}`, "input_text, output_value, and model_metadata are required"},
		{"proof metadata not object", "/api/generate-proof", `{"input_text":"a","output_value":"b","model_metadata":"m"}`, "model_metadata must be an object"},
		{"verify missing id", "/api/verify", `{"input_text":"a","output_value":"b","model_metadata":{}}`, "decision_id, input_text, output_value, and model_metadata are required"},
		{"malformed json", "/api/verify", `{"decision_id":`, "Invalid JSON body"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(http.MethodPost, tc.path, tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.message, decode[apierr.Envelope](t, rec).Error)
		})
	}
}

func TestContentTypeRequired(t *testing.T) {
	env := newTestEnv(t, ledger.NewLocalLedger(), 100)

	req := httptest.NewRequest(http.MethodPost, "/api/generate-proof", strings.NewReader(proofBody("", "a", "b")))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Content-Type must be application/json", decode[apierr.Envelope](t, rec).Error)
}

func TestPayloadTooLarge(t *testing.T) {
	env := newTestEnv(t, ledger.NewLocalLedger(), 100)

	big := bytes.Repeat([]byte("a"), guard.DefaultMaxPayload+1)
	req := httptest.NewRequest(http.MethodPost, "/api/inference", bytes.NewReader(big))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "Request payload too large", decode[apierr.Envelope](t, rec).Error)
}

func TestRouteNotFound(t *testing.T) {
	env := newTestEnv(t, ledger.NewLocalLedger(), 100)

	rec := env.do(http.MethodGet, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Route not found", decode[apierr.Envelope](t, rec).Error)

	rec = env.do(http.MethodGet, "/api/verify", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "GET /api/verify", decode[apierr.Envelope](t, rec).Details)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, ledger.NewLocalLedger(), 3)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/health", "").Code)
	}
	rec := env.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many requests from this IP, please try again later.", decode[apierr.Envelope](t, rec).Error)

	// Operational endpoints are not rate limited.
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/livez", "").Code)
}

func TestErrorEnvelopeShape(t *testing.T) {
	env := newTestEnv(t, ledger.NewLocalLedger(), 1)

	assertEnvelope := func(rec *httptest.ResponseRecorder, status int, wantDetails string) {
		t.Helper()
		require.Equal(t, status, rec.Code, rec.Body.String())

		var fields map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fields))
		assert.Len(t, fields, 3)
		assert.NotEmpty(t, fields["error"])
		assert.Equal(t, wantDetails, fields["details"])
		_, err := time.Parse(time.RFC3339Nano, fields["timestamp"])
		assert.NoError(t, err)
	}

	assertEnvelope(env.do(http.MethodPost, "/api/generate-proof", `{"input_text": "x"}`), http.StatusBadRequest, "request validation failed")
	assertEnvelope(env.do(http.MethodPost, "/api/generate-proof", `{"input_text": "x"}`), http.StatusTooManyRequests, "rate limit exceeded")
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, ledger.NewLocalLedger(), 100)

	req := httptest.NewRequest(http.MethodOptions, "/api/verify", nil)
	req.Header.Set("Origin", "https://dashboard.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "https://dashboard.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
