package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/decision-ledger/api"
	"github.com/ruteri/decision-ledger/apierr"
	"github.com/ruteri/decision-ledger/decision"
	"github.com/ruteri/decision-ledger/interfaces"
	"github.com/ruteri/decision-ledger/metrics"
)

// Handler serves the decision ledger API on top of a decision.Service and an
// inference provider.
type Handler struct {
	service         *decision.Service
	inference       interfaces.InferenceProvider
	contractAddress string
	metrics         *metrics.Metrics
	log             *slog.Logger

	now func() time.Time
}

// NewHandler creates the API handler. contractAddress is reported by /health
// as configured, also when the service runs on the local fallback ledger.
func NewHandler(service *decision.Service, inference interfaces.InferenceProvider, contractAddress string, m *metrics.Metrics, log *slog.Logger) *Handler {
	return &Handler{
		service:         service,
		inference:       inference,
		contractAddress: contractAddress,
		metrics:         m,
		log:             log,
		now:             time.Now,
	}
}

// RegisterRoutes mounts the API endpoints on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", apierr.Handler(h.log, h.HandleHealth))
	r.Post("/api/inference", apierr.Handler(h.log, h.HandleInference))
	r.Post("/api/generate-proof", apierr.Handler(h.log, h.HandleGenerateProof))
	r.Post("/api/verify", apierr.Handler(h.log, h.HandleVerify))
}

func (h *Handler) timestamp() string {
	return h.now().UTC().Format(time.RFC3339Nano)
}

// HandleHealth reports whether the service is backed by the on-chain ledger.
//
// URL format: GET /health
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) error {
	kind := h.service.LedgerKind()
	return writeJSON(w, &api.HealthResponse{
		Status:              "healthy",
		BlockchainConnected: kind == interfaces.LedgerOnChain,
		ContractAddress:     h.contractAddress,
		LedgerMode:          kind.String(),
	})
}

// HandleInference forwards text to the inference service and relays its
// prediction and model metadata.
//
// URL format: POST /api/inference
func (h *Handler) HandleInference(w http.ResponseWriter, r *http.Request) error {
	var req api.InferenceRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	if req.Text == "" {
		return apierr.Validation("Medical text is required")
	}

	prediction, err := h.inference.Predict(r.Context(), req.Text)
	h.metrics.Inference(err == nil)
	if err != nil {
		return apierr.Upstream("Failed to get AI prediction", err)
	}

	return writeJSON(w, &api.InferenceResponse{
		Success:       true,
		InputText:     req.Text,
		Prediction:    prediction.Prediction,
		ModelMetadata: prediction.RawMetadata,
		Timestamp:     h.timestamp(),
	})
}

// HandleGenerateProof fingerprints a decision and registers it on the ledger.
// Ledger failures are reported in blockchain_error, not as a failed request.
//
// URL format: POST /api/generate-proof
func (h *Handler) HandleGenerateProof(w http.ResponseWriter, r *http.Request) error {
	var req api.GenerateProofRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	if req.InputText == "" || req.OutputValue == "" || isAbsent(req.ModelMetadata) {
		return apierr.Validation("input_text, output_value, and model_metadata are required")
	}

	meta, err := parseModelMetadata(req.ModelMetadata)
	if err != nil {
		return err
	}

	rec, err := h.service.GenerateProof(r.Context(), decision.ProofRequest{
		InputText:     req.InputText,
		OutputValue:   req.OutputValue,
		ModelMetadata: meta,
		DecisionID:    req.DecisionID,
	})
	if err != nil {
		return proofError("Failed to generate proof", err)
	}

	return writeJSON(w, &api.GenerateProofResponse{
		Success:            true,
		DecisionID:         rec.DecisionID,
		Fingerprint:        rec.Fingerprint.String(),
		InputHash:          rec.InputHash,
		StoredOnBlockchain: rec.StoredOnChain,
		TransactionHash:    optional(rec.TxHash),
		BlockchainError:    optional(rec.LedgerError),
		Timestamp:          h.timestamp(),
	})
}

// HandleVerify recomputes the fingerprint of a decision and compares it with
// the registered one.
//
// URL format: POST /api/verify
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) error {
	var req api.VerifyRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	if req.DecisionID == "" || req.InputText == "" || req.OutputValue == "" || isAbsent(req.ModelMetadata) {
		return apierr.Validation("decision_id, input_text, output_value, and model_metadata are required")
	}

	meta, err := parseModelMetadata(req.ModelMetadata)
	if err != nil {
		return err
	}

	rec, err := h.service.VerifyDecision(r.Context(), decision.VerifyRequest{
		DecisionID:    req.DecisionID,
		InputText:     req.InputText,
		OutputValue:   req.OutputValue,
		ModelMetadata: meta,
	})
	if err != nil {
		return proofError("Failed to verify decision", err)
	}

	resp := &api.VerifyResponse{
		Success:             true,
		DecisionID:          rec.DecisionID,
		ProvidedFingerprint: rec.ProvidedFingerprint.String(),
		IsValid:             rec.IsValid,
		Outcome:             string(rec.Outcome),
		BlockchainConnected: rec.LedgerConnected,
		BlockchainError:     optional(rec.LedgerError),
		VerificationTime:    h.timestamp(),
	}
	if rec.StoredFingerprint != nil {
		stored := rec.StoredFingerprint.PrefixedHex()
		resp.StoredFingerprint = &stored
	}
	if rec.RegisteredAt != nil {
		ts := strconv.FormatInt(rec.RegisteredAt.Unix(), 10)
		resp.Timestamp = &ts
	}
	return writeJSON(w, resp)
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apierr.PayloadTooLarge(maxErr.Limit)
		}
		return &apierr.Error{
			Kind:    apierr.KindValidation,
			Status:  http.StatusBadRequest,
			Message: "Invalid JSON body",
			Cause:   err,
		}
	}
	return nil
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func parseModelMetadata(raw json.RawMessage) (interfaces.ModelMetadata, error) {
	var meta interfaces.ModelMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return meta, &apierr.Error{
			Kind:    apierr.KindValidation,
			Status:  http.StatusBadRequest,
			Message: "model_metadata must be an object",
			Cause:   err,
		}
	}
	return meta, nil
}

func proofError(message string, err error) error {
	if !errors.Is(err, decision.ErrInvalidInput) {
		return apierr.Internal(message, err)
	}
	return &apierr.Error{
		Kind:    apierr.KindValidation,
		Status:  http.StatusBadRequest,
		Message: message,
		Cause:   err,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func writeJSON(w http.ResponseWriter, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return apierr.Internal("Internal server error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
	return nil
}
