// Package apierr turns failures into the JSON error envelope returned by the API.
//
// Every error response has the shape
//
//	{"error": "<summary>", "details": "<cause>", "timestamp": "<RFC 3339>"}
//
// Only the cause's message is exposed, never stack traces or internal state.
package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"
)

// Kind classifies a request failure.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindPayloadTooLarge
	KindRateLimited
	KindUpstream
	KindRouteNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPayloadTooLarge:
		return "payload_too_large"
	case KindRateLimited:
		return "rate_limited"
	case KindUpstream:
		return "upstream"
	case KindRouteNotFound:
		return "route_not_found"
	default:
		return "internal"
	}
}

// Error provides structured error information for HTTP responses.
type Error struct {
	Kind Kind

	// Status is the HTTP status code to return.
	Status int

	// Message is the summary placed in the envelope's "error" field.
	Message string

	// Cause, when set, provides the envelope's "details". Otherwise the
	// details carry a fixed reason for the kind.
	Cause error
}

// Details returns the envelope's "details" value.
func (e *Error) Details() string {
	if e.Cause != nil {
		return e.Cause.Error()
	}
	switch e.Kind {
	case KindValidation:
		return "request validation failed"
	case KindRateLimited:
		return "rate limit exceeded"
	default:
		return e.Message
	}
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Status: http.StatusBadRequest, Message: message}
}

func PayloadTooLarge(limit int64) *Error {
	return &Error{
		Kind:    KindPayloadTooLarge,
		Status:  http.StatusRequestEntityTooLarge,
		Message: "Request payload too large",
		Cause:   fmt.Errorf("maximum size is %dMB", limit/1024/1024),
	}
}

func RateLimited() *Error {
	return &Error{
		Kind:    KindRateLimited,
		Status:  http.StatusTooManyRequests,
		Message: "Too many requests from this IP, please try again later.",
	}
}

// Upstream reports a failing collaborator such as the inference service.
func Upstream(message string, cause error) *Error {
	return &Error{Kind: KindUpstream, Status: http.StatusInternalServerError, Message: message, Cause: cause}
}

func RouteNotFound(method, path string) *Error {
	return &Error{
		Kind:    KindRouteNotFound,
		Status:  http.StatusNotFound,
		Message: "Route not found",
		Cause:   fmt.Errorf("%s %s", method, path),
	}
}

func Internal(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Status: http.StatusInternalServerError, Message: message, Cause: cause}
}

// Envelope is the body of every error response.
type Envelope struct {
	Error     string `json:"error"`
	Details   string `json:"details"`
	Timestamp string `json:"timestamp"`
}

// From converts any error into an *Error. Unclassified errors become internal.
func From(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal("Internal server error", err)
}

// Write sends err as an error envelope.
func Write(w http.ResponseWriter, err error) {
	apiErr := From(err)

	envelope := Envelope{
		Error:     apiErr.Message,
		Details:   apiErr.Details(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	_ = json.NewEncoder(w).Encode(envelope)
}

// HandlerFunc is an HTTP handler that reports failures by returning them.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Handler adapts fn to an http.HandlerFunc, writing any returned error as an envelope.
func Handler(log *slog.Logger, fn HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}

		apiErr := From(err)
		if apiErr.Status >= http.StatusInternalServerError {
			log.Error("Request failed", "err", err, "method", r.Method, "path", r.URL.Path)
		} else {
			log.Debug("Request rejected", "err", err, "kind", apiErr.Kind.String(), "path", r.URL.Path)
		}
		Write(w, apiErr)
	}
}

// Recoverer turns panics in downstream handlers into 500 envelopes.
func Recoverer(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Error("Handler panicked", "panic", rec, "path", r.URL.Path, "stack", string(debug.Stack()))
				Write(w, Internal("Internal server error", fmt.Errorf("%v", rec)))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// NotFound answers requests for unknown routes and unsupported methods.
func NotFound(w http.ResponseWriter, r *http.Request) {
	Write(w, RouteNotFound(r.Method, r.URL.Path))
}
