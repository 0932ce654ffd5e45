package guard

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"unicode"

	"github.com/ruteri/decision-ledger/apierr"
	"github.com/ruteri/decision-ledger/metrics"
)

// DefaultMaxPayload is the request body ceiling.
const DefaultMaxPayload = 10 * 1024 * 1024

// KeyFunc derives the rate limit identity of a request.
type KeyFunc func(r *http.Request) string

// ClientIP keys requests by the remote peer address.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit rejects requests over the limiter's budget with 429.
func RateLimit(limiter Limiter, key KeyFunc, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(r.Context(), key(r)) {
				m.RateLimited()
				apierr.Write(w, apierr.RateLimited())
				return
			}
			if sw, ok := limiter.(*SlidingWindowLimiter); ok {
				m.SetTrackedIdentities(sw.Len())
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MaxPayload rejects requests declaring a body larger than limit before any
// of it is read, and caps the body of the remaining ones.
func MaxPayload(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				apierr.Write(w, apierr.PayloadTooLarge(limit))
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isMutating(method string) bool {
	return method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch
}

// RequireJSON rejects mutating requests that do not declare a JSON body.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isMutating(r.Method) && !strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			apierr.Write(w, apierr.Validation("Content-Type must be application/json"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Sanitize trims surrounding whitespace from the top-level string fields of a
// JSON object body. Nested values are passed through byte for byte. Bodies
// that are not JSON objects are left for the handler to reject.
func Sanitize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isMutating(r.Method) || r.Body == nil {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(r.Body)
		r.Body.Close()
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				apierr.Write(w, apierr.PayloadTooLarge(maxErr.Limit))
				return
			}
			apierr.Write(w, apierr.Validation("Failed to read request body"))
			return
		}

		if sanitized, ok := trimTopLevelStrings(body); ok {
			body = sanitized
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		r.ContentLength = int64(len(body))
		next.ServeHTTP(w, r)
	})
}

// TrimString removes leading and trailing ECMAScript white space and line
// terminators from s, the set String.prototype.trim strips. Unlike
// strings.TrimSpace it strips U+FEFF and keeps U+0085.
func TrimString(s string) string {
	return strings.TrimFunc(s, isTrimmable)
}

func isTrimmable(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', '\u2028', '\u2029', '\ufeff':
		return true
	}
	return unicode.Is(unicode.Zs, r)
}

func trimTopLevelStrings(body []byte) ([]byte, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return nil, false
	}

	for name, raw := range fields {
		if len(raw) == 0 || raw[0] != '"' {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, false
		}
		trimmed := TrimString(s)
		if trimmed == s {
			continue
		}
		encoded, err := marshalNoEscape(trimmed)
		if err != nil {
			return nil, false
		}
		fields[name] = encoded
	}

	out, err := marshalNoEscape(fields)
	if err != nil {
		return nil, false
	}
	return out, true
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// SecurityHeaders sets baseline hardening headers on every response.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		next.ServeHTTP(w, r)
	})
}
