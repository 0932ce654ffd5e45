package guard

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/ruteri/decision-ledger/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Error
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:53211"
	assert.Equal(t, "192.0.2.10", ClientIP(req))

	req.RemoteAddr = "[2001:db8::1]:443"
	assert.Equal(t, "2001:db8::1", ClientIP(req))

	req.RemoteAddr = "pipe"
	assert.Equal(t, "pipe", ClientIP(req))
}

func TestRateLimit(t *testing.T) {
	clock := newFakeClock()
	limiter := NewSlidingWindowLimiter(time.Second, 3)
	limiter.Now = clock.Now
	m := metrics.New("test")

	h := RateLimit(limiter, ClientIP, m)(okHandler)
	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "192.0.2.10:1000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do().Code)
	assert.Equal(t, http.StatusOK, do().Code)
	assert.Equal(t, http.StatusOK, do().Code)

	rec := do()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many requests from this IP, please try again later.", errorMessage(t, rec))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RateLimitRejections))

	clock.Advance(time.Second)
	assert.Equal(t, http.StatusOK, do().Code)
}

func TestMaxPayload(t *testing.T) {
	h := MaxPayload(16)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":"b"}`)))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 17))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "Request payload too large", errorMessage(t, rec))

	// Undeclared length is still capped while reading.
	req := httptest.NewRequest(http.MethodPost, "/", io.NopCloser(strings.NewReader(strings.Repeat("x", 32))))
	req.ContentLength = -1
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRequireJSON(t *testing.T) {
	h := RequireJSON(okHandler)

	testCases := []struct {
		method      string
		contentType string
		want        int
	}{
		{http.MethodPost, "application/json", http.StatusOK},
		{http.MethodPost, "application/json; charset=utf-8", http.StatusOK},
		{http.MethodPost, "text/plain", http.StatusBadRequest},
		{http.MethodPost, "", http.StatusBadRequest},
		{http.MethodPut, "", http.StatusBadRequest},
		{http.MethodGet, "", http.StatusOK},
	}

	for _, tc := range testCases {
		req := httptest.NewRequest(tc.method, "/", strings.NewReader("{}"))
		if tc.contentType != "" {
			req.Header.Set("Content-Type", tc.contentType)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, tc.want, rec.Code, "%s %q", tc.method, tc.contentType)
		if tc.want == http.StatusBadRequest {
			assert.Equal(t, "Content-Type must be application/json", errorMessage(t, rec))
		}
	}
}

func TestSanitize(t *testing.T) {
	var got []byte
	h := Sanitize(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		got, err = io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, int64(len(got)), r.ContentLength)
	}))

	body := `{"input_text": "  fever <3 days  ", "count": 3, "model_metadata": {"model_id": "  m1  ", "inference_params": {"z": 1, "a": 2}}}`
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(got, &fields))
	assert.Equal(t, `"fever <3 days"`, string(fields["input_text"]))
	assert.Equal(t, `3`, string(fields["count"]))
	// Nested values keep their bytes, including member order.
	assert.Equal(t, `{"model_id":"  m1  ","inference_params":{"z":1,"a":2}}`, string(fields["model_metadata"]))

	// Non-object bodies pass through untouched.
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`not json`)))
	assert.Equal(t, "not json", string(got))
}

func TestTrimString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"ascii", " \t\n\v\f\r text \r\n", "text"},
		{"byte order mark", "\ufefftext\ufeff", "text"},
		{"next line kept", "\u0085text\u0085", "\u0085text\u0085"},
		{"unicode spaces", "\u00a0\u1680\u2000\u200a\u202f\u205f\u3000text\u2028\u2029", "text"},
		{"zero width space kept", "\u200btext", "\u200btext"},
		{"inner space kept", "  a  b  ", "a  b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TrimString(tt.in))
		})
	}
}

func TestSanitize_TrimSet(t *testing.T) {
	var got []byte
	h := Sanitize(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = io.ReadAll(r.Body)
	}))

	body := `{"input_text": "\ufefffever\u0085", "output_value": "\u00a0ok\u3000"}`
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))

	var fields map[string]string
	require.NoError(t, json.Unmarshal(got, &fields))
	assert.Equal(t, "fever\u0085", fields["input_text"])
	assert.Equal(t, "ok", fields["output_value"])
}

func TestSanitize_PayloadTooLarge(t *testing.T) {
	h := MaxPayload(8)(Sanitize(okHandler))

	req := httptest.NewRequest(http.MethodPost, "/", io.NopCloser(strings.NewReader(`{"input_text": "long enough"}`)))
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "1; mode=block", rec.Header().Get("X-XSS-Protection"))
}
