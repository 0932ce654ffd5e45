package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ruteri/decision-ledger/ledger"
	"github.com/stretchr/testify/assert"
)

func TestReadinessLifecycle(t *testing.T) {
	env := newTestEnv(t, ledger.NewLocalLedger(), 100)

	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/livez", "").Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/readyz", "").Code)

	rec := env.do(http.MethodGet, "/drain", "")
	assert.JSONEq(t, `{"status":"draining"}`, rec.Body.String())
	assert.Equal(t, http.StatusServiceUnavailable, env.do(http.MethodGet, "/readyz", "").Code)

	rec = env.do(http.MethodGet, "/drain", "")
	assert.JSONEq(t, `{"status":"already draining"}`, rec.Body.String())

	rec = env.do(http.MethodGet, "/undrain", "")
	assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/readyz", "").Code)
}

func TestNew_RequiresLimiter(t *testing.T) {
	env := newTestEnv(t, ledger.NewLocalLedger(), 100)
	_, err := New(env.server.cfg, env.server.handler, nil, nil)
	assert.Error(t, err)
}

func TestTrustProxy(t *testing.T) {
	env := newTestEnv(t, ledger.NewLocalLedger(), 1)
	env.server.cfg.TrustProxy = true
	handler := env.server.getRouter()

	do := func(forwardedFor string) int {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Forwarded-For", forwardedFor)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	// Each forwarded client has its own budget behind the same proxy.
	assert.Equal(t, http.StatusOK, do("198.51.100.1"))
	assert.Equal(t, http.StatusOK, do("198.51.100.2"))
	assert.Equal(t, http.StatusTooManyRequests, do("198.51.100.1"))
}
