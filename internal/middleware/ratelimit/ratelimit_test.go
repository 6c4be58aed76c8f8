package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, burst int) *Limiter {
	t.Helper()
	rl := NewLimiter(Config{RequestsPerSecond: 0.001, Burst: burst, CleanupInterval: time.Hour})
	t.Cleanup(rl.Stop)
	return rl
}

func TestAllowIsPerClient(t *testing.T) {
	rl := newTestLimiter(t, 2)

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "other clients keep their own bucket")

	m := rl.GetMetrics()
	assert.Equal(t, int64(1), m.TotalHits)
	assert.Equal(t, int64(2), m.ClientCount)
}

func TestCleanupDropsIdleClients(t *testing.T) {
	rl := newTestLimiter(t, 1)
	rl.Allow("a")
	require.Equal(t, 1, rl.ActiveClients())

	rl.cleanupStaleEntries(time.Now())
	assert.Equal(t, 1, rl.ActiveClients())

	rl.cleanupStaleEntries(time.Now().Add(time.Hour))
	assert.Zero(t, rl.ActiveClients())
}

func TestStopIsIdempotent(t *testing.T) {
	rl := NewLimiter(DefaultConfig())
	rl.Stop()
	assert.NotPanics(t, rl.Stop)
}

func TestMiddlewareOnlyLimitsMutatingRequests(t *testing.T) {
	rl := newTestLimiter(t, 1)
	handler := rl.Middleware(func(*http.Request) string { return "ip" }, Mutating, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }),
	)

	do := func(method string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(method, "/", nil))
		return rec
	}

	assert.Equal(t, http.StatusNoContent, do(http.MethodPost).Code)
	rec := do(http.MethodPost)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusNoContent, do(http.MethodGet).Code)
	}
}

func TestMutating(t *testing.T) {
	tests := map[string]bool{
		http.MethodGet:     false,
		http.MethodHead:    false,
		http.MethodOptions: false,
		http.MethodPost:    true,
		http.MethodPut:     true,
		http.MethodPatch:   true,
		http.MethodDelete:  true,
	}
	for method, want := range tests {
		assert.Equal(t, want, Mutating(httptest.NewRequest(method, "/", nil)), method)
	}
}
