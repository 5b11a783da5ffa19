package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIPRateLimiter(t *testing.T) {
	rl := NewIPRateLimiter(2)
	defer rl.Stop()

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	request := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, request("10.0.0.1:1000"))
	assert.Equal(t, http.StatusNoContent, request("10.0.0.1:2000"))
	assert.Equal(t, http.StatusTooManyRequests, request("10.0.0.1:3000"))

	// Budgets are per address, not per connection.
	assert.Equal(t, http.StatusNoContent, request("10.0.0.2:1000"))
}

func TestIPRateLimiterCleanup(t *testing.T) {
	rl := NewIPRateLimiter(10)
	defer rl.Stop()

	rl.getLimiter("10.0.0.1")
	rl.getLimiter("10.0.0.2")

	rl.mu.Lock()
	rl.visitors["10.0.0.1"].lastSeen = time.Now().Add(-time.Hour)
	rl.mu.Unlock()

	rl.cleanup(visitorTTL)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	assert.NotContains(t, rl.visitors, "10.0.0.1")
	assert.Contains(t, rl.visitors, "10.0.0.2")
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	req.RemoteAddr = "192.0.2.7:5555"
	assert.Equal(t, "192.0.2.7", clientIP(req))

	req.RemoteAddr = "192.0.2.8"
	assert.Equal(t, "192.0.2.8", clientIP(req))
}

func TestIPRateLimiterStopIsIdempotent(t *testing.T) {
	rl := NewIPRateLimiter(1)

	rl.Stop()
	rl.Stop()
}
