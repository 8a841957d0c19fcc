package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimitMiddlewareBlocksAfterBurst(t *testing.T) {
	handler := RateLimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	blocked := false
	for i := 0; i < visitorBurst+5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/fridge", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.9")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code == http.StatusTooManyRequests {
			blocked = true
		}
	}
	assert.True(t, blocked, "burst exhaustion must start returning 429")
}

func TestGetLimiterIsPerIP(t *testing.T) {
	a := getLimiter("198.51.100.1")
	b := getLimiter("198.51.100.2")
	assert.NotSame(t, a, b)
	assert.Same(t, a, getLimiter("198.51.100.1"))
}

func TestPruneVisitorsDropsIdleIPs(t *testing.T) {
	ip := "198.51.100.7"
	getLimiter(ip)

	mu.Lock()
	visitors[ip].lastSeen = time.Now().Add(-10 * time.Minute)
	mu.Unlock()

	pruneVisitors(visitorTTL)

	mu.Lock()
	_, ok := visitors[ip]
	mu.Unlock()
	assert.False(t, ok, "idle visitor must be pruned")
}

func TestCleanupVisitorsStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		CleanupVisitors(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup goroutine did not stop on context cancel")
	}
}
