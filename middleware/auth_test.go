package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func protectedEcho(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not be reached without valid auth")
	})
}

func TestClerkAuthMiddlewareMissingHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/user/profile", nil)
	rr := httptest.NewRecorder()

	ClerkAuthMiddleware(protectedEcho(t)).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "Authorization header required")
}

func TestClerkAuthMiddlewareBadScheme(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/user/profile", nil)
	req.Header.Set("Authorization", "Token abc123")
	rr := httptest.NewRecorder()

	ClerkAuthMiddleware(protectedEcho(t)).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "Invalid authorization format")
}

func TestClerkIDContextRoundTrip(t *testing.T) {
	ctx := WithClerkID(context.Background(), "user_123")

	id, ok := GetClerkID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "user_123", id)

	_, ok = GetClerkID(context.Background())
	assert.False(t, ok)
}
