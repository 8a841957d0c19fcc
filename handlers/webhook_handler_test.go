package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func signSvix(secret, id, timestamp, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s.%s.%s", id, timestamp, body)
	return "v1," + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyClerkSignature(t *testing.T) {
	t.Setenv("CLERK_WEBHOOK_SECRET", "whsec_test")
	body := `{"type": "user.created"}`

	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", strings.NewReader(body))
	req.Header.Set("svix-id", "msg_1")
	req.Header.Set("svix-timestamp", "1700000000")
	req.Header.Set("svix-signature", signSvix("whsec_test", "msg_1", "1700000000", body))

	assert.True(t, verifyClerkSignature(req, []byte(body)))
}

func TestVerifyClerkSignatureRejectsTampering(t *testing.T) {
	t.Setenv("CLERK_WEBHOOK_SECRET", "whsec_test")
	body := `{"type": "user.created"}`

	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", strings.NewReader(body))
	req.Header.Set("svix-id", "msg_1")
	req.Header.Set("svix-timestamp", "1700000000")
	req.Header.Set("svix-signature", signSvix("whsec_test", "msg_1", "1700000000", body))

	assert.False(t, verifyClerkSignature(req, []byte(`{"type": "user.deleted"}`)))
}

func TestVerifyClerkSignatureMissingHeaders(t *testing.T) {
	t.Setenv("CLERK_WEBHOOK_SECRET", "whsec_test")

	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", nil)
	assert.False(t, verifyClerkSignature(req, nil))
}

func TestVerifyClerkSignatureSkippedWithoutSecret(t *testing.T) {
	t.Setenv("CLERK_WEBHOOK_SECRET", "")

	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", nil)
	assert.True(t, verifyClerkSignature(req, nil))
}

func TestClerkWebhookRejectsBadSignature(t *testing.T) {
	t.Setenv("CLERK_WEBHOOK_SECRET", "whsec_test")
	h := NewWebhookHandler(nil)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", strings.NewReader(`{}`))
	req.Header.Set("svix-id", "msg_1")
	req.Header.Set("svix-timestamp", "1700000000")
	req.Header.Set("svix-signature", "v1,deadbeef")
	rr := httptest.NewRecorder()

	h.HandleClerkWebhook(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
