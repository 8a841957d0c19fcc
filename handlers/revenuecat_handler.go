package handlers

import (
	"context"
	"io"
	"log"
	"net/http"
	"time"

	"pantryPalAPI/internal/billing"
	"pantryPalAPI/middleware"
	"pantryPalAPI/services"
)

// RevenueCatHandler receives billing webhooks. Ambiguous billing traffic must
// never cause an outage, so every branch answers 200 with an ignore reason
// and only a genuine failure answers 500.
type RevenueCatHandler struct {
	premiumService *services.PremiumService
}

func NewRevenueCatHandler(premiumService *services.PremiumService) *RevenueCatHandler {
	return &RevenueCatHandler{premiumService: premiumService}
}

func (h *RevenueCatHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("Panic in billing webhook: %v", rec)
			middleware.RecordWebhookEvent("panic", "error")
			writeText(w, http.StatusInternalServerError, "Internal error")
		}
	}()

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeText(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("Failed to read billing webhook body: %v", err)
		middleware.RecordWebhookEvent("unreadable", "error")
		writeText(w, http.StatusInternalServerError, "Internal error")
		return
	}
	defer r.Body.Close()

	evt, err := billing.Normalize(body)
	if err != nil {
		log.Printf("Failed to parse billing webhook body: %v", err)
		middleware.RecordWebhookEvent("unparseable", "error")
		writeText(w, http.StatusInternalServerError, "Internal error")
		return
	}

	if !evt.MatchesEntitlement(h.premiumService.EntitlementID()) {
		log.Printf("Billing webhook ignored: %s event for entitlement %q, not the target", evt.Type, evt.EntitlementID)
		middleware.RecordWebhookEvent(evt.Type, "ignored_entitlement")
		writeText(w, http.StatusOK, "Ignored: not target entitlement")
		return
	}

	if evt.AppUserID == "" {
		log.Printf("Billing webhook ignored: %s event carries no app user id", evt.Type)
		middleware.RecordWebhookEvent(evt.Type, "ignored_no_user")
		writeText(w, http.StatusOK, "Ignored: missing user")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	outcome, err := h.premiumService.ApplyBillingEvent(ctx, evt)
	if err != nil {
		log.Printf("Billing webhook failed for user %s: %v", evt.AppUserID, err)
		middleware.RecordWebhookEvent(evt.Type, "error")
		writeText(w, http.StatusInternalServerError, "Internal error")
		return
	}
	middleware.RecordWebhookEvent(evt.Type, string(outcome))

	switch outcome {
	case services.OutcomeUserNotFound:
		// Billing events can reference test or deleted users.
		log.Printf("Billing webhook ignored: no user record for %s", evt.AppUserID)
		writeText(w, http.StatusOK, "Ignored: user not found")
	case services.OutcomeNoFamily:
		log.Printf("Billing webhook: user %s has no family, nothing to reconcile", evt.AppUserID)
		writeText(w, http.StatusOK, "OK")
	default:
		log.Printf("Reconciled premium from %s event for user %s", evt.Type, evt.AppUserID)
		writeText(w, http.StatusOK, "OK")
	}
}

func writeText(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	w.Write([]byte(message))
}
