package billing

import (
	"encoding/json"
	"fmt"
)

// Event type strings as RevenueCat sends them. Anything else is kept verbatim
// and treated as non-activating.
const (
	TypeInitialPurchase = "INITIAL_PURCHASE"
	TypeRenewal         = "RENEWAL"
	TypeUncancellation  = "UNCANCELLATION"
	TypeExpiration      = "EXPIRATION"
	TypeUnknown         = "UNKNOWN"
)

// Event is the canonical form of a billing webhook payload. Missing fields
// stay empty/nil; downstream code decides what to do about absence.
type Event struct {
	Type          string
	AppUserID     string
	EntitlementID string
	ExpirationMs  *int64

	// Raw is the event object as received, kept for entitlement_ids matching
	// and trace logging. Never persisted.
	Raw map[string]any
}

// Alias tables, ordered. RevenueCat has shipped several field spellings over
// the years; the first alias present with a non-null value wins.
var (
	typeAliases        = []string{"type", "event_type", "eventType"}
	appUserIDAliases   = []string{"app_user_id", "appUserId", "app_userID"}
	entitlementAliases = []string{"entitlement_id", "entitlementId"}
	expirationAliases  = []string{"expiration_at_ms", "expirationMs", "expiration_ms"}
)

// Normalize parses a webhook body into a canonical event. The only error it
// can return is a JSON syntax error; missing or oddly-typed fields never fail.
func Normalize(body []byte) (*Event, error) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse webhook body: %w", err)
	}
	return NormalizeValue(payload), nil
}

// NormalizeValue canonicalizes an already-decoded payload. Accepts both the
// {"event": {...}} envelope and a bare event object.
func NormalizeValue(payload map[string]any) *Event {
	raw := payload
	if inner, ok := payload["event"].(map[string]any); ok {
		raw = inner
	}

	evt := &Event{Type: TypeUnknown, Raw: raw}

	if v, ok := firstString(raw, typeAliases); ok {
		evt.Type = v
	}
	if v, ok := firstString(raw, appUserIDAliases); ok {
		evt.AppUserID = v
	}
	if v, ok := firstString(raw, entitlementAliases); ok {
		evt.EntitlementID = v
	} else if ids, ok := raw["entitlement_ids"].([]any); ok && len(ids) > 0 {
		if s, ok := ids[0].(string); ok {
			evt.EntitlementID = s
		}
	}
	if ms, ok := firstNumber(raw, expirationAliases); ok {
		evt.ExpirationMs = &ms
	}

	return evt
}

// MatchesEntitlement reports whether this event concerns the target
// entitlement, either via the singular field or the entitlement_ids array.
func (e *Event) MatchesEntitlement(target string) bool {
	if e.EntitlementID == target {
		return true
	}
	ids, ok := e.Raw["entitlement_ids"].([]any)
	if !ok {
		return false
	}
	for _, id := range ids {
		if s, ok := id.(string); ok && s == target {
			return true
		}
	}
	return false
}

func firstString(raw map[string]any, aliases []string) (string, bool) {
	for _, key := range aliases {
		if v, ok := raw[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// firstNumber only accepts values that are already numeric. A timestamp
// arriving as a string is dropped rather than parsed, so a malformed payload
// can never be misread as a valid expiry.
func firstNumber(raw map[string]any, aliases []string) (int64, bool) {
	for _, key := range aliases {
		switch v := raw[key].(type) {
		case float64:
			return int64(v), true
		case int64:
			return v, true
		case int:
			return int64(v), true
		case json.Number:
			if n, err := v.Int64(); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}
