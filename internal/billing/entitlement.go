package billing

import "time"

// State is the derived premium entitlement for a subscriber, ready to be
// written onto a family record.
type State struct {
	PremiumActive bool
	PremiumUntil  *time.Time
}

var activatingTypes = map[string]bool{
	TypeInitialPurchase: true,
	TypeRenewal:         true,
	TypeUncancellation:  true,
}

// ComputeState derives the entitlement state from a canonical event.
//
// Precedence, in order: a positive expiration timestamp decides activity on
// its own (a mislabeled event with a future expiry is still active); without
// one, activity comes from the event type; an explicit EXPIRATION event
// always forces inactive, even over a future timestamp.
func ComputeState(evt *Event, now time.Time) State {
	var st State

	var activeFromUntil *bool
	if evt.ExpirationMs != nil && *evt.ExpirationMs > 0 {
		until := time.UnixMilli(*evt.ExpirationMs)
		st.PremiumUntil = &until
		active := until.After(now)
		activeFromUntil = &active
	}

	if activeFromUntil != nil {
		st.PremiumActive = *activeFromUntil
	} else {
		st.PremiumActive = activatingTypes[evt.Type]
	}

	if evt.Type == TypeExpiration {
		st.PremiumActive = false
		st.PremiumUntil = nil
	}

	return st
}

// StateFromSubscriber derives the entitlement state from a polled subscriber
// entitlement, as returned by the billing REST API. active==false with a
// present flag still clears the expiry.
func StateFromSubscriber(active bool, expiresDateMs int64) State {
	var st State
	st.PremiumActive = active
	if expiresDateMs > 0 {
		until := time.UnixMilli(expiresDateMs)
		st.PremiumUntil = &until
	}
	return st
}
