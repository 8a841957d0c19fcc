package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"cloud.google.com/go/firestore"

	"pantryPalAPI/internal/billing"
	"pantryPalAPI/internal/types/apperr"
	"pantryPalAPI/internal/types/family"
	"pantryPalAPI/internal/types/user"
)

// WebhookOutcome tells the webhook handler which ignore/success branch a
// billing event took. None of these are errors.
type WebhookOutcome string

const (
	OutcomeReconciled   WebhookOutcome = "reconciled"
	OutcomeNoFamily     WebhookOutcome = "no_family"
	OutcomeUserNotFound WebhookOutcome = "user_not_found"
)

// SyncResult is the success payload of the on-demand sync endpoint.
type SyncResult struct {
	OK             bool   `json:"ok"`
	PremiumActive  bool   `json:"premiumActive"`
	PremiumUntilMs *int64 `json:"premiumUntilMs"`
}

// PremiumService owns premium entitlement reconciliation: it derives
// entitlement state from billing events or polled subscriber records and
// merge-writes it onto the family record.
type PremiumService struct {
	store         Store
	revenueCat    *RevenueCatService
	entitlementID string
	notifier      *NotificationDispatcher
}

func NewPremiumService(store Store, revenueCat *RevenueCatService, entitlementID string) *PremiumService {
	return &PremiumService{
		store:         store,
		revenueCat:    revenueCat,
		entitlementID: entitlementID,
	}
}

// SetNotifier injects the push dispatcher from main.go. Optional; premium
// changes just go unannounced without it.
func (s *PremiumService) SetNotifier(notifier *NotificationDispatcher) {
	s.notifier = notifier
}

func (s *PremiumService) EntitlementID() string {
	return s.entitlementID
}

// ApplyBillingEvent routes a canonical webhook event to the family record of
// the referenced user. Missing users and family-less users are expected
// billing traffic, not errors.
func (s *PremiumService) ApplyBillingEvent(ctx context.Context, evt *billing.Event) (WebhookOutcome, error) {
	u, err := s.store.GetUser(ctx, evt.AppUserID)
	if errors.Is(err, ErrNotFound) {
		return OutcomeUserNotFound, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up user %s: %w", evt.AppUserID, err)
	}

	if u.FamilyID == "" {
		return OutcomeNoFamily, nil
	}

	// Prior state is needed to tell a flip from a repeat; a missing family
	// doc counts as inactive and the reconcile upsert creates it.
	fam, err := s.store.GetFamily(ctx, u.FamilyID)
	if errors.Is(err, ErrNotFound) {
		fam = &family.Family{ID: u.FamilyID}
	} else if err != nil {
		return "", fmt.Errorf("failed to look up family %s: %w", u.FamilyID, err)
	}

	state := billing.ComputeState(evt, time.Now())
	if err := s.ReconcileFamily(ctx, fam.ID, evt.AppUserID, state); err != nil {
		return "", err
	}
	s.notifyPremiumChange(fam, state.PremiumActive)

	return OutcomeReconciled, nil
}

// ReconcileFamily performs the idempotent merge-write of an entitlement state
// onto families/{familyID}. Every field is fully determined by the inputs, so
// there is no read-modify-write cycle and repeated or out-of-order calls are
// safe. premiumUntil is explicitly deleted when inactive or absent so a stale
// expiry can never linger under a merge write; premiumUpdatedAt is the server
// clock, never caller-supplied.
func (s *PremiumService) ReconcileFamily(ctx context.Context, familyID, ownerID string, state billing.State) error {
	fields := map[string]any{
		"premiumOwner":     ownerID,
		"premiumActive":    state.PremiumActive,
		"premiumUpdatedAt": firestore.ServerTimestamp,
	}
	if state.PremiumActive && state.PremiumUntil != nil {
		fields["premiumUntil"] = *state.PremiumUntil
	} else {
		fields["premiumUntil"] = firestore.Delete
	}

	if err := s.store.SetFamily(ctx, familyID, fields); err != nil {
		return fmt.Errorf("failed to reconcile family %s: %w", familyID, err)
	}
	return nil
}

// SyncPremium reconciles the caller's family against the billing provider
// directly, bypassing webhooks. All failures reaching the caller are typed
// apperr errors so the client can branch on kind.
func (s *PremiumService) SyncPremium(ctx context.Context, callerID, requestedFamilyID string) (*SyncResult, error) {
	caller, err := s.store.GetUser(ctx, callerID)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.New(apperr.NotFound, "user record not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to look up user", err)
	}

	if caller.FamilyID == "" {
		return nil, apperr.New(apperr.FailedPrecondition, "user has no family")
	}
	if requestedFamilyID != "" && requestedFamilyID != caller.FamilyID {
		return nil, apperr.New(apperr.PermissionDenied, "family does not belong to caller")
	}

	fam, err := s.store.GetFamily(ctx, caller.FamilyID)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.New(apperr.NotFound, "family record not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to look up family", err)
	}

	owner := resolvePremiumOwner(fam, callerID)

	lookup, err := s.revenueCat.FetchSubscriber(ctx, owner)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "billing provider unreachable", err)
	}

	if lookup.Status == http.StatusNotFound {
		if fallback := s.fallbackIdentity(ctx, caller, owner); fallback != "" && fallback != owner {
			log.Printf("Subscriber %s not found, retrying under fallback identity", owner)
			lookup, err = s.revenueCat.FetchSubscriber(ctx, fallback)
			if err != nil {
				return nil, apperr.Wrap(apperr.Internal, "billing provider unreachable", err)
			}
		}
	}

	switch {
	case lookup.Status == http.StatusNotFound:
		// Owner exists but has no subscriber record yet. Not an error: write
		// an explicit inactive state so the family record reflects reality.
		if err := s.ReconcileFamily(ctx, fam.ID, owner, billing.State{}); err != nil {
			return nil, apperr.Wrap(apperr.Internal, "failed to write entitlement state", err)
		}
		s.notifyPremiumChange(fam, false)
		return &SyncResult{OK: true, PremiumActive: false, PremiumUntilMs: nil}, nil

	case lookup.Status == http.StatusUnauthorized:
		return nil, apperr.New(apperr.FailedPrecondition, "billing provider rejected the server API key")

	case lookup.Status < 200 || lookup.Status > 299:
		return nil, apperr.New(apperr.Internal,
			fmt.Sprintf("billing provider returned %d: %s", lookup.Status, lookup.Body))
	}

	var state billing.State
	if ent, ok := lookup.Subscriber.Subscriber.Entitlements[s.entitlementID]; ok {
		state = billing.StateFromSubscriber(ent.Active, ent.ExpiresDateMs)
	}

	if err := s.ReconcileFamily(ctx, fam.ID, owner, state); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to write entitlement state", err)
	}
	s.notifyPremiumChange(fam, state.PremiumActive)

	result := &SyncResult{OK: true, PremiumActive: state.PremiumActive}
	if state.PremiumActive && state.PremiumUntil != nil {
		ms := state.PremiumUntil.UnixMilli()
		result.PremiumUntilMs = &ms
	}
	return result, nil
}

// resolvePremiumOwner picks whose billing status gates the family: the
// creator, else a previously reconciled owner, else the caller.
func resolvePremiumOwner(fam *family.Family, callerID string) string {
	if fam.CreatedBy != "" {
		return fam.CreatedBy
	}
	if fam.PremiumOwner != "" {
		return fam.PremiumOwner
	}
	return callerID
}

// fallbackIdentity returns the owner's stored anonymous billing alias, if
// any. Providers alias anonymous installs to authenticated users; the alias
// is recorded on the user document when known and this path is a no-op when
// it is not.
func (s *PremiumService) fallbackIdentity(ctx context.Context, caller *user.User, owner string) string {
	if caller.ID == owner {
		return caller.RCFallbackID
	}
	ownerUser, err := s.store.GetUser(ctx, owner)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Printf("Failed to load owner %s for fallback identity: %v", owner, err)
		}
		return ""
	}
	return ownerUser.RCFallbackID
}

func (s *PremiumService) notifyPremiumChange(fam *family.Family, nowActive bool) {
	if s.notifier == nil || fam.PremiumActive == nowActive {
		return
	}
	title := "Premium activated"
	body := "Your family now has PantryPal Premium."
	if !nowActive {
		title = "Premium expired"
		body = "Your family's PantryPal Premium is no longer active."
	}
	s.notifier.Notify(&PushJob{FamilyID: fam.ID, Title: title, Body: body})
}
