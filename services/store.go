package services

import (
	"context"
	"errors"

	"pantryPalAPI/internal/types/apperr"
	"pantryPalAPI/internal/types/family"
	"pantryPalAPI/internal/types/user"
)

// ErrNotFound is returned by Store lookups for missing documents.
var ErrNotFound = errors.New("document not found")

// Store is the narrow document-store surface the premium reconciliation path
// and the notification dispatcher depend on. Keeping it an interface lets
// those run against an in-memory fake in tests; the rest of the services talk
// to Firestore directly.
type Store interface {
	GetUser(ctx context.Context, id string) (*user.User, error)
	GetFamily(ctx context.Context, id string) (*family.Family, error)

	// SetFamily merge-writes the given fields onto families/{id}, creating
	// the document if absent. Values may be firestore sentinels
	// (firestore.Delete, firestore.ServerTimestamp).
	SetFamily(ctx context.Context, id string, fields map[string]any) error
}

// resolveFamily maps an authenticated caller to their family ID with typed
// errors the handlers can translate directly.
func resolveFamily(ctx context.Context, store Store, clerkID string) (string, error) {
	u, err := store.GetUser(ctx, clerkID)
	if errors.Is(err, ErrNotFound) {
		return "", apperr.New(apperr.NotFound, "user record not found")
	}
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, "failed to look up user", err)
	}
	if u.FamilyID == "" {
		return "", apperr.New(apperr.FailedPrecondition, "user has no family")
	}
	return u.FamilyID, nil
}
