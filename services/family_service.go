package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"pantryPalAPI/internal/types/apperr"
	"pantryPalAPI/internal/types/family"
)

type FamilyService struct {
	client *firestore.Client
	store  Store
}

func NewFamilyService(client *firestore.Client, store Store) *FamilyService {
	return &FamilyService{client: client, store: store}
}

// CreateFamily makes the caller the creator (and therefore the premium owner)
// of a new family.
func (s *FamilyService) CreateFamily(ctx context.Context, clerkID, name string) (*family.Family, error) {
	u, err := s.store.GetUser(ctx, clerkID)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.New(apperr.NotFound, "user record not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to look up user", err)
	}
	if u.FamilyID != "" {
		return nil, apperr.New(apperr.FailedPrecondition, "user already belongs to a family")
	}

	fam := &family.Family{
		ID:         uuid.NewString(),
		Name:       name,
		InviteCode: newInviteCode(),
		CreatedBy:  clerkID,
		Members:    []string{clerkID},
		CreatedAt:  time.Now(),
	}

	if _, err := s.client.Collection(familiesCollection).Doc(fam.ID).Set(ctx, fam); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to create family", err)
	}

	if err := s.setUserFamily(ctx, clerkID, fam.ID); err != nil {
		return nil, err
	}

	return fam, nil
}

// JoinFamily adds the caller to the family with the given invite code.
func (s *FamilyService) JoinFamily(ctx context.Context, clerkID, inviteCode string) (*family.Family, error) {
	u, err := s.store.GetUser(ctx, clerkID)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.New(apperr.NotFound, "user record not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to look up user", err)
	}
	if u.FamilyID != "" {
		return nil, apperr.New(apperr.FailedPrecondition, "user already belongs to a family")
	}

	iter := s.client.Collection(familiesCollection).
		Where("inviteCode", "==", strings.ToUpper(strings.TrimSpace(inviteCode))).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return nil, apperr.New(apperr.NotFound, "no family with that invite code")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to look up invite code", err)
	}

	fam := &family.Family{}
	if err := snap.DataTo(fam); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to decode family", err)
	}
	fam.ID = snap.Ref.ID

	if _, err := snap.Ref.Update(ctx, []firestore.Update{
		{Path: "members", Value: firestore.ArrayUnion(clerkID)},
	}); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to join family", err)
	}

	if err := s.setUserFamily(ctx, clerkID, fam.ID); err != nil {
		return nil, err
	}

	fam.Members = append(fam.Members, clerkID)
	return fam, nil
}

// LeaveFamily detaches the caller from their family. The family document is
// kept; an empty family just sits there until someone joins by code again.
func (s *FamilyService) LeaveFamily(ctx context.Context, clerkID string) error {
	familyID, err := resolveFamily(ctx, s.store, clerkID)
	if err != nil {
		return err
	}

	if _, err := s.client.Collection(familiesCollection).Doc(familyID).Update(ctx, []firestore.Update{
		{Path: "members", Value: firestore.ArrayRemove(clerkID)},
	}); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to leave family", err)
	}

	if _, err := s.client.Collection(usersCollection).Doc(clerkID).Update(ctx, []firestore.Update{
		{Path: "familyId", Value: firestore.Delete},
		{Path: "updatedAt", Value: time.Now()},
	}); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to detach user", err)
	}

	return nil
}

// GetFamily returns the caller's family.
func (s *FamilyService) GetFamily(ctx context.Context, clerkID string) (*family.Family, error) {
	familyID, err := resolveFamily(ctx, s.store, clerkID)
	if err != nil {
		return nil, err
	}

	fam, err := s.store.GetFamily(ctx, familyID)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.New(apperr.NotFound, "family record not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to look up family", err)
	}
	return fam, nil
}

func (s *FamilyService) setUserFamily(ctx context.Context, clerkID, familyID string) error {
	_, err := s.client.Collection(usersCollection).Doc(clerkID).Update(ctx, []firestore.Update{
		{Path: "familyId", Value: familyID},
		{Path: "updatedAt", Value: time.Now()},
	})
	if err != nil {
		return apperr.Wrap(apperr.Internal, "failed to attach user to family", err)
	}
	return nil
}

// newInviteCode returns a short human-typeable code. Uniqueness is best
// effort; a collision just means two families share a code and join picks the
// first, which a rename of the code fixes.
func newInviteCode() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(id[:6])
}
