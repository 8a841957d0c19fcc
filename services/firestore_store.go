package services

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"pantryPalAPI/internal/types/family"
	"pantryPalAPI/internal/types/user"
)

const (
	usersCollection    = "users"
	familiesCollection = "families"
)

// FirestoreStore is the production Store backed by Cloud Firestore.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) GetUser(ctx context.Context, id string) (*user.User, error) {
	snap, err := s.client.Collection(usersCollection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user %s: %w", id, err)
	}

	u := &user.User{}
	if err := snap.DataTo(u); err != nil {
		return nil, fmt.Errorf("failed to decode user %s: %w", id, err)
	}
	u.ID = snap.Ref.ID
	return u, nil
}

func (s *FirestoreStore) GetFamily(ctx context.Context, id string) (*family.Family, error) {
	snap, err := s.client.Collection(familiesCollection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read family %s: %w", id, err)
	}

	f := &family.Family{}
	if err := snap.DataTo(f); err != nil {
		return nil, fmt.Errorf("failed to decode family %s: %w", id, err)
	}
	f.ID = snap.Ref.ID
	return f, nil
}

func (s *FirestoreStore) SetFamily(ctx context.Context, id string, fields map[string]any) error {
	_, err := s.client.Collection(familiesCollection).Doc(id).Set(ctx, fields, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to write family %s: %w", id, err)
	}
	return nil
}
