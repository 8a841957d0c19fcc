package services

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"pantryPalAPI/internal/types/user"
)

type UserService struct {
	client *firestore.Client
}

func NewUserService(client *firestore.Client) *UserService {
	return &UserService{client: client}
}

// CreateUser writes the user document keyed by the Clerk ID. The Clerk ID is
// also the app_user_id the billing provider sees.
func (s *UserService) CreateUser(ctx context.Context, req *user.CreateUserRequest) (*user.User, error) {
	now := time.Now()
	u := &user.User{
		ID:          req.ClerkID,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		ImageURL:    req.ImageURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := s.client.Collection(usersCollection).Doc(req.ClerkID).Set(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return u, nil
}

func (s *UserService) GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	snap, err := s.client.Collection(usersCollection).Doc(clerkID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	u := &user.User{}
	if err := snap.DataTo(u); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	u.ID = snap.Ref.ID
	return u, nil
}

func (s *UserService) UpdateProfileByClerkID(ctx context.Context, clerkID string, req *user.UpdateProfileRequest) error {
	_, err := s.client.Collection(usersCollection).Doc(clerkID).Update(ctx, []firestore.Update{
		{Path: "displayName", Value: req.DisplayName},
		{Path: "imageUrl", Value: req.ImageURL},
		{Path: "updatedAt", Value: time.Now()},
	})
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// DeleteUserByClerkID removes the user document and detaches the user from
// their family, if any.
func (s *UserService) DeleteUserByClerkID(ctx context.Context, clerkID string) error {
	u, err := s.GetUserByClerkID(ctx, clerkID)
	if err != nil && err != ErrNotFound {
		return err
	}

	if u != nil && u.FamilyID != "" {
		_, err = s.client.Collection(familiesCollection).Doc(u.FamilyID).Update(ctx, []firestore.Update{
			{Path: "members", Value: firestore.ArrayRemove(clerkID)},
		})
		if err != nil {
			return fmt.Errorf("failed to detach user from family: %w", err)
		}
	}

	if _, err := s.client.Collection(usersCollection).Doc(clerkID).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// RegisterDevice records an FCM device token on the user document.
func (s *UserService) RegisterDevice(ctx context.Context, clerkID, token string) error {
	_, err := s.client.Collection(usersCollection).Doc(clerkID).Update(ctx, []firestore.Update{
		{Path: "fcmTokens", Value: firestore.ArrayUnion(token)},
		{Path: "updatedAt", Value: time.Now()},
	})
	if err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	return nil
}
