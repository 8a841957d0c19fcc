package services

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"pantryPalAPI/internal/types/apperr"
	"pantryPalAPI/internal/types/fridge"
)

const fridgeCollection = "fridge"

type FridgeService struct {
	client *firestore.Client
	store  Store
}

func NewFridgeService(client *firestore.Client, store Store) *FridgeService {
	return &FridgeService{client: client, store: store}
}

func (s *FridgeService) fridgeRef(familyID string) *firestore.CollectionRef {
	return s.client.Collection(familiesCollection).Doc(familyID).Collection(fridgeCollection)
}

func (s *FridgeService) ListItems(ctx context.Context, clerkID string) ([]*fridge.Item, error) {
	familyID, err := resolveFamily(ctx, s.store, clerkID)
	if err != nil {
		return nil, err
	}

	iter := s.fridgeRef(familyID).OrderBy("name", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	items := []*fridge.Item{}
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, "failed to list fridge items", err)
		}

		item := &fridge.Item{}
		if err := snap.DataTo(item); err != nil {
			return nil, apperr.Wrap(apperr.Internal, "failed to decode fridge item", err)
		}
		item.ID = snap.Ref.ID
		items = append(items, item)
	}

	return items, nil
}

func (s *FridgeService) AddItem(ctx context.Context, clerkID string, req *fridge.AddItemRequest) (*fridge.Item, error) {
	familyID, err := resolveFamily(ctx, s.store, clerkID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	item := &fridge.Item{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Quantity:  req.Quantity,
		Unit:      req.Unit,
		Category:  req.Category,
		ExpiresAt: req.ExpiresAt,
		AddedBy:   clerkID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := s.fridgeRef(familyID).Doc(item.ID).Set(ctx, item); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to add fridge item", err)
	}

	return item, nil
}

// UpdateQuantity sets the remaining amount; zero or less removes the item.
func (s *FridgeService) UpdateQuantity(ctx context.Context, clerkID, itemID string, quantity float64) error {
	familyID, err := resolveFamily(ctx, s.store, clerkID)
	if err != nil {
		return err
	}

	if quantity <= 0 {
		if _, err := s.fridgeRef(familyID).Doc(itemID).Delete(ctx); err != nil {
			return apperr.Wrap(apperr.Internal, "failed to remove fridge item", err)
		}
		return nil
	}

	_, err = s.fridgeRef(familyID).Doc(itemID).Update(ctx, []firestore.Update{
		{Path: "quantity", Value: quantity},
		{Path: "updatedAt", Value: time.Now()},
	})
	if status.Code(err) == codes.NotFound {
		return apperr.New(apperr.NotFound, "fridge item not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.Internal, "failed to update fridge item", err)
	}
	return nil
}

func (s *FridgeService) RemoveItem(ctx context.Context, clerkID, itemID string) error {
	familyID, err := resolveFamily(ctx, s.store, clerkID)
	if err != nil {
		return err
	}

	if _, err := s.fridgeRef(familyID).Doc(itemID).Delete(ctx); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to remove fridge item", err)
	}
	return nil
}
