package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"pantryPalAPI/internal/types/apperr"
	"pantryPalAPI/internal/types/basket"
	"pantryPalAPI/internal/types/fridge"
)

const basketCollection = "basket"

type BasketService struct {
	client   *firestore.Client
	store    Store
	notifier *NotificationDispatcher
}

func NewBasketService(client *firestore.Client, store Store) *BasketService {
	return &BasketService{client: client, store: store}
}

func (s *BasketService) SetNotifier(notifier *NotificationDispatcher) {
	s.notifier = notifier
}

func (s *BasketService) basketRef(familyID string) *firestore.CollectionRef {
	return s.client.Collection(familiesCollection).Doc(familyID).Collection(basketCollection)
}

func (s *BasketService) ListItems(ctx context.Context, clerkID string) ([]*basket.Item, error) {
	familyID, err := resolveFamily(ctx, s.store, clerkID)
	if err != nil {
		return nil, err
	}

	iter := s.basketRef(familyID).OrderBy("createdAt", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	items := []*basket.Item{}
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, "failed to list basket items", err)
		}

		item := &basket.Item{}
		if err := snap.DataTo(item); err != nil {
			return nil, apperr.Wrap(apperr.Internal, "failed to decode basket item", err)
		}
		item.ID = snap.Ref.ID
		items = append(items, item)
	}

	return items, nil
}

func (s *BasketService) AddItem(ctx context.Context, clerkID string, req *basket.AddItemRequest) (*basket.Item, error) {
	familyID, err := resolveFamily(ctx, s.store, clerkID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	item := &basket.Item{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Quantity:  req.Quantity,
		Unit:      req.Unit,
		AddedBy:   clerkID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := s.basketRef(familyID).Doc(item.ID).Set(ctx, item); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to add basket item", err)
	}

	s.notifyAdded(ctx, familyID, clerkID, item)
	return item, nil
}

// TickItem marks a basket item as bought: the item lands in the fridge and
// the basket row stays behind, crossed out, until ClearTicked sweeps it.
// Fridge write and basket flag move in one transaction.
func (s *BasketService) TickItem(ctx context.Context, clerkID, itemID string) error {
	familyID, err := resolveFamily(ctx, s.store, clerkID)
	if err != nil {
		return err
	}

	basketDoc := s.basketRef(familyID).Doc(itemID)
	fridgeDoc := s.client.Collection(familiesCollection).Doc(familyID).Collection(fridgeCollection).Doc(itemID)

	err = s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(basketDoc)
		if err != nil {
			return err
		}

		item := &basket.Item{}
		if err := snap.DataTo(item); err != nil {
			return err
		}

		now := time.Now()
		if err := tx.Set(fridgeDoc, &fridge.Item{
			ID:        itemID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Unit:      item.Unit,
			AddedBy:   clerkID,
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			return err
		}

		return tx.Update(basketDoc, []firestore.Update{
			{Path: "ticked", Value: true},
			{Path: "updatedAt", Value: now},
		})
	})
	if status.Code(err) == codes.NotFound {
		return apperr.New(apperr.NotFound, "basket item not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.Internal, "failed to tick basket item", err)
	}
	return nil
}

func (s *BasketService) RemoveItem(ctx context.Context, clerkID, itemID string) error {
	familyID, err := resolveFamily(ctx, s.store, clerkID)
	if err != nil {
		return err
	}

	if _, err := s.basketRef(familyID).Doc(itemID).Delete(ctx); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to remove basket item", err)
	}
	return nil
}

// ClearTicked deletes every ticked item still sitting in the basket.
func (s *BasketService) ClearTicked(ctx context.Context, clerkID string) (int, error) {
	familyID, err := resolveFamily(ctx, s.store, clerkID)
	if err != nil {
		return 0, err
	}

	iter := s.basketRef(familyID).Where("ticked", "==", true).Documents(ctx)
	defer iter.Stop()

	writer := s.client.BulkWriter(ctx)
	var jobs []*firestore.BulkWriterJob
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return 0, apperr.Wrap(apperr.Internal, "failed to list ticked items", err)
		}
		job, err := writer.Delete(snap.Ref)
		if err != nil {
			return 0, apperr.Wrap(apperr.Internal, "failed to queue delete", err)
		}
		jobs = append(jobs, job)
	}
	writer.End()

	// Only deletes the server confirmed count as cleared.
	cleared := 0
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			log.Printf("Failed to clear ticked basket item: %v", err)
			continue
		}
		cleared++
	}

	return cleared, nil
}

func (s *BasketService) notifyAdded(ctx context.Context, familyID, clerkID string, item *basket.Item) {
	if s.notifier == nil {
		return
	}

	// Best-effort display name; the add already succeeded.
	who := "Someone"
	if u, err := s.store.GetUser(ctx, clerkID); err == nil && u.DisplayName != "" {
		who = u.DisplayName
	}

	s.notifier.Notify(&PushJob{
		FamilyID:      familyID,
		ExcludeUserID: clerkID,
		Title:         "Basket updated",
		Body:          fmt.Sprintf("%s added %s to the shopping basket", who, item.Name),
		Data:          map[string]string{"itemId": item.ID},
	})
}
