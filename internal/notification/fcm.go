package notification

import (
	"context"
	"fmt"
	"log"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
)

// FCMService sends push notifications through Firebase Cloud Messaging.
type FCMService struct {
	client *messaging.Client
}

// NewFCMService gets a messaging client from the shared Firebase app.
func NewFCMService(app *firebase.App) (*FCMService, error) {
	client, err := app.Messaging(context.Background())
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %v", err)
	}
	return &FCMService{client: client}, nil
}

// SendPush delivers one notification to every token. Invalid tokens are
// logged and skipped; a partial delivery is not an error.
func (s *FCMService) SendPush(ctx context.Context, tokens []string, title, body string, data map[string]string) error {
	if len(tokens) == 0 {
		return nil
	}

	message := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	}

	resp, err := s.client.SendEachForMulticast(ctx, message)
	if err != nil {
		return fmt.Errorf("fcm multicast failed: %v", err)
	}

	if resp.FailureCount > 0 {
		for i, r := range resp.Responses {
			if r.Error != nil {
				log.Printf("FCM delivery to token %d failed: %v", i, r.Error)
			}
		}
	}

	return nil
}
