package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

const (
	revenueCatBaseURL = "https://api.revenuecat.com/v1"

	// One retry after a fixed delay is the whole retry budget. Transient
	// provider hiccups get a second chance, persistent failures surface.
	revenueCatRetryDelay = 800 * time.Millisecond
)

// SubscriberLookup is the outcome of one subscriber fetch. Status is the
// final HTTP status after any retry; Subscriber is set only on 2xx; Body is
// the raw response body, truncated, for diagnostics.
type SubscriberLookup struct {
	Status     int
	Subscriber *Subscriber
	Body       []byte
}

type Subscriber struct {
	Subscriber SubscriberAttributes `json:"subscriber"`
}

type SubscriberAttributes struct {
	Entitlements map[string]SubscriberEntitlement `json:"entitlements"`
}

type SubscriberEntitlement struct {
	Active            bool   `json:"active"`
	ExpiresDateMs     int64  `json:"expires_date_ms"`
	ProductIdentifier string `json:"product_identifier"`
}

// RevenueCatService calls the RevenueCat REST API. RevenueCat has no official
// Go SDK, so this is a plain HTTP client with the server-held secret key.
type RevenueCatService struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
	retryDelay time.Duration
}

func NewRevenueCatService(secretKey string) *RevenueCatService {
	prefix := secretKey
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	log.Printf("RevenueCat client initialized (key prefix %s...)", prefix)

	return &RevenueCatService{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    revenueCatBaseURL,
		secretKey:  secretKey,
		retryDelay: revenueCatRetryDelay,
	}
}

// FetchSubscriber looks up a subscriber by app user ID. A 429 or any 5xx is
// retried exactly once after the fixed delay; every other status is returned
// as-is. The returned error covers transport failures only.
func (s *RevenueCatService) FetchSubscriber(ctx context.Context, appUserID string) (*SubscriberLookup, error) {
	lookup, err := s.fetchOnce(ctx, appUserID)
	if err != nil {
		return nil, err
	}

	if lookup.Status == http.StatusTooManyRequests || lookup.Status >= 500 {
		log.Printf("RevenueCat returned %d for subscriber lookup, retrying once", lookup.Status)
		select {
		case <-time.After(s.retryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return s.fetchOnce(ctx, appUserID)
	}

	return lookup, nil
}

func (s *RevenueCatService) fetchOnce(ctx context.Context, appUserID string) (*SubscriberLookup, error) {
	endpoint := fmt.Sprintf("%s/subscribers/%s", s.baseURL, url.PathEscape(appUserID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build subscriber request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("subscriber request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return nil, fmt.Errorf("failed to read subscriber response: %w", err)
	}

	lookup := &SubscriberLookup{Status: resp.StatusCode, Body: truncate(body, 200)}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		sub := &Subscriber{}
		if err := json.Unmarshal(body, sub); err != nil {
			return nil, fmt.Errorf("failed to parse subscriber response: %w", err)
		}
		lookup.Subscriber = sub
	}

	return lookup, nil
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
