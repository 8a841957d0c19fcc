package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pantryPalAPI/internal/billing"
	"pantryPalAPI/internal/types/apperr"
	"pantryPalAPI/internal/types/family"
	"pantryPalAPI/internal/types/user"
)

// fakeStore is an in-memory Store that interprets the firestore write
// sentinels the same way a merge write would.
type fakeStore struct {
	mu       sync.Mutex
	users    map[string]*user.User
	families map[string]*family.Family
	docs     map[string]map[string]any
	setCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[string]*user.User),
		families: make(map[string]*family.Family),
		docs:     make(map[string]map[string]any),
	}
}

func (f *fakeStore) GetUser(_ context.Context, id string) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) GetFamily(_ context.Context, id string) (*family.Family, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fam, ok := f.families[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *fam
	return &cp, nil
}

func (f *fakeStore) SetFamily(_ context.Context, id string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls++
	doc, ok := f.docs[id]
	if !ok {
		doc = make(map[string]any)
		f.docs[id] = doc
	}
	for k, v := range fields {
		switch v {
		case firestore.Delete:
			delete(doc, k)
		case firestore.ServerTimestamp:
			doc[k] = time.Now()
		default:
			doc[k] = v
		}
	}
	return nil
}

func (f *fakeStore) doc(id string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[id]
}

// scriptedServer returns a subscriber endpoint that walks through the given
// responses in order and counts requests per path.
func scriptedServer(t *testing.T, responses []func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls >= len(responses) {
			t.Errorf("unexpected request #%d to %s", calls+1, r.URL.Path)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		responses[calls](w, r)
		calls++
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func testRevenueCat(srv *httptest.Server) *RevenueCatService {
	return &RevenueCatService{
		httpClient: srv.Client(),
		baseURL:    srv.URL,
		secretKey:  "sk_test",
		retryDelay: time.Millisecond,
	}
}

func activeSubscriberBody(entitlementID string, expiresMs int64) string {
	return fmt.Sprintf(`{"subscriber":{"entitlements":{%q:{"active":true,"expires_date_ms":%d}}}}`,
		entitlementID, expiresMs)
}

func seedFamilyUser(store *fakeStore) {
	store.users["u1"] = &user.User{ID: "u1", FamilyID: "fam7"}
	store.families["fam7"] = &family.Family{ID: "fam7", CreatedBy: "u1", Members: []string{"u1"}}
}

func TestReconcileFamilyWritesDerivedState(t *testing.T) {
	store := newFakeStore()
	svc := NewPremiumService(store, nil, "premium")

	until := time.Now().Add(30 * 24 * time.Hour)
	err := svc.ReconcileFamily(context.Background(), "fam7", "u1", billing.State{
		PremiumActive: true,
		PremiumUntil:  &until,
	})
	require.NoError(t, err)

	doc := store.doc("fam7")
	assert.Equal(t, "u1", doc["premiumOwner"])
	assert.Equal(t, true, doc["premiumActive"])
	assert.Equal(t, until, doc["premiumUntil"])
	assert.NotNil(t, doc["premiumUpdatedAt"])
}

func TestReconcileFamilyClearsStaleExpiry(t *testing.T) {
	store := newFakeStore()
	store.docs["fam7"] = map[string]any{
		"name":          "The Smiths",
		"premiumActive": true,
		"premiumUntil":  time.Now().Add(time.Hour),
	}
	svc := NewPremiumService(store, nil, "premium")

	err := svc.ReconcileFamily(context.Background(), "fam7", "u1", billing.State{})
	require.NoError(t, err)

	doc := store.doc("fam7")
	assert.Equal(t, false, doc["premiumActive"])
	_, hasUntil := doc["premiumUntil"]
	assert.False(t, hasUntil, "inactive state must delete premiumUntil")
	assert.Equal(t, "The Smiths", doc["name"], "merge write must not touch unrelated fields")
}

func TestReconcileFamilyIsIdempotent(t *testing.T) {
	store := newFakeStore()
	svc := NewPremiumService(store, nil, "premium")

	until := time.Now().Add(time.Hour)
	state := billing.State{PremiumActive: true, PremiumUntil: &until}

	require.NoError(t, svc.ReconcileFamily(context.Background(), "fam7", "u1", state))
	first := map[string]any{}
	for k, v := range store.doc("fam7") {
		first[k] = v
	}

	require.NoError(t, svc.ReconcileFamily(context.Background(), "fam7", "u1", state))
	second := store.doc("fam7")

	assert.Equal(t, first["premiumOwner"], second["premiumOwner"])
	assert.Equal(t, first["premiumActive"], second["premiumActive"])
	assert.Equal(t, first["premiumUntil"], second["premiumUntil"])
	assert.Equal(t, 2, store.setCalls)
}

func TestApplyBillingEventOutcomes(t *testing.T) {
	store := newFakeStore()
	store.users["loner"] = &user.User{ID: "loner"}
	seedFamilyUser(store)
	svc := NewPremiumService(store, nil, "premium")
	ctx := context.Background()

	outcome, err := svc.ApplyBillingEvent(ctx, &billing.Event{Type: billing.TypeRenewal, AppUserID: "ghost"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUserNotFound, outcome)
	assert.Zero(t, store.setCalls)

	outcome, err = svc.ApplyBillingEvent(ctx, &billing.Event{Type: billing.TypeRenewal, AppUserID: "loner"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoFamily, outcome)
	assert.Zero(t, store.setCalls)

	outcome, err = svc.ApplyBillingEvent(ctx, &billing.Event{Type: billing.TypeRenewal, AppUserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeReconciled, outcome)

	doc := store.doc("fam7")
	assert.Equal(t, true, doc["premiumActive"])
	assert.Equal(t, "u1", doc["premiumOwner"])
}

func TestApplyBillingEventNotifiesOnPremiumFlip(t *testing.T) {
	store := newFakeStore()
	store.users["u1"] = &user.User{ID: "u1", FamilyID: "fam7", FCMTokens: []string{"tok-a"}}
	store.users["u2"] = &user.User{ID: "u2", FamilyID: "fam7", FCMTokens: []string{"tok-b"}}
	store.families["fam7"] = &family.Family{
		ID:            "fam7",
		CreatedBy:     "u1",
		Members:       []string{"u1", "u2"},
		PremiumActive: true,
	}

	provider := &channelPushProvider{pushes: make(chan capturedPush, 1)}
	dispatcher := NewNotificationDispatcher(store)
	dispatcher.SetPushProvider(provider)
	defer dispatcher.Stop()

	svc := NewPremiumService(store, nil, "premium")
	svc.SetNotifier(dispatcher)

	outcome, err := svc.ApplyBillingEvent(context.Background(),
		&billing.Event{Type: billing.TypeExpiration, AppUserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeReconciled, outcome)
	assert.Equal(t, false, store.doc("fam7")["premiumActive"])

	select {
	case push := <-provider.pushes:
		assert.Equal(t, "Premium expired", push.title)
	case <-time.After(2 * time.Second):
		t.Fatal("premium flipped but no push was dispatched")
	}
}

func TestApplyBillingEventNoPushWithoutFlip(t *testing.T) {
	store := newFakeStore()
	seedFamilyUser(store)
	store.users["u1"].FCMTokens = []string{"tok-a"}
	store.families["fam7"].PremiumActive = true

	provider := &channelPushProvider{pushes: make(chan capturedPush, 1)}
	dispatcher := NewNotificationDispatcher(store)
	dispatcher.SetPushProvider(provider)
	defer dispatcher.Stop()

	svc := NewPremiumService(store, nil, "premium")
	svc.SetNotifier(dispatcher)

	_, err := svc.ApplyBillingEvent(context.Background(),
		&billing.Event{Type: billing.TypeRenewal, AppUserID: "u1"})
	require.NoError(t, err)

	// A repeat of the current state must not notify anyone.
	select {
	case push := <-provider.pushes:
		t.Fatalf("unexpected push %q for an unchanged premium state", push.title)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestSyncPremiumRetriesOnceThenSucceeds(t *testing.T) {
	expires := time.Now().Add(24 * time.Hour).UnixMilli()
	srv, calls := scriptedServer(t, []func(http.ResponseWriter, *http.Request){
		func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) },
		func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, activeSubscriberBody("premium", expires))
		},
	})

	store := newFakeStore()
	seedFamilyUser(store)
	svc := NewPremiumService(store, testRevenueCat(srv), "premium")

	result, err := svc.SyncPremium(context.Background(), "u1", "")
	require.NoError(t, err)
	assert.Equal(t, 2, *calls)
	assert.True(t, result.OK)
	assert.True(t, result.PremiumActive)
	require.NotNil(t, result.PremiumUntilMs)
	assert.Equal(t, expires, *result.PremiumUntilMs)

	doc := store.doc("fam7")
	assert.Equal(t, true, doc["premiumActive"])
	assert.Equal(t, time.UnixMilli(expires), doc["premiumUntil"])
}

func TestSyncPremiumRetryBudgetIsOne(t *testing.T) {
	unavailable := func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	srv, calls := scriptedServer(t, []func(http.ResponseWriter, *http.Request){unavailable, unavailable})

	store := newFakeStore()
	seedFamilyUser(store)
	svc := NewPremiumService(store, testRevenueCat(srv), "premium")

	_, err := svc.SyncPremium(context.Background(), "u1", "")
	require.Error(t, err)
	assert.Equal(t, apperr.Internal, apperr.KindOf(err))
	assert.Equal(t, 2, *calls, "a second failure must not trigger another retry")
	assert.Zero(t, store.setCalls)
}

func TestSyncPremiumMissingSubscriberWritesInactive(t *testing.T) {
	srv, calls := scriptedServer(t, []func(http.ResponseWriter, *http.Request){
		func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNotFound) },
	})

	store := newFakeStore()
	seedFamilyUser(store)
	svc := NewPremiumService(store, testRevenueCat(srv), "premium")

	result, err := svc.SyncPremium(context.Background(), "u1", "")
	require.NoError(t, err)
	assert.Equal(t, 1, *calls)
	assert.True(t, result.OK)
	assert.False(t, result.PremiumActive)
	assert.Nil(t, result.PremiumUntilMs)

	doc := store.doc("fam7")
	assert.Equal(t, false, doc["premiumActive"])
	_, hasUntil := doc["premiumUntil"]
	assert.False(t, hasUntil)
}

func TestSyncPremiumFallbackIdentity(t *testing.T) {
	expires := time.Now().Add(time.Hour).UnixMilli()
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/subscribers/anon9" {
			fmt.Fprint(w, activeSubscriberBody("premium", expires))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	store := newFakeStore()
	seedFamilyUser(store)
	store.users["u1"].RCFallbackID = "anon9"
	svc := NewPremiumService(store, testRevenueCat(srv), "premium")

	result, err := svc.SyncPremium(context.Background(), "u1", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"/subscribers/u1", "/subscribers/anon9"}, paths)
	assert.True(t, result.PremiumActive)
	assert.Equal(t, true, store.doc("fam7")["premiumActive"])
}

func TestSyncPremiumRejectedAPIKey(t *testing.T) {
	srv, _ := scriptedServer(t, []func(http.ResponseWriter, *http.Request){
		func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusUnauthorized) },
	})

	store := newFakeStore()
	seedFamilyUser(store)
	svc := NewPremiumService(store, testRevenueCat(srv), "premium")

	_, err := svc.SyncPremium(context.Background(), "u1", "")
	require.Error(t, err)
	assert.Equal(t, apperr.FailedPrecondition, apperr.KindOf(err))
	assert.Zero(t, store.setCalls)
}

func TestSyncPremiumInactiveEntitlement(t *testing.T) {
	srv, _ := scriptedServer(t, []func(http.ResponseWriter, *http.Request){
		func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"subscriber":{"entitlements":{"premium":{"active":false,"expires_date_ms":0}}}}`)
		},
	})

	store := newFakeStore()
	seedFamilyUser(store)
	svc := NewPremiumService(store, testRevenueCat(srv), "premium")

	result, err := svc.SyncPremium(context.Background(), "u1", "")
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.False(t, result.PremiumActive)
	assert.Nil(t, result.PremiumUntilMs)
	assert.Equal(t, false, store.doc("fam7")["premiumActive"])
}

func TestSyncPremiumCallerChecks(t *testing.T) {
	store := newFakeStore()
	store.users["loner"] = &user.User{ID: "loner"}
	seedFamilyUser(store)
	svc := NewPremiumService(store, nil, "premium")
	ctx := context.Background()

	_, err := svc.SyncPremium(ctx, "ghost", "")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	_, err = svc.SyncPremium(ctx, "loner", "")
	assert.Equal(t, apperr.FailedPrecondition, apperr.KindOf(err))

	_, err = svc.SyncPremium(ctx, "u1", "someone-elses-family")
	assert.Equal(t, apperr.PermissionDenied, apperr.KindOf(err))
}
