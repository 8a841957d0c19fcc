package services

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pantryPalAPI/internal/types/family"
	"pantryPalAPI/internal/types/user"
)

type capturedPush struct {
	tokens []string
	title  string
	body   string
	data   map[string]string
}

// channelPushProvider hands every push to the test over a channel so the test
// can wait for the async worker without sleeping.
type channelPushProvider struct {
	pushes chan capturedPush
}

func (p *channelPushProvider) SendPush(_ context.Context, tokens []string, title, body string, data map[string]string) error {
	p.pushes <- capturedPush{tokens: tokens, title: title, body: body, data: data}
	return nil
}

func TestDispatcherFansOutToFamilyExceptSender(t *testing.T) {
	store := newFakeStore()
	store.families["fam7"] = &family.Family{
		ID:      "fam7",
		Members: []string{"u1", "u2", "u3", "gone"},
	}
	store.users["u1"] = &user.User{ID: "u1", FamilyID: "fam7", FCMTokens: []string{"tok-a"}}
	store.users["u2"] = &user.User{ID: "u2", FamilyID: "fam7", FCMTokens: []string{"tok-b", "tok-c"}}
	store.users["u3"] = &user.User{ID: "u3", FamilyID: "fam7"}

	provider := &channelPushProvider{pushes: make(chan capturedPush, 1)}
	d := NewNotificationDispatcher(store)
	d.SetPushProvider(provider)
	defer d.Stop()

	d.Notify(&PushJob{
		FamilyID:      "fam7",
		ExcludeUserID: "u1",
		Title:         "Basket updated",
		Body:          "Milk was added to the basket",
	})

	select {
	case push := <-provider.pushes:
		sort.Strings(push.tokens)
		assert.Equal(t, []string{"tok-b", "tok-c"}, push.tokens, "sender and missing members must be skipped")
		assert.Equal(t, "Basket updated", push.title)
	case <-time.After(2 * time.Second):
		t.Fatal("push was never dispatched")
	}
}

func TestDispatcherSkipsPushWhenNoTokens(t *testing.T) {
	store := newFakeStore()
	store.families["fam7"] = &family.Family{ID: "fam7", Members: []string{"u1"}}
	store.users["u1"] = &user.User{ID: "u1", FamilyID: "fam7", FCMTokens: []string{"tok-a"}}

	provider := &channelPushProvider{pushes: make(chan capturedPush, 1)}
	d := NewNotificationDispatcher(store)
	d.SetPushProvider(provider)

	// The only member is the sender, so nothing should go out.
	d.Notify(&PushJob{FamilyID: "fam7", ExcludeUserID: "u1", Title: "x", Body: "y"})

	d.Stop()
	select {
	case push := <-provider.pushes:
		t.Fatalf("unexpected push to %v", push.tokens)
	default:
	}
}

func TestMemberTokens(t *testing.T) {
	store := newFakeStore()
	store.families["fam7"] = &family.Family{ID: "fam7", Members: []string{"u1", "u2"}}
	store.users["u1"] = &user.User{ID: "u1", FCMTokens: []string{"tok-a"}}
	store.users["u2"] = &user.User{ID: "u2", FCMTokens: []string{"tok-b"}}

	d := NewNotificationDispatcher(store)
	defer d.Stop()

	tokens, err := d.memberTokens(context.Background(), "fam7", "")
	require.NoError(t, err)
	sort.Strings(tokens)
	assert.Equal(t, []string{"tok-a", "tok-b"}, tokens)

	_, err = d.memberTokens(context.Background(), "nope", "")
	assert.Error(t, err)
}
