package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msPtr(v int64) *int64 { return &v }

func TestComputeStateExpirationAlwaysDeactivates(t *testing.T) {
	now := time.Now()
	future := now.Add(30 * 24 * time.Hour).UnixMilli()

	// Even a future timestamp cannot rescue an EXPIRATION event.
	state := ComputeState(&Event{Type: TypeExpiration, ExpirationMs: msPtr(future)}, now)
	assert.False(t, state.PremiumActive)
	assert.Nil(t, state.PremiumUntil)
}

func TestComputeStateFutureExpiryWins(t *testing.T) {
	now := time.Now()
	future := now.Add(24 * time.Hour).UnixMilli()

	// A non-activating type with a future timestamp is still active.
	state := ComputeState(&Event{Type: "BILLING_ISSUE", ExpirationMs: msPtr(future)}, now)
	assert.True(t, state.PremiumActive)
	require.NotNil(t, state.PremiumUntil)
	assert.Equal(t, future, state.PremiumUntil.UnixMilli())
}

func TestComputeStatePastExpiry(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour).UnixMilli()

	state := ComputeState(&Event{Type: TypeRenewal, ExpirationMs: msPtr(past)}, now)
	assert.False(t, state.PremiumActive)
	require.NotNil(t, state.PremiumUntil)
	assert.Equal(t, past, state.PremiumUntil.UnixMilli())
}

func TestComputeStateTypeHeuristicWithoutTimestamp(t *testing.T) {
	now := time.Now()

	for _, typ := range []string{TypeInitialPurchase, TypeRenewal, TypeUncancellation} {
		state := ComputeState(&Event{Type: typ}, now)
		assert.True(t, state.PremiumActive, typ)
		assert.Nil(t, state.PremiumUntil, typ)
	}

	for _, typ := range []string{TypeExpiration, TypeUnknown, "CANCELLATION", "BILLING_ISSUE"} {
		state := ComputeState(&Event{Type: typ}, now)
		assert.False(t, state.PremiumActive, typ)
		assert.Nil(t, state.PremiumUntil, typ)
	}
}

func TestComputeStateZeroTimestampIgnored(t *testing.T) {
	now := time.Now()

	state := ComputeState(&Event{Type: TypeRenewal, ExpirationMs: msPtr(0)}, now)
	assert.True(t, state.PremiumActive)
	assert.Nil(t, state.PremiumUntil)

	state = ComputeState(&Event{Type: TypeRenewal, ExpirationMs: msPtr(-5)}, now)
	assert.True(t, state.PremiumActive)
	assert.Nil(t, state.PremiumUntil)
}

func TestStateFromSubscriber(t *testing.T) {
	future := time.Now().Add(time.Hour).UnixMilli()

	state := StateFromSubscriber(true, future)
	assert.True(t, state.PremiumActive)
	require.NotNil(t, state.PremiumUntil)
	assert.Equal(t, future, state.PremiumUntil.UnixMilli())

	state = StateFromSubscriber(false, 0)
	assert.False(t, state.PremiumActive)
	assert.Nil(t, state.PremiumUntil)
}
