package subscriptions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_CreateGetSave(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	sub := NewTrial(42, now, 30, 0)
	require.NoError(t, store.Create(ctx, sub))
	assert.NotZero(t, sub.ID)
	assert.Equal(t, 1, sub.MaxSchools)

	got, err := store.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, uint(42), got.OwnerID)

	stripeID := "sub_123"
	got.StripeSubscriptionID = &stripeID
	require.NoError(t, store.Save(ctx, got))

	byStripe, err := store.GetByStripeID(ctx, "sub_123")
	require.NoError(t, err)
	assert.Equal(t, sub.ID, byStripe.ID)

	_, err = store.Get(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ExpireTrialsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	ended := &Subscription{Status: StatusTrial, TrialEndsAt: at(-day)}
	running := &Subscription{Status: StatusTrial, TrialEndsAt: at(day)}
	paid := &Subscription{Status: StatusActive, RenewsAt: at(day)}
	for _, s := range []*Subscription{ended, running, paid} {
		require.NoError(t, store.Create(ctx, s))
	}

	n, err := store.ExpireTrials(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.ExpireTrials(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	got, _ := store.Get(ctx, ended.ID)
	assert.Equal(t, StatusExpired, got.Status)
	got, _ = store.Get(ctx, running.ID)
	assert.Equal(t, StatusTrial, got.Status)
}
