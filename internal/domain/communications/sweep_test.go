package communications

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
	past, future := now.Add(-time.Hour), now.Add(time.Hour)

	store := NewMemoryStore()
	due := &Communication{SchoolID: 1, Title: "Sciopero", PublishAt: past}
	later := &Communication{SchoolID: 1, Title: "Gita", PublishAt: future}
	expired := &Communication{SchoolID: 1, Title: "Vecchio", PublishAt: past.Add(-time.Hour), ExpiresAt: &past, IsActive: true}
	stale := &Communication{SchoolID: 1, Title: "Mai visto", PublishAt: past.Add(-time.Hour), ExpiresAt: &past}
	for _, c := range []*Communication{due, later, expired, stale} {
		require.NoError(t, store.Create(ctx, c))
	}

	res, err := Sweep(ctx, store, now, nil)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Activated: 1, Deactivated: 1}, res)

	active, err := store.ListActive(ctx, 1)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Sciopero", active[0].Title)

	again, err := Sweep(ctx, store, now, nil)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, again, "second run is a no-op")

	res, err = Sweep(ctx, store, future, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Activated)
}

func TestShouldBeActive(t *testing.T) {
	now := time.Now()
	end := now
	c := &Communication{PublishAt: now.Add(-time.Minute), ExpiresAt: &end}

	assert.False(t, c.ShouldBeActive(now), "expires exactly now")
	c.ExpiresAt = nil
	assert.True(t, c.ShouldBeActive(now))
}
