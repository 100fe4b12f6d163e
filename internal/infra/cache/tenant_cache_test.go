package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"schoolsite-app/internal/domain/subscriptions"
	"schoolsite-app/internal/domain/tenants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_KeepsSubscription(t *testing.T) {
	sub := subscriptions.NewTrial(4, time.Now(), 30, 1)
	sub.ID = 9
	in := &tenants.Tenant{ID: 2, Slug: "acme", IsActive: true, SubscriptionID: &sub.ID, Subscription: sub,
		FeatureVisibility: tenants.FeatureVisibility{"showBlog": false}}

	data, err := encode(in)
	require.NoError(t, err)
	out, err := decode(data)
	require.NoError(t, err)

	assert.Equal(t, "acme", out.Slug)
	require.NotNil(t, out.Subscription)
	assert.Equal(t, uint(9), out.Subscription.ID)
	assert.True(t, out.SubscriptionRef().IsResolved())
	assert.Equal(t, false, out.FeatureVisibility["showBlog"])

	_, err = decode([]byte(`{}`))
	assert.Error(t, err)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "schoolsite:tenant:host:acme.it", entryKey("host:acme.it"))
	assert.Equal(t, "schoolsite:tenant-keys:12", indexKey(12))
}

// Runs against a real server when TEST_REDIS_URL is set.
func TestTenantCache_Redis(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	c, err := New(ctx, url)
	require.NoError(t, err)
	defer c.Close()

	tn := &tenants.Tenant{ID: 77, Slug: "cache-test", IsActive: true}
	require.NoError(t, c.SetTenant(ctx, "slug:cache-test", tn, time.Minute))
	require.NoError(t, c.SetTenant(ctx, "host:cache-test.example.com", tn, time.Minute))

	got, err := c.GetTenant(ctx, "slug:cache-test")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, uint(77), got.ID)

	require.NoError(t, c.InvalidateTenant(ctx, 77))
	got, err = c.GetTenant(ctx, "host:cache-test.example.com")
	require.NoError(t, err)
	assert.Nil(t, got)
}
