package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"schoolsite-app/internal/domain/subscriptions"
	"schoolsite-app/internal/domain/tenants"

	"github.com/redis/go-redis/v9"
)

const prefix = "schoolsite:"

// TenantCache stores resolved schools in redis. Each school keeps a set of
// the resolution keys pointing at it so one invalidation drops them all.
type TenantCache struct {
	client *redis.Client
}

// New connects from a redis URL ("redis://:pass@host:6379/0").
func New(ctx context.Context, url string) (*TenantCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &TenantCache{client: client}, nil
}

func NewWithClient(client *redis.Client) *TenantCache {
	return &TenantCache{client: client}
}

// envelope keeps the preloaded subscription, which Tenant does not serialise.
type envelope struct {
	Tenant       *tenants.Tenant             `json:"tenant"`
	Subscription *subscriptions.Subscription `json:"subscription,omitempty"`
}

func encode(t *tenants.Tenant) ([]byte, error) {
	return json.Marshal(envelope{Tenant: t, Subscription: t.Subscription})
}

func decode(data []byte) (*tenants.Tenant, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if env.Tenant == nil {
		return nil, errors.New("cache: empty tenant entry")
	}
	env.Tenant.Subscription = env.Subscription
	return env.Tenant, nil
}

func entryKey(key string) string { return prefix + "tenant:" + key }

func indexKey(id uint) string { return prefix + "tenant-keys:" + strconv.FormatUint(uint64(id), 10) }

func (c *TenantCache) GetTenant(ctx context.Context, key string) (*tenants.Tenant, error) {
	data, err := c.client.Get(ctx, entryKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return decode(data)
}

func (c *TenantCache) SetTenant(ctx context.Context, key string, t *tenants.Tenant, ttl time.Duration) error {
	data, err := encode(t)
	if err != nil {
		return err
	}
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, entryKey(key), data, ttl)
	pipe.SAdd(ctx, indexKey(t.ID), entryKey(key))
	pipe.Expire(ctx, indexKey(t.ID), ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (c *TenantCache) InvalidateTenant(ctx context.Context, id uint) error {
	keys, err := c.client.SMembers(ctx, indexKey(id)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	keys = append(keys, indexKey(id))
	return c.client.Del(ctx, keys...).Err()
}

func (c *TenantCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *TenantCache) Close() error {
	return c.client.Close()
}

var _ tenants.Cache = (*TenantCache)(nil)
