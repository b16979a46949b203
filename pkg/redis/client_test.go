package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := wrap(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)

	allowed, count, err := client.FixedWindowAllow(ctx, "payment-status:ip:10.0.0.1", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, time.Minute, mr.TTL("sf:rate_limit:payment-status:ip:10.0.0.1"))

	allowed, count, err = client.FixedWindowAllow(ctx, "payment-status:ip:10.0.0.1", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, int64(2), count)

	allowed, _, err = client.FixedWindowAllow(ctx, "payment-status:ip:10.0.0.1", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed, "third hit exceeds the limit")

	mr.FastForward(time.Minute + time.Second)
	allowed, count, err = client.FixedWindowAllow(ctx, "payment-status:ip:10.0.0.1", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed, "a new window starts after expiry")
	assert.Equal(t, int64(1), count)
}

func TestSetNXGuardsDuplicates(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)
	key := client.IdempotencyKey("evt:processed:gateway-webhook", "payment:p1:req-1")

	first, err := client.SetNX(ctx, key, "1", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := client.SetNX(ctx, key, "1", time.Hour)
	require.NoError(t, err)
	assert.False(t, second)

	require.NoError(t, client.Del(ctx, key))
	_, err = client.Get(ctx, key)
	assert.ErrorIs(t, err, redis.Nil)
}

func TestReleaseIfOwner(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)
	key := client.LockKey("cron-worker:test")

	_, err := client.SetNX(ctx, key, "owner-a", time.Minute)
	require.NoError(t, err)

	released, err := client.ReleaseIfOwner(ctx, key, "owner-b")
	require.NoError(t, err)
	assert.False(t, released, "foreign owner must not release")
	assert.True(t, mr.Exists(key))

	released, err = client.ReleaseIfOwner(ctx, key, "owner-a")
	require.NoError(t, err)
	assert.True(t, released)
	assert.False(t, mr.Exists(key))
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	assert.Equal(t, "sf:idempotency:scope:id", client.IdempotencyKey("scope", "id"))
	assert.Equal(t, "sf:rate_limit:scope", client.RateLimitKey("scope"))
	assert.Equal(t, "sf:lock:payment-sweep", client.LockKey("payment-sweep"))
	assert.Equal(t, "sf:idempotency:scope", client.IdempotencyKey(" scope ", ""), "empty parts are skipped")
}

func TestNilClientReportsNotInitialized(t *testing.T) {
	var c *Client
	assert.ErrorIs(t, c.Ping(context.Background()), errNotInitialized)
	assert.NoError(t, c.Close())
}

func TestOptionsFromConfig(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{
		URL:         "redis://:secret@localhost:6380/3",
		PoolSize:    25,
		DialTimeout: 2 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6380", opts.Addr)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, 25, opts.PoolSize)
	assert.Equal(t, 2*time.Second, opts.DialTimeout)

	opts, err = optionsFromConfig(config.RedisConfig{Address: "cache:6379", DB: 2})
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)

	_, err = optionsFromConfig(config.RedisConfig{})
	assert.Error(t, err)
}

func TestSetOverwritesClaim(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)
	key := client.IdempotencyKey("POST|/api/v1/orders", "checkout-1")

	claimed, err := client.SetNX(ctx, key, "pending", 2*time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, client.Set(ctx, key, "done", 24*time.Hour))
	got, err := client.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "done", got)
	assert.Equal(t, 24*time.Hour, mr.TTL(key))
}
