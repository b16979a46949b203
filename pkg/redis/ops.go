package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript increments the window counter and arms its expiry in one round trip,
// so a crash between INCR and EXPIRE cannot leave a counter that never resets.
var fixedWindowScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n`)

var releaseIfOwnerScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Get returns the value at key, or redis.Nil when it is absent.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if c == nil || c.rdb == nil {
		return "", errNotInitialized
	}
	return c.rdb.Get(ctx, key).Result()
}

// Set overwrites key with value; a zero ttl keeps it forever.
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c == nil || c.rdb == nil {
		return errNotInitialized
	}
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// SetNX claims key only if it does not exist yet.
func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if c == nil || c.rdb == nil {
		return false, errNotInitialized
	}
	return c.rdb.SetNX(ctx, key, value, ttl).Result()
}

// Del removes the provided keys.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if c == nil || c.rdb == nil {
		return errNotInitialized
	}
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// FixedWindowAllow counts one hit against scope and reports whether it is within limit.
// The window starts at the first hit and is shared by every replica.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	if c == nil || c.rdb == nil {
		return false, 0, errNotInitialized
	}
	count, err := fixedWindowScript.Run(ctx, c.rdb, []string{c.RateLimitKey(scope)}, window.Milliseconds()).Int64()
	if err != nil {
		return false, 0, err
	}
	return count <= limit, count, nil
}

// ReleaseIfOwner deletes key only while it still holds value.
func (c *Client) ReleaseIfOwner(ctx context.Context, key, value string) (bool, error) {
	if c == nil || c.rdb == nil {
		return false, errNotInitialized
	}
	n, err := releaseIfOwnerScript.Run(ctx, c.rdb, []string{key}, value).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
