package redis

import "strings"

const keyNamespace = "sf"

// IdempotencyKey namespaces stored replies and processed-delivery markers.
func (c *Client) IdempotencyKey(scope, id string) string {
	return buildKey("idempotency", scope, id)
}

// RateLimitKey namespaces fixed-window counters.
func (c *Client) RateLimitKey(scope string) string {
	return buildKey("rate_limit", scope)
}

// LockKey namespaces distributed job locks.
func (c *Client) LockKey(name string) string {
	return buildKey("lock", name)
}

// buildKey joins non-empty parts under the sf: namespace.
func buildKey(parts ...string) string {
	clean := make([]string, 0, len(parts)+1)
	clean = append(clean, keyNamespace)
	for _, part := range parts {
		if p := strings.TrimSpace(part); p != "" {
			clean = append(clean, p)
		}
	}
	return strings.Join(clean, ":")
}
