package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// FixedWindowAllow counts a hit against scope and reports whether it is within
// limit for the current window. When denied, the remaining window length is
// returned so callers can set Retry-After.
//
// INCR and PTTL share one round trip. The window expiry is applied whenever the
// counter has none.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, time.Duration, error) {
	if err := c.ready(); err != nil {
		return false, 0, err
	}
	key := c.RateLimitKey(scope)

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	if _, err := c.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		ttl = p.PTTL(ctx, key)
		return nil
	}); err != nil {
		return false, 0, err
	}

	remaining := ttl.Val()
	if remaining < 0 {
		if err := c.rdb.PExpire(ctx, key, window).Err(); err != nil {
			return false, 0, err
		}
		remaining = window
	}
	if incr.Val() <= limit {
		return true, 0, nil
	}
	return false, remaining, nil
}
