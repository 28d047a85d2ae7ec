package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// incrWindow counts a hit and starts the window on the first one, returning
// the new count and the remaining window in milliseconds.
var incrWindow = goredis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return {n, redis.call('PTTL', KEYS[1])}
`)

// RateRepo stores fixed-window counters for the rate limiter.
type RateRepo struct {
	client *goredis.Client
}

func NewRateRepo(client *goredis.Client) *RateRepo {
	return &RateRepo{client: client}
}

func (r *RateRepo) IncrementWindow(ctx context.Context, key string, span time.Duration) (int64, time.Duration, error) {
	if r.client == nil {
		return 0, 0, fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(key) == "" || span < time.Millisecond {
		return 0, 0, fmt.Errorf("invalid rate window payload")
	}

	out, err := incrWindow.Run(ctx, r.client, []string{key}, span.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("increment rate window: %w", err)
	}
	if len(out) != 2 {
		return 0, 0, fmt.Errorf("unexpected rate window reply %v", out)
	}

	ttl := time.Duration(out[1]) * time.Millisecond
	if ttl < 0 {
		ttl = 0
	}
	return out[0], ttl, nil
}
