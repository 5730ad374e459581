package redis

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/push-relay/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultLimitPerSec int64 = 100
	defaultWindow            = time.Second
	keyPrefix                = "ratelimit:api:"
)

// slidingWindowScript keeps one sorted-set member per accepted request, scored by
// its arrival time in milliseconds. Members older than the window are trimmed
// before counting, so bursts cannot straddle a window boundary.
var slidingWindowScript = goredis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", now - window)
if redis.call("ZCARD", KEYS[1]) >= limit then
  return 0
end
redis.call("ZADD", KEYS[1], now, ARGV[4])
redis.call("PEXPIRE", KEYS[1], window)
return 1
`)

var _ ratelimit.RateLimiter = (*RedisRateLimiter)(nil)

// RedisRateLimiter limits API callers across relay instances with a per-key
// sliding window stored in Redis.
type RedisRateLimiter struct {
	client      *goredis.Client
	limitPerSec int64
	window      time.Duration
	now         func() time.Time

	// instance and seq keep window members unique across relays sharing one Redis.
	instance string
	seq      atomic.Uint64
}

func NewRedisRateLimiter(client *goredis.Client, limitPerSec int) (*RedisRateLimiter, error) {
	return newRedisRateLimiter(client, int64(limitPerSec), time.Now)
}

func newRedisRateLimiter(client *goredis.Client, limitPerSec int64, nowFn func() time.Time) (*RedisRateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if limitPerSec <= 0 {
		limitPerSec = defaultLimitPerSec
	}
	if nowFn == nil {
		nowFn = time.Now
	}

	return &RedisRateLimiter{
		client:      client,
		limitPerSec: limitPerSec,
		window:      defaultWindow,
		now:         nowFn,
		instance:    uuid.NewString(),
	}, nil
}

// Allow records the request when it fits in the caller's window.
func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if r == nil || r.client == nil {
		return false, fmt.Errorf("rate limiter is not initialized")
	}

	clientKey := strings.ToLower(strings.TrimSpace(key))
	if clientKey == "" {
		return false, fmt.Errorf("rate limit key is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	nowMs := r.now().UTC().UnixMilli()
	member := fmt.Sprintf("%s:%d:%d", r.instance, nowMs, r.seq.Add(1))

	result, err := slidingWindowScript.Run(ctx, r.client,
		[]string{keyPrefix + clientKey},
		nowMs, r.window.Milliseconds(), r.limitPerSec, member,
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to evaluate rate limit for %s: %w", clientKey, err)
	}

	return result == 1, nil
}
