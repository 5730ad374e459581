package ratelimit

import "context"

// RateLimiter decides whether a caller, identified by key, may issue one more request.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}
