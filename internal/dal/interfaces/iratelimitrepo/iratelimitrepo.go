package iratelimitrepo

import (
	"context"
	"time"
)

// IRateLimitRepository is a shared counter with expiry keyed by string.
type IRateLimitRepository interface {
	// Count returns the live counter for key, zero when absent or expired.
	Count(ctx context.Context, key string) (int, error)
	// Hit increments key and returns the new count. An expired counter restarts with a fresh window.
	Hit(ctx context.Context, key string, window time.Duration) (int, error)
	Reset(ctx context.Context, key string) error
}
