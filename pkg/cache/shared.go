package cache

import (
	"context"
	"time"
)

// SharedStore is a second cache tier shared between instances. Values are
// opaque encoded bytes; tags let an invalidation on one instance reach the
// entries written by every other instance.
type SharedStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error
	InvalidateByTag(ctx context.Context, tag string) (int, error)
	HealthCheck(ctx context.Context) error
	Close() error
}
