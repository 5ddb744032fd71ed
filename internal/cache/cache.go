package cache

import (
	"context"
	"time"
)

// Cache is the generic key-value capability shared by every
// component. The backing store is swappable; retrieval logic only
// depends on this interface. There are no cross-key guarantees.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Clear(ctx context.Context, prefix string)
}

// Noop discards everything. Used when caching is disabled and in
// tests that want to observe uncached behavior.
type Noop struct{}

func (Noop) Get(ctx context.Context, key string) ([]byte, bool) { return nil, false }

func (Noop) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {}

func (Noop) Clear(ctx context.Context, prefix string) {}
