package core

import (
	"context"
	"time"
)

// CacheEvictor represents a cache that supports periodic eviction of
// expired entries (e.g. DiscoveryCache). Defining the interface here
// decouples the application layer from the concrete cache
// implementation.
type CacheEvictor interface {
	StartEvictionLoop(ctx context.Context, interval time.Duration)
}
