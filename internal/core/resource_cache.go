package core

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/version"
	"k8s.io/kube-openapi/pkg/validation/spec"
)

// DiscoveryCache provides TTL-based caching with singleflight
// deduplication for OpenAPI schemas and the cluster's Kubernetes
// version. It reduces redundant discovery API calls when multiple
// concurrent callers request the same GVK's schema (e.g. several
// snapshot requests racing the schema-derived projector).
type DiscoveryCache struct {
	discovery DiscoveryClient
	ttl       time.Duration

	mu             sync.RWMutex
	schemaCache    map[string]*schemaCacheEntry
	versionCache   *versionCacheEntry
	schemaFlights  singleflight.Group
	versionFlights singleflight.Group
}

type schemaCacheEntry struct {
	schema    *spec.Schema
	expiresAt time.Time
}

type versionCacheEntry struct {
	version   *version.Info
	expiresAt time.Time
}

// singleflightFetchTimeout bounds a cache-miss fetch. It uses
// context.WithoutCancel so that a single caller's cancellation does not
// fail all singleflight waiters sharing the same in-flight request.
const singleflightFetchTimeout = 30 * time.Second

// NewDiscoveryCache returns a DiscoveryCache wrapping the given
// DiscoveryClient, caching results for the given TTL.
func NewDiscoveryCache(discovery DiscoveryClient, ttl time.Duration) *DiscoveryCache {
	return &DiscoveryCache{
		discovery:   discovery,
		ttl:         ttl,
		schemaCache: make(map[string]*schemaCacheEntry),
	}
}

var _ SchemaResolver = (*DiscoveryCache)(nil)
var _ CacheEvictor = (*DiscoveryCache)(nil)
var _ DiscoveryClient = (*DiscoveryCache)(nil)

// LookupResource delegates uncached: resource existence can change
// between calls (a CRD install/removal), so it isn't TTL-cached the
// way schema and version are.
func (c *DiscoveryCache) LookupResource(ctx context.Context, group, version, resource string) (schema.GroupVersionResource, error) {
	return c.discovery.LookupResource(ctx, group, version, resource)
}

// ServerResources delegates uncached for the same reason as
// LookupResource: callers (apply, ops, watch) need a fresh view of
// what the cluster currently serves.
func (c *DiscoveryCache) ServerResources(ctx context.Context) ([]*metav1.APIResourceList, error) {
	return c.discovery.ServerResources(ctx)
}

// SupportsWatchList delegates uncached to the wrapped client's own
// ServerVersion-derived check; that check queries the wrapped client
// directly, so this cache's ServerVersion entry is not consulted.
func (c *DiscoveryCache) SupportsWatchList(ctx context.Context) (bool, error) {
	return c.discovery.SupportsWatchList(ctx)
}

// ResolveSchema fetches the OpenAPI schema for the given GVK. Results
// are cached for the configured TTL; concurrent requests for the same
// key are deduplicated via singleflight.
func (c *DiscoveryCache) ResolveSchema(ctx context.Context, group, version, kind string) (*spec.Schema, error) {
	key := schemaCacheKey(group, version, kind)

	c.mu.RLock()
	entry, ok := c.schemaCache[key]
	c.mu.RUnlock()

	if ok && time.Now().Before(entry.expiresAt) {
		return entry.schema, nil
	}

	v, err, _ := c.schemaFlights.Do(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), singleflightFetchTimeout)
		defer cancel()

		resolved, err := c.discovery.ResolveSchema(fetchCtx, group, version, kind)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.evictExpired()
		c.schemaCache[key] = &schemaCacheEntry{schema: resolved, expiresAt: time.Now().Add(c.ttl)}
		c.mu.Unlock()

		return resolved, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*spec.Schema), nil
}

// ServerVersion returns the cached Kubernetes server version. Results
// are cached for the configured TTL and concurrent requests are
// deduplicated via singleflight.
func (c *DiscoveryCache) ServerVersion(ctx context.Context) (*version.Info, error) {
	c.mu.RLock()
	entry := c.versionCache
	c.mu.RUnlock()

	if entry != nil && time.Now().Before(entry.expiresAt) {
		return entry.version, nil
	}

	v, err, _ := c.versionFlights.Do("version", func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), singleflightFetchTimeout)
		defer cancel()

		info, err := c.discovery.ServerVersion(fetchCtx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.versionCache = &versionCacheEntry{version: info, expiresAt: time.Now().Add(c.ttl)}
		c.mu.Unlock()

		return info, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*version.Info), nil
}

// StartEvictionLoop periodically sweeps expired schema cache entries.
// It blocks until ctx is cancelled.
func (c *DiscoveryCache) StartEvictionLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			c.evictExpired()
			c.mu.Unlock()
		}
	}
}

func schemaCacheKey(group, version, kind string) string {
	return strings.Join([]string{group, version, kind}, "/")
}

// evictExpired removes expired schema cache entries. Must be called
// with mu held for writing.
func (c *DiscoveryCache) evictExpired() {
	now := time.Now()
	for key, entry := range c.schemaCache {
		if now.After(entry.expiresAt) {
			delete(c.schemaCache, key)
		}
	}
}
