package api

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/orka-sh/orka/internal/core"
	"github.com/orka-sh/orka/internal/projector"
	"github.com/orka-sh/orka/internal/schema"
)

// SchemaResolver resolves both a kind's display projector and its raw
// CrdSchema, backed by a single cache so internal/hub's per-watch
// projector lookup and the façade's Schema()/Search() calls share one
// set of CRD fetches rather than each keeping their own.
//
// It exists as its own type, independent of Service, because Hub needs
// a ProjectorFor callback at construction time and Service needs a
// Hub — constructing the resolver first breaks that cycle.
type SchemaResolver struct {
	fetcher     *schema.Fetcher
	builtinSkip bool
	offlineOnly bool

	mu     sync.RWMutex
	cached map[string]*core.CrdSchema // nil entry means "looked up, not found"

	flight singleflight.Group
}

// NewSchemaResolver constructs a SchemaResolver. fetcher may be nil,
// in which case every non-built-in kind resolves to no projector and
// Schema lookups fail with KindNotFound — matching offline/deferred
// schema discovery modes where no apiextensions client was built.
// builtinSkip mirrors config's SchemaBuiltinSkip (skip the CRD lookup
// entirely for kinds the built-in registry already covers); offlineOnly
// mirrors SchemaOfflineOnly (never perform a live CRD fetch at all,
// only serve whatever is already cached).
func NewSchemaResolver(fetcher *schema.Fetcher, builtinSkip, offlineOnly bool) *SchemaResolver {
	return &SchemaResolver{
		fetcher:     fetcher,
		builtinSkip: builtinSkip,
		offlineOnly: offlineOnly,
		cached:      make(map[string]*core.CrdSchema),
	}
}

// Resolve implements hub.ProjectorFor: built-in kinds always win (no
// schema fetch), otherwise it falls back to a schema-derived projector
// built from a fetched CrdSchema, or nil if none is obtainable.
func (r *SchemaResolver) Resolve(gvk core.ResourceKind) core.Projector {
	if p := projector.BuiltinFor(gvk.Group, gvk.Version, gvk.Kind); p != nil {
		return p
	}
	if r.builtinSkip {
		return nil
	}
	crd, err := r.Schema(context.Background(), gvk)
	if err != nil || crd == nil {
		return nil
	}
	return schema.NewProjector(crd.ProjectedPaths)
}

// Schema returns the CrdSchema for gvk, fetching and caching it on
// first use. It returns (nil, nil) for built-in kinds, for kinds with
// no CRD found, and in offline-only mode for any kind not already
// cached; it returns a KindNotFound DomainError when no fetcher was
// configured, and other fetch errors unchanged.
func (r *SchemaResolver) Schema(ctx context.Context, gvk core.ResourceKind) (*core.CrdSchema, error) {
	if gvk.Group == "" {
		return nil, nil
	}
	key := gvk.GVKKey()

	r.mu.RLock()
	if crd, ok := r.cached[key]; ok {
		r.mu.RUnlock()
		return crd, nil
	}
	r.mu.RUnlock()

	if r.offlineOnly {
		return nil, nil
	}
	if r.fetcher == nil {
		return nil, core.NewDomainError(core.KindNotFound, "schema discovery is not configured", nil)
	}

	v, err, _ := r.flight.Do(key, func() (any, error) {
		crd, ferr := r.fetcher.FetchSchema(ctx, gvk.Group, gvk.Version, gvk.Kind)
		if ferr != nil {
			if core.Kind(ferr) == core.KindNotFound {
				r.mu.Lock()
				r.cached[key] = nil
				r.mu.Unlock()
				return (*core.CrdSchema)(nil), nil
			}
			return nil, ferr
		}
		r.mu.Lock()
		r.cached[key] = crd
		r.mu.Unlock()
		return crd, nil
	})
	if err != nil {
		slog.Warn("api: schema fetch failed", "gvk", key, "error", err)
		return nil, err
	}
	crd, _ := v.(*core.CrdSchema)
	return crd, nil
}
