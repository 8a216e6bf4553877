package api

import (
	"context"

	"github.com/orka-sh/orka/internal/core"
	"github.com/orka-sh/orka/internal/search"
)

// SnapshotResponse bundles a point-in-time WorldSnapshot with metadata
// about how it was served.
type SnapshotResponse struct {
	Data core.WorldSnapshot
	Meta core.ResponseMeta
}

// Snapshot returns sel's current cached world view, starting its
// shared watch on first use. It never blocks on a live relist: the
// first caller for a (GVK, namespace) pair sees whatever the cache
// holds at call time (empty, if nothing has arrived yet), exactly like
// every other Subscribe/Prime caller sharing that entry.
func (s *Service) Snapshot(ctx context.Context, sel core.Selector) (SnapshotResponse, error) {
	snap := s.hub.Snapshot(sel)
	return SnapshotResponse{Data: *snap, Meta: core.ResponseMeta{ExplainAvailable: true}}, nil
}

// WatchLite subscribes to sel's shared lite event stream, returning the
// current cached items for an instant first paint plus the live event
// channel and an unsubscribe func.
func (s *Service) WatchLite(sel core.Selector) ([]core.LiteObj, <-chan core.LiteEvent, func()) {
	return s.hub.Subscribe(sel)
}

// Watch opens a dedicated, unshared raw-delta stream for sel: full
// object JSON rather than the hub's projected LiteObj rows. Callers
// that need the complete object on every change (e.g. a detail-view
// diff) use this instead of WatchLite; it is not shared across callers
// the way the hub's lite path is, since a raw delta is considerably
// heavier and infrequently requested compared to a list view.
func (s *Service) Watch(ctx context.Context, sel core.Selector) (<-chan core.Delta, error) {
	out := make(chan core.Delta, 256)
	go func() {
		defer close(out)
		if _, err := s.watcher.PrimeList(ctx, sel, out); err != nil {
			return
		}
		_ = s.watcher.StartWatcher(ctx, sel, out)
	}()
	return out, nil
}

// SearchHit is a single ranked match: the matched object's projected
// row plus its fuzzy-match score.
type SearchHit struct {
	Obj   core.LiteObj
	Score float32
}

// SearchResponse bundles ranked hits with the evaluator's debug trail
// and response metadata.
type SearchResponse struct {
	Hits  []SearchHit
	Debug search.DebugInfo
	Meta  core.ResponseMeta
}

// Search evaluates query against sel's current cached snapshot,
// building a fresh in-memory index per call (the reference's own
// design: the index is cheap to rebuild from the already-cached
// snapshot and is never persisted). Field-path filters (field:path=v)
// are only available for CRDs whose schema carries a CrdSchema; the
// built-in kinds' well-known columns are surfaced to the UI directly
// rather than through the field: filter.
func (s *Service) Search(ctx context.Context, sel core.Selector, query string, limit int) (SearchResponse, error) {
	s.metrics.SearchQuery(sel.GVK.GVKKey())
	snap := s.hub.Snapshot(sel)

	var fields []search.FieldPath
	if sel.GVK.Group != "" {
		if crd, err := s.resolver.Schema(ctx, sel.GVK); err == nil && crd != nil {
			for _, p := range crd.ProjectedPaths {
				fields = append(fields, search.FieldPath{Path: p.JSONPath, ID: p.ID})
			}
		}
	}

	idx := search.BuildWithCaps(snap, fields, sel.GVK.Kind, sel.GVK.Group, s.cfg.MaxPostingsPerKey, s.cfg.MaxIndexBytes)
	s.metrics.PostingsTruncated(sel.GVK.GVKKey(), idx.TruncatedKeys())
	hits, debug := idx.SearchWithDebug(query, limit)

	out := make([]SearchHit, 0, len(hits))
	for _, h := range hits {
		if h.Doc < 0 || h.Doc >= len(snap.Items) {
			continue
		}
		out = append(out, SearchHit{Obj: snap.Items[h.Doc], Score: h.Score})
	}

	pressure := idx.PressureEvents()
	return SearchResponse{
		Hits:  out,
		Debug: debug,
		Meta: core.ResponseMeta{
			Partial:          pressure.Dropped > 0,
			PressureEvents:   pressure,
			ExplainAvailable: true,
		},
	}, nil
}
