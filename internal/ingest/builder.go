package ingest

import (
	"sort"
	"time"

	"github.com/orka-sh/orka/internal/core"
)

// Builder accumulates applied/deleted deltas into the current item set
// for a single watched scope and freezes immutable snapshots on
// demand. Unlike the M0 reference implementation's linear scan,
// lookups here are UID-indexed so apply cost is O(batch) rather than
// O(batch * items).
type Builder struct {
	epoch    uint64
	items    map[core.UID]core.LiteObj
	projector core.Projector
}

// NewBuilder returns an empty Builder. Projector converts a delta's
// raw object into the ordered (fieldId, value) pairs carried on each
// LiteObj; a nil projector yields LiteObjs with no projected fields.
func NewBuilder(projector core.Projector) *Builder {
	return &Builder{
		items:     make(map[core.UID]core.LiteObj),
		projector: projector,
	}
}

// Apply folds a drained batch of deltas into the item set and advances
// the epoch by one, provided the batch was non-empty.
func (b *Builder) Apply(batch []core.Delta) {
	if len(batch) == 0 {
		return
	}

	for _, d := range batch {
		switch d.Kind {
		case core.DeltaApplied:
			b.items[d.UID] = toLiteObj(d, b.projector)
		case core.DeltaDeleted:
			delete(b.items, d.UID)
		}
	}

	b.epoch++
}

// Freeze returns an immutable snapshot of the current item set at the
// current epoch. The returned slice is a fresh copy; callers may
// retain it indefinitely without the builder's subsequent mutations
// affecting it.
func (b *Builder) Freeze() *core.WorldSnapshot {
	items := make([]core.LiteObj, 0, len(b.items))
	for _, obj := range b.items {
		items = append(items, obj)
	}
	return &core.WorldSnapshot{Epoch: b.epoch, Items: items}
}

// toLiteObj projects a delta's raw object into the LiteObj row shape.
func toLiteObj(d core.Delta, projector core.Projector) core.LiteObj {
	meta, _ := d.Raw["metadata"].(map[string]any)

	lo := core.LiteObj{UID: d.UID}
	if meta != nil {
		if name, ok := meta["name"].(string); ok {
			lo.Name = name
		}
		if ns, ok := meta["namespace"].(string); ok {
			lo.Namespace = ns
		}
		if ts, ok := meta["creationTimestamp"].(string); ok {
			if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
				lo.CreationTS = parsed.Unix()
			}
		}
		lo.Labels = kvsFromMap(meta["labels"])
		lo.Annotations = kvsFromMap(meta["annotations"])
	}

	if projector != nil {
		lo.Projected = projector.Project(d.Raw)
	}

	return lo
}

// kvsFromMap converts a map[string]any value (as decoded from JSON)
// into a KV slice sorted by key. Non-string values are skipped;
// Kubernetes label/annotation maps are always string-keyed/valued.
func kvsFromMap(v any) []core.KV {
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return nil
	}
	out := make([]core.KV, 0, len(m))
	for k, val := range m {
		s, ok := val.(string)
		if !ok {
			continue
		}
		out = append(out, core.KV{Key: k, Value: s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
