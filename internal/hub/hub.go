// Package hub shares a single live watch per (GVK, namespace) scope
// across many subscribers, so that N UI views of the same resource
// list cost one watch stream rather than N. Ground truth is spec
// section 4.3 combined with the already-built internal/watch (list
// +watch transport) and internal/ingest (coalesce + snapshot) layers;
// original_source has no standalone "hub" type to mirror directly — it
// wires watchers per call site — so the keyed registry here is a
// direct translation of the spec's fan-out description.
package hub

import (
	"context"
	"log/slog"
	"sync"

	"github.com/orka-sh/orka/internal/core"
	"github.com/orka-sh/orka/internal/ingest"
	"github.com/orka-sh/orka/internal/watch"
)

const (
	defaultIngestCap     = 2048
	defaultSubscriberBuf = 256
)

// ProjectorFor resolves the projector to use when building LiteObjs
// for kind — a built-in one, a schema-derived one, or nil. Supplied by
// the caller (internal/api) since projector selection needs the CRD
// schema store.
type ProjectorFor func(core.ResourceKind) core.Projector

// Hub owns one long-lived watcher+builder per subscribed (GVK, ns)
// scope. Entries, once started, run until the Hub is closed: a
// workbench UI tends to revisit the same kinds, so there is no
// idle-eviction policy to flap watches on navigation churn.
type Hub struct {
	ctx          context.Context
	cancel       context.CancelFunc
	watcher      *watch.Service
	projectorFor ProjectorFor
	ingestCap    int
	subscriberBuf int

	mu      sync.Mutex
	entries map[string]*entry
}

// entry is the per-key shared state: the ingest pipeline's handle
// (cache + epoch) and the set of subscriber fan-out channels derived
// from it.
type entry struct {
	sel    core.Selector
	handle *ingest.Handle

	mu     sync.Mutex
	subs   map[int]chan core.LiteEvent
	nextID int
}

// New constructs a Hub. ingestCap bounds each key's delta channel
// (<=0 defaults to 2048, matching the coalescer's default capacity);
// subscriberBuf bounds each subscriber's fan-out channel (<=0 defaults
// to 256) before it is considered lagging.
func New(watcher *watch.Service, projectorFor ProjectorFor, ingestCap, subscriberBuf int) *Hub {
	if ingestCap <= 0 {
		ingestCap = defaultIngestCap
	}
	if subscriberBuf <= 0 {
		subscriberBuf = defaultSubscriberBuf
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		ctx:           ctx,
		cancel:        cancel,
		watcher:       watcher,
		projectorFor:  projectorFor,
		ingestCap:     ingestCap,
		subscriberBuf: subscriberBuf,
		entries:       make(map[string]*entry),
	}
}

// Close stops every watcher the Hub owns. The Hub is unusable
// afterward.
func (h *Hub) Close() {
	h.cancel()
}

// Subscribe attaches to sel's shared watch, starting it if this is the
// first subscriber. It returns the current cached item set
// synchronously (for instant first paint) and a channel of subsequent
// events; unsubscribe detaches and releases the fan-out channel. The
// underlying watch keeps running after the last subscriber leaves.
func (h *Hub) Subscribe(sel core.Selector) (items []core.LiteObj, events <-chan core.LiteEvent, unsubscribe func()) {
	e := h.ensureEntry(sel)
	id, ch := e.addSubscriber(h.subscriberBuf)
	return snapshotItems(e.handle.Current()), ch, func() { e.removeSubscriber(id) }
}

// Prime opportunistically warms sel's entry with items (e.g. from a
// disk-cached discovery pass) ahead of any subscriber, so the first
// real Subscribe call gets an instant, if slightly stale, first paint
// while the live watcher converges in the background. A no-op if the
// entry is already live.
func (h *Hub) Prime(sel core.Selector, items []core.LiteObj) {
	h.mu.Lock()
	if _, ok := h.entries[sel.Key()]; ok {
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	e := h.ensureEntry(sel)
	e.handle.Seed(items)
}

// Snapshot returns sel's current cached WorldSnapshot without
// subscribing to further updates, starting its watcher on first use
// exactly like Subscribe/Prime.
func (h *Hub) Snapshot(sel core.Selector) *core.WorldSnapshot {
	e := h.ensureEntry(sel)
	return e.handle.Current()
}

// EntryCount reports how many distinct (GVK, namespace) scopes
// currently have a live watcher, used to report Stats' shard count.
func (h *Hub) EntryCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// ensureEntry returns sel's entry, starting its watcher+ingest
// pipeline on first use. Projector resolution (a CRD schema fetch, in
// the worst case) happens without holding h.mu, so a slow lookup for
// one key never blocks Subscribe/Prime calls for any other key; the
// lock is only retaken to publish the new entry, with a double-check
// in case another goroutine won the race in the meantime.
func (h *Hub) ensureEntry(sel core.Selector) *entry {
	key := sel.Key()

	h.mu.Lock()
	if e, ok := h.entries[key]; ok {
		h.mu.Unlock()
		return e
	}
	h.mu.Unlock()

	var projector core.Projector
	if h.projectorFor != nil {
		projector = h.projectorFor(sel.GVK)
	}

	h.mu.Lock()
	if e, ok := h.entries[key]; ok {
		h.mu.Unlock()
		return e
	}
	ctx, cancel := context.WithCancel(h.ctx)
	deltas, handle := ingest.Spawn(ctx, h.ingestCap, projector)
	e := &entry{sel: sel, handle: handle, subs: make(map[int]chan core.LiteEvent)}
	h.entries[key] = e
	h.mu.Unlock()

	go h.runWatch(ctx, cancel, sel, deltas)
	go h.fanOut(ctx, e)
	return e
}

// runWatch primes then watches sel, logging (never panicking) on
// failure; StartWatcher itself retries forever, so this only returns
// when ctx is cancelled.
func (h *Hub) runWatch(ctx context.Context, cancel context.CancelFunc, sel core.Selector, deltas chan<- core.Delta) {
	defer cancel()
	if _, err := h.watcher.PrimeList(ctx, sel, deltas); err != nil && ctx.Err() == nil {
		slog.Warn("hub: initial prime_list failed", "key", sel.Key(), "error", err)
	}
	if err := h.watcher.StartWatcher(ctx, sel, deltas); err != nil && ctx.Err() == nil {
		slog.Warn("hub: watcher exited unexpectedly", "key", sel.Key(), "error", err)
	}
}

// fanOut diffs each new snapshot against the last one it saw and
// broadcasts the resulting Applied/Deleted events to every subscriber,
// waking on the ingest handle's epoch signal rather than polling.
func (h *Hub) fanOut(ctx context.Context, e *entry) {
	prev := map[core.UID]core.LiteObj{}
	for {
		// Wait must be captured before Current is read: publish()
		// closes the waiters channel only after the new snapshot is
		// already stored, so a publish racing this loop is only
		// guaranteed not to be missed if the wait channel is in hand
		// first.
		woken := e.handle.Wait()
		snap := e.handle.Current()
		next := make(map[core.UID]core.LiteObj, len(snap.Items))
		for _, it := range snap.Items {
			next[it.UID] = it
		}

		for uid, obj := range next {
			if old, ok := prev[uid]; !ok || !liteObjEqual(old, obj) {
				e.broadcast(core.LiteEvent{Kind: core.LiteApplied, Obj: obj})
			}
		}
		for uid, old := range prev {
			if _, ok := next[uid]; !ok {
				e.broadcast(core.LiteEvent{Kind: core.LiteDeleted, Obj: old})
			}
		}
		prev = next

		select {
		case <-ctx.Done():
			return
		case <-woken:
		}
	}
}

func (e *entry) addSubscriber(buf int) (int, chan core.LiteEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	ch := make(chan core.LiteEvent, buf)
	e.subs[id] = ch
	return id, ch
}

func (e *entry) removeSubscriber(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ch, ok := e.subs[id]; ok {
		delete(e.subs, id)
		close(ch)
	}
}

// broadcast delivers ev to every subscriber without blocking. A
// subscriber whose channel is full is sent a LiteLagged signal instead
// (itself dropped if even that would block) rather than being
// silently skipped or stalling every other subscriber.
func (e *entry) broadcast(ev core.LiteEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- ev:
		default:
			select {
			case ch <- core.LiteEvent{Kind: core.LiteLagged}:
			default:
			}
		}
	}
}

func snapshotItems(snap *core.WorldSnapshot) []core.LiteObj {
	items := make([]core.LiteObj, len(snap.Items))
	copy(items, snap.Items)
	return items
}

func liteObjEqual(a, b core.LiteObj) bool {
	if a.UID != b.UID || a.Namespace != b.Namespace || a.Name != b.Name || a.CreationTS != b.CreationTS {
		return false
	}
	if len(a.Projected) != len(b.Projected) {
		return false
	}
	for i := range a.Projected {
		if a.Projected[i] != b.Projected[i] {
			return false
		}
	}
	if len(a.Labels) != len(b.Labels) {
		return false
	}
	for i := range a.Labels {
		if a.Labels[i] != b.Labels[i] {
			return false
		}
	}
	if len(a.Annotations) != len(b.Annotations) {
		return false
	}
	for i := range a.Annotations {
		if a.Annotations[i] != b.Annotations[i] {
			return false
		}
	}
	return true
}
