package ingest

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/orka-sh/orka/internal/core"
)

// tickInterval is the fixed batch-apply cadence: deltas pushed to the
// coalescer within a tick are folded into a single snapshot publish,
// bounding both CPU churn and reader-visible update latency.
const tickInterval = 8 * time.Millisecond

// Handle lets readers fetch the current snapshot and wait for the next
// publish, without depending on the ingest goroutine's internals.
type Handle struct {
	snap atomic.Pointer[core.WorldSnapshot]

	mu      sync.Mutex
	waiters chan struct{} // closed and replaced on every publish
}

func newHandle() *Handle {
	h := &Handle{waiters: make(chan struct{})}
	h.snap.Store(&core.WorldSnapshot{})
	return h
}

// Current returns the most recently published snapshot. Safe for
// concurrent use; never blocks.
func (h *Handle) Current() *core.WorldSnapshot {
	return h.snap.Load()
}

// Wait returns a channel that closes the next time a new snapshot is
// published, letting callers implement long-poll/watch semantics on
// top of the snapshot epoch without a dedicated broadcaster per
// subscriber.
func (h *Handle) Wait() <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.waiters
}

// Seed publishes items as an initial snapshot outside the normal
// delta/coalesce path, for opportunistic cache warm-up (internal/hub's
// Prime) before a live watch has produced its first batch.
func (h *Handle) Seed(items []core.LiteObj) {
	h.publish(&core.WorldSnapshot{Epoch: 1, Items: items})
}

// publish stores next and wakes any goroutine blocked in Wait.
func (h *Handle) publish(next *core.WorldSnapshot) {
	h.snap.Store(next)

	h.mu.Lock()
	closed := h.waiters
	h.waiters = make(chan struct{})
	h.mu.Unlock()
	close(closed)
}

// Spawn starts the ingest loop for a single watched scope: a delta
// channel is coalesced by UID and, once per tick, folded into the
// builder and published as a new snapshot. The loop exits when ctx is
// cancelled or the delta channel is closed, flushing any
// still-coalesced deltas first.
func Spawn(ctx context.Context, cap int, projector core.Projector) (chan<- core.Delta, *Handle) {
	deltas := make(chan core.Delta, cap)
	handle := newHandle()

	go runLoop(ctx, deltas, cap, projector, handle)

	return deltas, handle
}

func runLoop(ctx context.Context, deltas <-chan core.Delta, cap int, projector core.Projector, handle *Handle) {
	coalescer := NewCoalescer(cap)
	builder := NewBuilder(projector)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	flush := func() {
		batch := coalescer.DrainReady()
		if len(batch) == 0 {
			return
		}
		builder.Apply(batch)
		handle.publish(builder.Freeze())
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			slog.Debug("ingest loop stopped", "reason", "context cancelled")
			return
		case d, ok := <-deltas:
			if !ok {
				flush()
				slog.Debug("ingest loop stopped", "reason", "delta channel closed")
				return
			}
			coalescer.Push(d)
		case <-ticker.C:
			flush()
		}
	}
}
