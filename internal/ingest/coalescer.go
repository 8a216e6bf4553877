// Package ingest implements Orka's coalescing ingest pipeline: a
// single goroutine per watched scope collapses bursty watch deltas
// keyed by object UID, then periodically folds the coalesced batch
// into a new immutable WorldSnapshot and publishes it atomically.
//
// This mirrors the teacher's fan-in-then-batch shape used for
// relist/backoff loops, adapted here to Orka's snapshot-publishing
// semantics (see original_source/crates/store for the reference this
// was distilled from).
package ingest

import (
	"container/list"

	"github.com/orka-sh/orka/internal/core"
)

// Coalescer collapses a burst of deltas for the same UID down to the
// most recent one, preserving first-seen order so draining replays
// changes roughly in the order objects were touched. Capacity is
// bounded: once full, the oldest entry is evicted to make room and
// dropped is incremented so callers can surface pressure to the UI.
type Coalescer struct {
	cap     int
	entries map[core.UID]*list.Element
	order   *list.List // each Element.Value is core.Delta
	dropped uint64
}

// NewCoalescer returns a Coalescer with the given capacity.
func NewCoalescer(cap int) *Coalescer {
	return &Coalescer{
		cap:     cap,
		entries: make(map[core.UID]*list.Element, cap),
		order:   list.New(),
	}
}

// Len returns the number of distinct UIDs currently coalesced.
func (c *Coalescer) Len() int { return c.order.Len() }

// Dropped returns the running count of entries evicted due to
// capacity pressure.
func (c *Coalescer) Dropped() uint64 { return c.dropped }

// Push records d, replacing any previously coalesced delta for the
// same UID in place (so the replayed order still reflects first-seen
// position, not last-write position).
func (c *Coalescer) Push(d core.Delta) {
	if el, ok := c.entries[d.UID]; ok {
		el.Value = d
		return
	}

	if c.order.Len() >= c.cap {
		front := c.order.Front()
		if front != nil {
			evicted := front.Value.(core.Delta)
			delete(c.entries, evicted.UID)
			c.order.Remove(front)
			c.dropped++
		}
	}

	c.entries[d.UID] = c.order.PushBack(d)
}

// DrainReady empties the coalescer and returns its contents in
// first-seen order.
func (c *Coalescer) DrainReady() []core.Delta {
	out := make([]core.Delta, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(core.Delta))
	}
	c.order.Init()
	clear(c.entries)
	return out
}
