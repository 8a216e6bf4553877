// Package metrics exposes Orka's process-local Prometheus collectors
// and the /metrics HTTP endpoint they're served from. Ground truth is
// original_source/crates/*'s scattered counter!/histogram! call sites
// (watch restarts, relist counts, watch errors, backoff duration,
// snapshot pages, index postings truncated); this package gives them a
// single home the way the teacher's own mux wires a /metrics route,
// using github.com/prometheus/client_golang directly rather than the
// teacher's OTel-meter-provider indirection (see DESIGN.md).
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every gauge/counter/histogram Orka's data-plane
// emits. A nil *Collector is valid everywhere it's used: every method
// below guards against a nil receiver so callers never need to branch
// on whether metrics were configured.
type Collector struct {
	registry *prometheus.Registry

	watchRestarts   *prometheus.CounterVec
	relistTotal     *prometheus.CounterVec
	watchErrors     *prometheus.CounterVec
	watchBackoff    *prometheus.HistogramVec
	snapshotPages   *prometheus.CounterVec
	snapshotItems   *prometheus.HistogramVec
	postingsTrimmed *prometheus.CounterVec
	searchQueries   *prometheus.CounterVec
	applyTotal      *prometheus.CounterVec
}

// New builds a Collector with a fresh registry. Call Serve to expose it
// over HTTP, or Registry to mount it on a caller-owned mux.
func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		watchRestarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orka_watch_restarts_total",
			Help: "Watch stream restarts, by resource kind.",
		}, []string{"gvk"}),
		relistTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orka_relist_total",
			Help: "Full relists performed, by resource kind and reason.",
		}, []string{"gvk", "reason"}),
		watchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orka_watch_errors_total",
			Help: "Watch stream errors, by resource kind.",
		}, []string{"gvk"}),
		watchBackoff: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orka_watch_backoff_seconds",
			Help:    "Backoff duration applied after a watch stream error.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		}, []string{"gvk"}),
		snapshotPages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orka_snapshot_pages_total",
			Help: "List pages fetched while priming a snapshot.",
		}, []string{"gvk"}),
		snapshotItems: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orka_snapshot_page_items",
			Help:    "Items returned per list page.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"gvk"}),
		postingsTrimmed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orka_index_postings_truncated_keys_total",
			Help: "Label/annotation key=value postings refused at the per-key cap during index build.",
		}, []string{"gvk"}),
		searchQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orka_search_queries_total",
			Help: "Search queries evaluated, by resource kind.",
		}, []string{"gvk"}),
		applyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orka_apply_total",
			Help: "Server-side applies performed, by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		c.watchRestarts, c.relistTotal, c.watchErrors, c.watchBackoff,
		c.snapshotPages, c.snapshotItems, c.postingsTrimmed, c.searchQueries,
		c.applyTotal,
	)
	return c
}

// Registry exposes the underlying *prometheus.Registry for a caller
// that wants to mount /metrics on its own mux instead of calling Serve.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Serve starts an HTTP server exposing /metrics on addr. The caller is
// responsible for calling Shutdown on the returned server; Serve itself
// only starts the listener goroutine and never blocks.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	if c != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	}
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return srv
}

func (c *Collector) WatchRestart(gvk string) {
	if c == nil {
		return
	}
	c.watchRestarts.WithLabelValues(gvk).Inc()
}

func (c *Collector) Relist(gvk, reason string) {
	if c == nil {
		return
	}
	c.relistTotal.WithLabelValues(gvk, reason).Inc()
}

func (c *Collector) WatchError(gvk string) {
	if c == nil {
		return
	}
	c.watchErrors.WithLabelValues(gvk).Inc()
}

func (c *Collector) WatchBackoff(gvk string, d time.Duration) {
	if c == nil {
		return
	}
	c.watchBackoff.WithLabelValues(gvk).Observe(d.Seconds())
}

func (c *Collector) SnapshotPage(gvk string, items int) {
	if c == nil {
		return
	}
	c.snapshotPages.WithLabelValues(gvk).Inc()
	c.snapshotItems.WithLabelValues(gvk).Observe(float64(items))
}

func (c *Collector) PostingsTruncated(gvk string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.postingsTrimmed.WithLabelValues(gvk).Add(float64(n))
}

func (c *Collector) SearchQuery(gvk string) {
	if c == nil {
		return
	}
	c.searchQueries.WithLabelValues(gvk).Inc()
}

func (c *Collector) Apply(outcome string) {
	if c == nil {
		return
	}
	c.applyTotal.WithLabelValues(outcome).Inc()
}

// ShutdownContext returns a context bounded to a short, fixed grace
// period for Server.Shutdown calls made during process teardown.
func ShutdownContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}
