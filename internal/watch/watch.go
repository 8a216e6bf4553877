// Package watch implements Orka's list-then-watch primitive: an
// initial paged list that primes a snapshot, followed by a long-lived
// watch loop that relists periodically, recovers from expired
// resourceVersion (410 Gone) without backoff, and otherwise retries
// under exponential backoff. Ground truth is
// original_source/crates/kubehub.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/orka-sh/orka/internal/core"
	"github.com/orka-sh/orka/internal/metrics"
)

// Service runs list/watch loops against a single cluster, built on
// core.ResourceRepo (list/watch transport) and core.DiscoveryClient
// (GVK -> GVR resolution), the same split internal/ops and
// internal/apply use.
type Service struct {
	resources core.ResourceRepo
	discovery core.DiscoveryClient

	relistBase time.Duration
	backoffMax time.Duration
	pageLimit  int64

	metrics *metrics.Collector
}

// NewService constructs a Service. relistBase is the nominal full-relist
// interval (jittered +/-10% per watch cycle); backoffMax caps the
// exponential backoff applied between failed watch attempts; pageLimit
// bounds each list page (<=0 disables paging).
func NewService(resources core.ResourceRepo, discovery core.DiscoveryClient, relistBase, backoffMax time.Duration, pageLimit int64) *Service {
	return &Service{
		resources:  resources,
		discovery:  discovery,
		relistBase: relistBase,
		backoffMax: backoffMax,
		pageLimit:  pageLimit,
	}
}

// SetMetrics attaches a metrics.Collector for restart/relist/backoff
// reporting. A nil collector (the zero value) is safe to leave unset:
// every metrics call in this package guards against a nil *Collector.
func (s *Service) SetMetrics(m *metrics.Collector) {
	s.metrics = m
}

// resolveGVR looks up the plural resource name and namespaced scope for
// gvk via a full server-resources scan, the same discovery idiom
// internal/ops and internal/apply use.
func (s *Service) resolveGVR(ctx context.Context, gvk core.ResourceKind) (schema.GroupVersionResource, bool, error) {
	lists, err := s.discovery.ServerResources(ctx)
	if err != nil {
		return schema.GroupVersionResource{}, false, err
	}
	groupVersion := gvk.Version
	if gvk.Group != "" {
		groupVersion = gvk.Group + "/" + gvk.Version
	}
	for _, list := range lists {
		if list == nil || list.GroupVersion != groupVersion {
			continue
		}
		for _, r := range list.APIResources {
			if r.Kind == gvk.Kind {
				return schema.GroupVersionResource{Group: gvk.Group, Version: gvk.Version, Resource: r.Name}, r.Namespaced, nil
			}
		}
	}
	return schema.GroupVersionResource{}, false, core.NewDomainError(core.KindNotFound, fmt.Sprintf("GVK not found: %s", gvk.GVKKey()), nil)
}

// scopedNamespace returns the namespace to pass to the repo for sel:
// empty for cluster-scoped kinds regardless of what the caller asked
// for, since the dynamic client rejects a namespace on those.
func scopedNamespace(sel core.Selector, namespaced bool) string {
	if !namespaced {
		return ""
	}
	return sel.Namespace
}

// PrimeList performs a paged initial list for sel and sends one
// DeltaApplied per item to out, returning the number sent. Callers
// typically run this once before StartWatcher to give the ingest
// pipeline a complete snapshot before the first watch event arrives.
func (s *Service) PrimeList(ctx context.Context, sel core.Selector, out chan<- core.Delta) (int, error) {
	gvr, namespaced, err := s.resolveGVR(ctx, sel.GVK)
	if err != nil {
		return 0, err
	}
	ns := scopedNamespace(sel, namespaced)

	sent := 0
	cont := ""
	for {
		list, err := s.resources.List(ctx, gvr, ns, core.ListOptions{Limit: s.pageLimit, Continue: cont})
		if err != nil {
			return sent, err
		}
		for i := range list.Items {
			d, derr := deltaFromObject(list.Items[i].Object, core.DeltaApplied)
			if derr != nil {
				slog.Warn("prime_list: skipping malformed item", "gvk", sel.GVK.GVKKey(), "error", derr)
				continue
			}
			if sendDelta(ctx, out, d) {
				sent++
			}
		}
		s.metrics.SnapshotPage(sel.GVK.GVKKey(), len(list.Items))
		cont, _, _ = unstructured.NestedString(list.Object, "metadata", "continue")
		if cont == "" {
			break
		}
	}
	return sent, nil
}

// StartWatcher runs the long-lived watch loop for sel until ctx is
// cancelled, feeding deltas into out. Apart from a failure to resolve
// sel's GVK before the loop starts, it returns only on ctx
// cancellation: stream errors, including expired resourceVersion (410
// Gone), are retried forever rather than surfaced to the caller.
func (s *Service) StartWatcher(ctx context.Context, sel core.Selector, out chan<- core.Delta) error {
	gvr, namespaced, err := s.resolveGVR(ctx, sel.GVK)
	if err != nil {
		return err
	}
	ns := scopedNamespace(sel, namespaced)

	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		ended, err := s.watchOnce(ctx, gvr, ns, sel, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			s.metrics.WatchError(sel.GVK.GVKKey())
			if isExpired(err) {
				slog.Warn("watch stream expired; performing full relist", "gvk", sel.GVK.GVKKey(), "error", err)
				s.metrics.Relist(sel.GVK.GVKKey(), "expired")
				if _, perr := s.PrimeList(ctx, sel, out); perr != nil {
					slog.Warn("relist after expired watch failed", "gvk", sel.GVK.GVKKey(), "error", perr)
				}
				backoff = time.Second
				continue
			}
			slog.Warn("watch stream error; backing off", "gvk", sel.GVK.GVKKey(), "error", err, "backoff", backoff)
			s.metrics.WatchBackoff(sel.GVK.GVKKey(), backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
			if backoff > s.backoffMax {
				backoff = s.backoffMax
			}
			continue
		}

		if !ended {
			slog.Debug("periodic relist interval reached; restarting watch", "gvk", sel.GVK.GVKKey())
			s.metrics.Relist(sel.GVK.GVKKey(), "periodic")
			s.metrics.WatchRestart(sel.GVK.GVKKey())
		}
		backoff = time.Second
	}
}

// watchOnce opens one watch stream and services it until it ends
// (ended=true, the watch channel closed or erred) or the jittered
// relist timer fires (ended=false, a routine restart). err is non-nil
// only when the stream itself reported an error.
func (s *Service) watchOnce(ctx context.Context, gvr schema.GroupVersionResource, ns string, sel core.Selector, out chan<- core.Delta) (ended bool, err error) {
	watcher, err := s.resources.Watch(ctx, gvr, ns, core.WatchOptions{})
	if err != nil {
		return true, err
	}
	defer watcher.Stop()

	timer := time.NewTimer(jitter(s.relistBase))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return true, nil
		case ev, ok := <-watcher.ResultChan():
			if !ok {
				return true, nil
			}
			switch ev.Type {
			case core.WatchEventAdded, core.WatchEventModified:
				d, derr := deltaFromObject(ev.Object, core.DeltaApplied)
				if derr != nil {
					slog.Warn("watch: skipping malformed event", "gvk", sel.GVK.GVKKey(), "error", derr)
					continue
				}
				sendDelta(ctx, out, d)
			case core.WatchEventDeleted:
				d, derr := deltaFromObject(ev.Object, core.DeltaDeleted)
				if derr != nil {
					slog.Warn("watch: skipping malformed delete event", "gvk", sel.GVK.GVKKey(), "error", derr)
					continue
				}
				sendDelta(ctx, out, d)
			case core.WatchEventBookmark:
				// No-op: bookmarks only advance resourceVersion, which
				// this loop doesn't track across restarts.
			case core.WatchEventError:
				return true, statusError(ev.Object)
			}
		case <-timer.C:
			return false, nil
		}
	}
}

// jitter applies a uniform +/-10% jitter to base, matching the
// reference watcher's periodic-relist spread (avoids every watched GVK
// relisting in lockstep).
func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		return base
	}
	spread := float64(base) * 0.1
	delta := (rand.Float64()*2 - 1) * spread
	d := time.Duration(float64(base) + delta)
	if d < time.Second {
		d = time.Second
	}
	return d
}

// sendDelta delivers d to out, returning false instead of blocking
// forever if ctx is cancelled first.
func sendDelta(ctx context.Context, out chan<- core.Delta, d core.Delta) bool {
	select {
	case out <- d:
		return true
	case <-ctx.Done():
		return false
	}
}

// deltaFromObject strips noisy fields from obj and converts it into a
// core.Delta of the given kind, keyed by metadata.uid.
func deltaFromObject(obj map[string]any, kind core.DeltaKind) (core.Delta, error) {
	core.StripNoisyFields(obj)
	uidStr, _, _ := unstructured.NestedString(obj, "metadata", "uid")
	if uidStr == "" {
		return core.Delta{}, fmt.Errorf("object missing metadata.uid")
	}
	uid, err := core.ParseUID(uidStr)
	if err != nil {
		return core.Delta{}, err
	}
	return core.Delta{UID: uid, Kind: kind, Raw: obj}, nil
}

// statusError builds an error from a WatchEventError's Status payload,
// preserving enough of "reason"/"code"/"message" for isExpired to
// detect an HTTP 410 Gone (expired resourceVersion).
func statusError(status map[string]any) error {
	if status == nil {
		return fmt.Errorf("watch stream error")
	}
	reason, _ := status["reason"].(string)
	message, _ := status["message"].(string)
	var code float64
	if c, ok := status["code"].(float64); ok {
		code = c
	}
	return fmt.Errorf("watch stream error: reason=%s code=%v message=%s", reason, code, message)
}

// isExpired reports whether err represents an HTTP 410 Gone (the
// watch's resourceVersion is too old), which is recoverable via an
// immediate full relist rather than exponential backoff.
func isExpired(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "410") || strings.Contains(s, "expired")
}
