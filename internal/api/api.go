// Package api is Orka's single façade: every caller (CLI, and any
// future transport) goes through Service rather than reaching into
// internal/hub, internal/apply, internal/ops, or internal/search
// directly. Ground truth is original_source/crates/api's OrkaApi
// trait.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	k8sschema "k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/orka-sh/orka/internal/apply"
	"github.com/orka-sh/orka/internal/core"
	"github.com/orka-sh/orka/internal/hub"
	"github.com/orka-sh/orka/internal/metrics"
	"github.com/orka-sh/orka/internal/ops"
	"github.com/orka-sh/orka/internal/watch"
)

// Config carries the runtime settings Service needs, passed by value
// from internal/config rather than the Service taking a *config.Config
// dependency directly — the same pattern internal/apply, internal/ops,
// and internal/watch already follow.
type Config struct {
	MaxPostingsPerKey   int
	MaxIndexBytes       int64
	RelistSecs          time.Duration
	WatchBackoffMaxSecs time.Duration
	MetricsAddr         string
}

// Service wires the read path (watch -> hub -> search), the write path
// (apply), the imperative path (ops), and discovery/schema lookups into
// the single surface a caller needs.
type Service struct {
	discovery core.DiscoveryClient
	resources core.ResourceRepo

	hub      *hub.Hub
	watcher  *watch.Service
	resolver *SchemaResolver
	applySvc *apply.Service
	opsSvc   *ops.Service
	store    core.LastAppliedStore

	cfg     Config
	metrics *metrics.Collector
}

// SetMetrics attaches a metrics.Collector used to report search query
// and apply counts. A nil collector (the default) is safe to leave
// unset.
func (s *Service) SetMetrics(m *metrics.Collector) {
	s.metrics = m
}

// NewService constructs a Service from its already-built collaborators.
// store may be nil (last-applied lookups then always return an empty
// result, matching apply.Service's own soft-fail-when-storeless
// behavior).
func NewService(
	discovery core.DiscoveryClient,
	resources core.ResourceRepo,
	h *hub.Hub,
	watcher *watch.Service,
	resolver *SchemaResolver,
	applySvc *apply.Service,
	opsSvc *ops.Service,
	store core.LastAppliedStore,
	cfg Config,
) *Service {
	return &Service{
		discovery: discovery,
		resources: resources,
		hub:       h,
		watcher:   watcher,
		resolver:  resolver,
		applySvc:  applySvc,
		opsSvc:    opsSvc,
		store:     store,
		cfg:       cfg,
	}
}

// Discover lists every resource kind the cluster serves.
func (s *Service) Discover(ctx context.Context) ([]core.ResourceKind, error) {
	lists, err := s.discovery.ServerResources(ctx)
	if err != nil {
		return nil, core.NewDomainError(core.KindInternal, "listing server resources", err)
	}
	var out []core.ResourceKind
	for _, l := range lists {
		if l == nil {
			continue
		}
		group, version := splitGroupVersion(l.GroupVersion)
		for _, r := range l.APIResources {
			if r.Kind == "" {
				continue
			}
			out = append(out, core.ResourceKind{Group: group, Version: version, Kind: r.Kind, Namespaced: r.Namespaced})
		}
	}
	return out, nil
}

func splitGroupVersion(gv string) (group, version string) {
	for i := 0; i < len(gv); i++ {
		if gv[i] == '/' {
			return gv[:i], gv[i+1:]
		}
	}
	return "", gv
}

// GetRaw fetches the full, unprojected object named by ref.
func (s *Service) GetRaw(ctx context.Context, ref core.ResourceRef) ([]byte, error) {
	gvr, _, err := s.resolveGVR(ctx, ref.GVK)
	if err != nil {
		return nil, err
	}
	obj, err := s.resources.Get(ctx, gvr, ref.Namespace, ref.Name)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, core.NewDomainError(core.KindNotFound, fmt.Sprintf("%s %s/%s not found", ref.GVK.GVKKey(), ref.Namespace, ref.Name), nil)
	}
	raw, err := json.Marshal(obj.UnstructuredContent())
	if err != nil {
		return nil, core.NewDomainError(core.KindInternal, "marshaling object", err)
	}
	return raw, nil
}

// resolveGVR mirrors internal/apply's and internal/ops's own copies: a
// full server-resources scan keyed by GVK. Three independent copies
// rather than a shared helper package, matching how the reference
// crates (apply, ops, kubehub) each keep their own find_api_resource.
func (s *Service) resolveGVR(ctx context.Context, gvk core.ResourceKind) (k8sschema.GroupVersionResource, bool, error) {
	lists, err := s.discovery.ServerResources(ctx)
	if err != nil {
		return k8sschema.GroupVersionResource{}, false, err
	}
	groupVersion := gvk.Version
	if gvk.Group != "" {
		groupVersion = gvk.Group + "/" + gvk.Version
	}
	for _, l := range lists {
		if l == nil || l.GroupVersion != groupVersion {
			continue
		}
		for _, r := range l.APIResources {
			if r.Kind == gvk.Kind {
				return k8sschema.GroupVersionResource{Group: gvk.Group, Version: gvk.Version, Resource: r.Name}, r.Namespaced, nil
			}
		}
	}
	return k8sschema.GroupVersionResource{}, false, core.NewDomainError(core.KindNotFound, fmt.Sprintf("GVK not found: %s", gvk.GVKKey()), nil)
}

// Stats reports the running configuration (see ShardCount for the live
// fan-out count). Traffic byte counters are not collected; they are
// always reported as zero.
func (s *Service) Stats() core.Stats {
	return core.Stats{
		RelistSecs:          uint64(s.cfg.RelistSecs.Seconds()),
		WatchBackoffMaxSecs: uint64(s.cfg.WatchBackoffMaxSecs.Seconds()),
		MaxPostingsPerKey:   s.cfg.MaxPostingsPerKey,
		MaxIndexBytes:       s.cfg.MaxIndexBytes,
		MetricsAddr:         s.cfg.MetricsAddr,
	}
}

// ShardCount reports how many distinct (GVK, namespace) scopes
// currently have a live watcher. Kept separate from Stats since
// core.Stats mirrors the reference's wire shape, which has no shard
// field — Orka's hub keys entries by selector rather than sharding a
// single index.
func (s *Service) ShardCount() int {
	if s.hub == nil {
		return 0
	}
	return s.hub.EntryCount()
}

// Ops exposes the imperative-operations service (logs, exec,
// port-forward, scale, restart, drain, cordon, capability probing).
func (s *Service) Ops() *ops.Service {
	return s.opsSvc
}

// Schema returns the CrdSchema for the kind named by gvkKey
// ("v1/Kind" or "group/version/Kind"), or (nil, nil) for built-in kinds
// and kinds with no matching CRD.
func (s *Service) Schema(ctx context.Context, gvkKey string) (*core.CrdSchema, error) {
	gvk, err := parseGVKKey(gvkKey)
	if err != nil {
		return nil, err
	}
	return s.resolver.Schema(ctx, gvk)
}

// LastApplied returns up to limit prior last-applied records for uid,
// newest first, or an empty slice if no persistence store was
// configured.
func (s *Service) LastApplied(uid core.UID, limit int) ([]core.LastApplied, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.GetLast(uid, limit)
}

// parseGVKKey parses a "version/Kind" or "group/version/Kind" string
// into a core.ResourceKind, the same format internal/ops's
// parseGVKKey accepts.
func parseGVKKey(key string) (core.ResourceKind, error) {
	parts := strings.Split(key, "/")
	switch len(parts) {
	case 2:
		return core.ResourceKind{Version: parts[0], Kind: parts[1]}, nil
	case 3:
		return core.ResourceKind{Group: parts[0], Version: parts[1], Kind: parts[2]}, nil
	default:
		return core.ResourceKind{}, core.NewDomainError(core.KindValidation, fmt.Sprintf("invalid gvk key: %s (expect v1/Kind or group/v1/Kind)", key), nil)
	}
}
