// Package ops implements Orka's imperative Kubernetes operations: pod
// logs, exec, port-forward, scale, rollout restart, pod deletion, node
// cordon, and PDB-aware node drain, plus a SelfSubjectAccessReview-based
// capability probe. Ground truth is original_source/crates/ops.
package ops

import (
	"context"
	"fmt"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/yaml"

	"github.com/orka-sh/orka/internal/core"
)

// Service orchestrates imperative operations against a single cluster,
// built on top of core.RuntimeRepo (the low-level client-go adapter),
// core.ResourceRepo (for the scale-fallback patch and pod lookups),
// core.DiscoveryClient (GVK -> GVR resolution), and core.CapabilityRepo
// (RBAC probing for caps).
type Service struct {
	runtime      core.RuntimeRepo
	resources    core.ResourceRepo
	discovery    core.DiscoveryClient
	capabilities core.CapabilityRepo

	queueCap     int
	drainTimeout time.Duration
	drainPoll    time.Duration
}

// NewService constructs a Service. queueCap bounds the channel Logs
// returns; drainTimeout/drainPoll control Drain's eviction retry
// loop.
func NewService(runtime core.RuntimeRepo, resources core.ResourceRepo, discovery core.DiscoveryClient, capabilities core.CapabilityRepo, queueCap int, drainTimeout, drainPoll time.Duration) *Service {
	if queueCap <= 0 {
		queueCap = 1024
	}
	return &Service{
		runtime:      runtime,
		resources:    resources,
		discovery:    discovery,
		capabilities: capabilities,
		queueCap:     queueCap,
		drainTimeout: drainTimeout,
		drainPoll:    drainPoll,
	}
}

// parseGVKKey parses a "version/Kind" or "group/version/Kind" string
// (e.g. "v1/ConfigMap", "apps/v1/Deployment") into a core.ResourceKind.
// Namespaced is left false; callers resolve it via resolveGVR.
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

// resolveGVR looks up the plural resource name and namespaced scope for
// gvk via a full server-resources scan, the same discovery idiom
// internal/apply uses.
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

// Scale sets the desired replica count for the named resource,
// identified by a "group/version/Kind" key. When useSubresource is
// true it first tries the /scale subresource; on any failure (most
// commonly the kind not exposing one) it falls back to a server-side
// apply merge-patch of spec.replicas, mirroring the reference
// implementation's patch_scale-then-patch fallback.
func (s *Service) Scale(ctx context.Context, gvkKey string, namespace, name string, replicas int32, useSubresource bool) (int32, error) {
	gvk, err := parseGVKKey(gvkKey)
	if err != nil {
		return 0, err
	}
	gvr, namespaced, err := s.resolveGVR(ctx, gvk)
	if err != nil {
		return 0, err
	}
	if namespaced && namespace == "" {
		return 0, core.NewDomainError(core.KindValidation, "namespace required for namespaced kind", nil)
	}

	if useSubresource {
		if got, err := s.runtime.UpdateScale(ctx, gvr, namespace, name, replicas); err == nil {
			return got, nil
		}
	}

	patch := map[string]any{
		"apiVersion": apiVersionOf(gvk),
		"kind":       gvk.Kind,
		"metadata":   map[string]any{"name": name, "namespace": namespace},
		"spec":       map[string]any{"replicas": replicas},
	}
	doc, err := yaml.Marshal(patch)
	if err != nil {
		return 0, fmt.Errorf("marshal scale fallback patch: %w", err)
	}
	applied, err := s.resources.Apply(ctx, gvr, namespace, name, doc, core.ApplyOptions{Force: true, FieldManager: "orka"})
	if err != nil {
		return 0, fmt.Errorf("scale fallback patch failed: %w", err)
	}
	got, _, _ := unstructured.NestedInt64(applied.Object, "spec", "replicas")
	return int32(got), nil
}

// RolloutRestart triggers a rolling restart of the named resource by
// patching its pod template's restartedAt annotation.
func (s *Service) RolloutRestart(ctx context.Context, gvkKey string, namespace, name string) error {
	gvk, err := parseGVKKey(gvkKey)
	if err != nil {
		return err
	}
	gvr, namespaced, err := s.resolveGVR(ctx, gvk)
	if err != nil {
		return err
	}
	if namespaced && namespace == "" {
		return core.NewDomainError(core.KindValidation, "namespace required for namespaced kind", nil)
	}
	return s.runtime.Restart(ctx, gvr, namespace, name)
}

// DeletePod deletes a single pod outright (no PDB consideration).
func (s *Service) DeletePod(ctx context.Context, namespace, name string, gracePeriodSeconds *int64) error {
	return s.runtime.DeletePod(ctx, namespace, name, core.DeleteOptions{GracePeriodSeconds: gracePeriodSeconds})
}

// Cordon marks a node unschedulable, or schedulable again.
func (s *Service) Cordon(ctx context.Context, node string, unschedulable bool) error {
	return s.runtime.Cordon(ctx, node, unschedulable)
}

func apiVersionOf(gvk core.ResourceKind) string {
	if gvk.Group == "" {
		return gvk.Version
	}
	return gvk.Group + "/" + gvk.Version
}
