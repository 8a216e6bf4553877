package ops

import (
	"context"

	"github.com/orka-sh/orka/internal/core"
)

// Caps probes the caller's RBAC grants for every imperative operation
// Orka exposes, via SelfSubjectAccessReview. scaleGVK, when non-empty
// ("group/version/Kind"), also probes whether that kind's /scale
// subresource (preferred) or its bare spec can be patched.
func (s *Service) Caps(ctx context.Context, namespace, scaleGVK string) (core.OpsCaps, error) {
	caps := core.OpsCaps{
		PodLogs:     s.canI(ctx, namespace, "", "pods", "log", "get"),
		PodExec:     s.canI(ctx, namespace, "", "pods", "exec", "create"),
		PortForward: s.canI(ctx, namespace, "", "pods", "portforward", "create"),
		NodePatch:   s.canI(ctx, "", "", "nodes", "", "patch"),
	}
	if namespace != "" {
		caps.PodEviction = s.canI(ctx, namespace, "policy", "pods", "eviction", "create")
	}

	if scaleGVK != "" {
		if sc, err := s.scaleCaps(ctx, namespace, scaleGVK); err == nil {
			caps.ScaleSubresource = sc.HasScaleSubresource
		}
	}

	return caps, nil
}

// scaleCaps resolves scaleGVK's plural resource name via discovery and
// probes both the /scale subresource patch and a bare spec.replicas
// patch, so callers can decide which path Scale will ultimately take.
func (s *Service) scaleCaps(ctx context.Context, namespace, scaleGVK string) (core.ScaleCaps, error) {
	gvk, err := parseGVKKey(scaleGVK)
	if err != nil {
		return core.ScaleCaps{}, err
	}
	gvr, namespaced, err := s.resolveGVR(ctx, gvk)
	if err != nil {
		return core.ScaleCaps{}, err
	}

	ns := ""
	if namespaced {
		ns = namespace
	}
	return core.ScaleCaps{
		Plural:              gvr.Resource,
		HasScaleSubresource: s.canI(ctx, ns, gvk.Group, gvr.Resource, "scale", "patch"),
		HasSpecReplicas:     s.canI(ctx, ns, gvk.Group, gvr.Resource, "", "patch"),
	}, nil
}

// canI wraps a single SelfSubjectAccessReview probe, treating any
// transport error as "not allowed" so a missing/unreachable reviews
// API degrades caps to all-false rather than failing outright.
func (s *Service) canI(ctx context.Context, namespace, group, resource, subresource, verb string) bool {
	allowed, err := s.capabilities.CanI(ctx, core.AccessCheck{
		Namespace:   namespace,
		Group:       group,
		Resource:    resource,
		Subresource: subresource,
		Verb:        verb,
	})
	if err != nil {
		return false
	}
	return allowed
}
