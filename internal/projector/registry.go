package projector

import (
	"github.com/orka-sh/orka/internal/core"
)

// gvkKey mirrors core.ResourceKind.GVKKey without requiring callers to
// construct a ResourceKind just to look a projector up.
func gvkKey(group, version, kind string) string {
	if group == "" {
		return version + "/" + kind
	}
	return group + "/" + version + "/" + kind
}

// builtinProjector implements core.Projector for a single recognized
// GVK, dispatching to the matching per-kind project function.
type builtinProjector struct {
	gvkKey string
}

var _ core.Projector = (*builtinProjector)(nil)

func (p *builtinProjector) Project(raw map[string]any) []core.ProjectedField {
	switch p.gvkKey {
	case "v1/Pod":
		return projectPod(raw)
	case "apps/v1/Deployment":
		return projectDeployment(raw)
	case "apps/v1/StatefulSet":
		return projectStatefulSet(raw)
	case "apps/v1/DaemonSet":
		return projectDaemonSet(raw)
	case "v1/Service":
		return projectService(raw)
	case "networking.k8s.io/v1/Ingress":
		return projectIngress(raw)
	case "batch/v1/Job":
		return projectJob(raw)
	case "batch/v1/CronJob":
		return projectCronJob(raw)
	case "v1/PersistentVolumeClaim":
		return projectPVC(raw)
	case "v1/Node":
		return projectNode(raw)
	case "v1/Namespace":
		return projectNamespace(raw)
	default:
		return nil
	}
}

// builtinKeys lists every GVK the built-in registry recognizes.
var builtinKeys = map[string]bool{
	"v1/Pod":                      true,
	"apps/v1/Deployment":          true,
	"apps/v1/StatefulSet":         true,
	"apps/v1/DaemonSet":           true,
	"v1/Service":                  true,
	"networking.k8s.io/v1/Ingress": true,
	"batch/v1/Job":                true,
	"batch/v1/CronJob":            true,
	"v1/PersistentVolumeClaim":    true,
	"v1/Node":                     true,
	"v1/Namespace":                true,
}

// BuiltinFor returns a core.Projector for the given GVK, or nil if
// Orka has no opinionated column set for it — callers should fall back
// to the schema-derived projector (internal/schema) in that case.
func BuiltinFor(group, version, kind string) core.Projector {
	key := gvkKey(group, version, kind)
	if !builtinKeys[key] {
		return nil
	}
	return &builtinProjector{gvkKey: key}
}

// IsBuiltin reports whether Orka has a built-in projector for the
// given GVK, without allocating one.
func IsBuiltin(group, version, kind string) bool {
	return builtinKeys[gvkKey(group, version, kind)]
}
