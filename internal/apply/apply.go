// Package apply implements dry-run and server-side-apply edits plus
// the minimal structural diff used to summarize them. Ground truth is
// original_source/crates/apply.
package apply

import (
	"context"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/yaml"

	"github.com/orka-sh/orka/internal/core"
)

const fieldManager = "orka"

// Result reports the outcome of an Edit call.
type Result struct {
	DryRun   bool
	Applied  bool
	NewRV    string
	Warnings []string
	Summary  core.DiffSummary
}

// Options configures a single apply/dry-run/diff call.
type Options struct {
	NamespaceOverride string
	DryRun            bool
}

// Service orchestrates YAML-manifest edits against a single cluster:
// parsing and size-bounding the document, resolving its GVR via
// discovery, diffing against the live object, optionally performing a
// dry-run or real server-side apply, and persisting a last-applied
// record on success.
type Service struct {
	discovery core.DiscoveryClient
	resources core.ResourceRepo
	store     core.LastAppliedStore

	maxYAMLBytes         int
	maxYAMLNodes         int
	disableApplyPreflight bool
	disableLastApplied    bool
}

// NewService constructs a Service. store may be nil, in which case
// last-applied persistence is silently skipped (matching the
// reference's soft-fail-and-warn behavior when its store fails to
// open).
func NewService(discovery core.DiscoveryClient, resources core.ResourceRepo, store core.LastAppliedStore, maxYAMLBytes, maxYAMLNodes int, disableApplyPreflight, disableLastApplied bool) *Service {
	return &Service{
		discovery:             discovery,
		resources:             resources,
		store:                 store,
		maxYAMLBytes:          maxYAMLBytes,
		maxYAMLNodes:          maxYAMLNodes,
		disableApplyPreflight: disableApplyPreflight,
		disableLastApplied:    disableLastApplied,
	}
}

// target is a parsed manifest bound to a specific cluster resource.
type target struct {
	raw       map[string]any
	gvk       core.ResourceKind
	name      string
	namespace string
}

// parseTarget decodes yamlDoc, enforcing the size and node-count caps,
// and extracts the apiVersion/kind/metadata.name/metadata.namespace
// needed to address the object on the cluster.
func (s *Service) parseTarget(yamlDoc []byte, nsOverride string) (*target, error) {
	if len(yamlDoc) > s.maxYAMLBytes {
		return nil, core.NewDomainError(core.KindValidation, fmt.Sprintf("YAML payload too large (>%d bytes)", s.maxYAMLBytes), nil)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(yamlDoc, &raw); err != nil {
		return nil, core.NewDomainError(core.KindValidation, fmt.Sprintf("parsing YAML: %s", err), err)
	}

	if countNodes(raw, s.maxYAMLNodes+1) > s.maxYAMLNodes {
		return nil, core.NewDomainError(core.KindValidation, fmt.Sprintf("YAML document too complex (>%d nodes)", s.maxYAMLNodes), nil)
	}

	apiVersion, _ := raw["apiVersion"].(string)
	if apiVersion == "" {
		return nil, core.NewDomainError(core.KindValidation, "YAML missing apiVersion", nil)
	}
	kind, _ := raw["kind"].(string)
	if kind == "" {
		return nil, core.NewDomainError(core.KindValidation, "YAML missing kind", nil)
	}
	group, version := splitAPIVersion(apiVersion)

	meta, _ := raw["metadata"].(map[string]any)
	name, _ := meta["name"].(string)
	if name == "" {
		return nil, core.NewDomainError(core.KindValidation, "YAML missing metadata.name", nil)
	}

	namespace := nsOverride
	if namespace == "" {
		if meta != nil {
			namespace, _ = meta["namespace"].(string)
		}
	}

	return &target{
		raw:       raw,
		gvk:       core.ResourceKind{Group: group, Version: version, Kind: kind},
		name:      name,
		namespace: namespace,
	}, nil
}

func splitAPIVersion(apiVersion string) (group, version string) {
	for i := 0; i < len(apiVersion); i++ {
		if apiVersion[i] == '/' {
			return apiVersion[:i], apiVersion[i+1:]
		}
	}
	return "", apiVersion
}

// countNodes walks a decoded JSON-like tree, stopping as soon as the
// running count reaches max, to precheck a document's complexity
// without fully walking adversarially large inputs.
func countNodes(v any, max int) int {
	count := 0
	var walk func(any)
	walk = func(v any) {
		if count >= max {
			return
		}
		count++
		switch val := v.(type) {
		case map[string]any:
			for _, vv := range val {
				if count >= max {
					return
				}
				walk(vv)
			}
		case []any:
			for _, vv := range val {
				if count >= max {
					return
				}
				walk(vv)
			}
		}
	}
	walk(v)
	return count
}

// resolveGVR looks up the plural resource name and namespaced scope
// for a target's GVK via discovery's full server-resources listing —
// the Go analogue of kube::discovery's recommended_resources scan.
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

// Edit performs the full edit flow: parse, resolve GVR, diff against
// live, then either dry-run or apply. On a successful non-dry-run
// apply it persists a last-applied record (unless disabled or the
// kind is Secret).
func (s *Service) Edit(ctx context.Context, yamlDoc []byte, opts Options) (*Result, error) {
	t, err := s.parseTarget(yamlDoc, opts.NamespaceOverride)
	if err != nil {
		return nil, err
	}
	gvr, namespaced, err := s.resolveGVR(ctx, t.gvk)
	if err != nil {
		return nil, err
	}
	if namespaced && t.namespace == "" {
		return nil, core.NewDomainError(core.KindValidation, "namespace required for namespaced kind", nil)
	}

	live, err := s.resources.Get(ctx, gvr, t.namespace, t.name)
	if err != nil && core.Kind(err) != core.KindNotFound {
		return nil, err
	}

	liveJSON := stripNoisy(unstructuredToMap(live))
	tgtJSON := stripNoisy(t.raw)
	ensureMetadata(tgtJSON, t.name, t.namespace)
	summary := DiffSummary(tgtJSON, liveJSON)

	if opts.DryRun {
		applyOpts := core.ApplyOptions{Force: true, DryRun: true, FieldManager: fieldManager}
		if _, err := s.resources.Apply(ctx, gvr, t.namespace, t.name, yamlDoc, applyOpts); err != nil {
			return nil, fmt.Errorf("dry-run failed: %w", err)
		}
		return &Result{DryRun: true, Summary: summary}, nil
	}

	if !s.disableApplyPreflight && live != nil {
		prevRV := live.GetResourceVersion()
		if prevRV != "" {
			cur, err := s.resources.Get(ctx, gvr, t.namespace, t.name)
			if err != nil && core.Kind(err) != core.KindNotFound {
				return nil, err
			}
			if cur != nil {
				curRV := cur.GetResourceVersion()
				if curRV != "" && curRV != prevRV {
					return nil, core.NewDomainError(core.KindConflict, "apply preflight", &core.ErrStaleResourceVersion{Prev: prevRV, Cur: curRV})
				}
			}
		}
	}

	applyOpts := core.ApplyOptions{Force: true, FieldManager: fieldManager}
	applied, err := s.resources.Apply(ctx, gvr, t.namespace, t.name, yamlDoc, applyOpts)
	if err != nil {
		return nil, fmt.Errorf("server-side apply failed: %w", err)
	}
	newRV := applied.GetResourceVersion()

	s.persistLastApplied(t.gvk, applied, yamlDoc)

	return &Result{Applied: true, NewRV: newRV, Summary: summary}, nil
}

func (s *Service) persistLastApplied(gvk core.ResourceKind, applied *unstructured.Unstructured, yamlDoc []byte) {
	if s.store == nil || s.disableLastApplied {
		return
	}
	isSecret := gvk.Group == "" && gvk.Kind == "Secret"
	if isSecret {
		return
	}
	uidStr := string(applied.GetUID())
	uid, err := core.ParseUID(uidStr)
	if err != nil {
		return
	}
	rec := core.LastApplied{
		UID:       uid,
		RV:        applied.GetResourceVersion(),
		TS:        time.Now().Unix(),
		YAMLBytes: yamlDoc,
	}
	_ = s.store.PutLast(rec)
}

// Diff computes the structural diff between yamlDoc and the live
// object, plus (when a last-applied record exists) the diff against
// the previously applied manifest.
func (s *Service) Diff(ctx context.Context, yamlDoc []byte, opts Options) (live core.DiffSummary, lastApplied *core.DiffSummary, err error) {
	t, err := s.parseTarget(yamlDoc, opts.NamespaceOverride)
	if err != nil {
		return core.DiffSummary{}, nil, err
	}
	gvr, _, err := s.resolveGVR(ctx, t.gvk)
	if err != nil {
		return core.DiffSummary{}, nil, err
	}

	liveObj, err := s.resources.Get(ctx, gvr, t.namespace, t.name)
	if err != nil && core.Kind(err) != core.KindNotFound {
		return core.DiffSummary{}, nil, err
	}

	liveJSON := stripNoisy(unstructuredToMap(liveObj))
	tgtJSON := stripNoisy(t.raw)
	ensureMetadata(tgtJSON, t.name, t.namespace)
	live = DiffSummary(tgtJSON, liveJSON)

	if s.store == nil || liveObj == nil {
		return live, nil, nil
	}
	uid, err := core.ParseUID(string(liveObj.GetUID()))
	if err != nil {
		return live, nil, nil
	}
	rows, err := s.store.GetLast(uid, 1)
	if err != nil || len(rows) == 0 {
		return live, nil, nil
	}
	var prev map[string]any
	if err := yaml.Unmarshal(rows[0].YAMLBytes, &prev); err != nil {
		return live, nil, nil
	}
	prevStripped := stripNoisy(prev)
	sum := DiffSummary(tgtJSON, prevStripped)
	return live, &sum, nil
}

func unstructuredToMap(u *unstructured.Unstructured) map[string]any {
	if u == nil {
		return nil
	}
	return u.UnstructuredContent()
}

func ensureMetadata(v map[string]any, name, namespace string) {
	meta, ok := v["metadata"].(map[string]any)
	if !ok {
		meta = map[string]any{}
		v["metadata"] = meta
	}
	meta["name"] = name
	if namespace != "" {
		meta["namespace"] = namespace
	}
}

