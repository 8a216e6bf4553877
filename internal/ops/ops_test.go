package ops

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	apiversion "k8s.io/apimachinery/pkg/version"
	openapispec "k8s.io/kube-openapi/pkg/validation/spec"

	"github.com/orka-sh/orka/internal/core"
)

// ---------------------------------------------------------------------------
// fakes
// ---------------------------------------------------------------------------

type fakeRuntime struct {
	podLogs        func(ctx context.Context, namespace, name string, opts core.PodLogOptions) (io.ReadCloser, error)
	listPodsOnNode func(ctx context.Context, node string) ([]core.ResourceRef, error)
	evictPod       func(ctx context.Context, namespace, name string, grace *int64) error
	updateScale    func(ctx context.Context, gvr schema.GroupVersionResource, namespace, name string, replicas int32) (int32, error)
	restart        func(ctx context.Context, gvr schema.GroupVersionResource, namespace, name string) error
}

func (f *fakeRuntime) PodLogs(ctx context.Context, namespace, name string, opts core.PodLogOptions) (io.ReadCloser, error) {
	return f.podLogs(ctx, namespace, name, opts)
}
func (f *fakeRuntime) Exec(ctx context.Context, namespace, name string, opts core.ExecOptions) error {
	return nil
}
func (f *fakeRuntime) GetScale(ctx context.Context, gvr schema.GroupVersionResource, namespace, name string) (int32, error) {
	return 0, nil
}
func (f *fakeRuntime) UpdateScale(ctx context.Context, gvr schema.GroupVersionResource, namespace, name string, replicas int32) (int32, error) {
	if f.updateScale != nil {
		return f.updateScale(ctx, gvr, namespace, name, replicas)
	}
	return 0, core.NewDomainError(core.KindNotFound, "no scale subresource", nil)
}
func (f *fakeRuntime) Restart(ctx context.Context, gvr schema.GroupVersionResource, namespace, name string) error {
	if f.restart != nil {
		return f.restart(ctx, gvr, namespace, name)
	}
	return nil
}
func (f *fakeRuntime) PortForward(ctx context.Context, namespace, name string, opts core.PortForwardOptions) error {
	return nil
}
func (f *fakeRuntime) DeletePod(ctx context.Context, namespace, name string, opts core.DeleteOptions) error {
	return nil
}
func (f *fakeRuntime) Cordon(ctx context.Context, node string, unschedulable bool) error {
	return nil
}
func (f *fakeRuntime) ListPodsOnNode(ctx context.Context, node string) ([]core.ResourceRef, error) {
	return f.listPodsOnNode(ctx, node)
}
func (f *fakeRuntime) EvictPod(ctx context.Context, namespace, name string, grace *int64) error {
	return f.evictPod(ctx, namespace, name, grace)
}

var _ core.RuntimeRepo = (*fakeRuntime)(nil)

type fakeResources struct {
	get   func(ctx context.Context, gvr schema.GroupVersionResource, namespace, name string) (*unstructured.Unstructured, error)
	apply func(ctx context.Context, gvr schema.GroupVersionResource, namespace, name string, manifest []byte, opts core.ApplyOptions) (*unstructured.Unstructured, error)
}

func (f *fakeResources) List(ctx context.Context, gvr schema.GroupVersionResource, namespace string, opts core.ListOptions) (*unstructured.UnstructuredList, error) {
	return nil, nil
}
func (f *fakeResources) Get(ctx context.Context, gvr schema.GroupVersionResource, namespace, name string) (*unstructured.Unstructured, error) {
	return f.get(ctx, gvr, namespace, name)
}
func (f *fakeResources) Create(ctx context.Context, gvr schema.GroupVersionResource, namespace string, manifest []byte) (*unstructured.Unstructured, error) {
	return nil, nil
}
func (f *fakeResources) Apply(ctx context.Context, gvr schema.GroupVersionResource, namespace, name string, manifest []byte, opts core.ApplyOptions) (*unstructured.Unstructured, error) {
	return f.apply(ctx, gvr, namespace, name, manifest, opts)
}
func (f *fakeResources) Delete(ctx context.Context, gvr schema.GroupVersionResource, namespace, name string, opts core.DeleteOptions) error {
	return nil
}
func (f *fakeResources) Watch(ctx context.Context, gvr schema.GroupVersionResource, namespace string, opts core.WatchOptions) (core.Watcher, error) {
	return nil, nil
}
func (f *fakeResources) ListEvents(ctx context.Context, namespace string, opts core.ListOptions) (*unstructured.UnstructuredList, error) {
	return nil, nil
}

var _ core.ResourceRepo = (*fakeResources)(nil)

type fakeDiscovery struct {
	lists []*metav1.APIResourceList
}

func (f *fakeDiscovery) LookupResource(ctx context.Context, group, version, resource string) (schema.GroupVersionResource, error) {
	return schema.GroupVersionResource{}, nil
}
func (f *fakeDiscovery) ServerResources(ctx context.Context) ([]*metav1.APIResourceList, error) {
	return f.lists, nil
}
func (f *fakeDiscovery) ResolveSchema(ctx context.Context, group, version, kind string) (*openapispec.Schema, error) {
	return nil, nil
}
func (f *fakeDiscovery) ServerVersion(ctx context.Context) (*apiversion.Info, error) { return nil, nil }
func (f *fakeDiscovery) SupportsWatchList(ctx context.Context) (bool, error)         { return false, nil }

var _ core.DiscoveryClient = (*fakeDiscovery)(nil)

type fakeCaps struct {
	allow func(check core.AccessCheck) bool
}

func (f *fakeCaps) CanI(ctx context.Context, check core.AccessCheck) (bool, error) {
	return f.allow(check), nil
}

var _ core.CapabilityRepo = (*fakeCaps)(nil)

// ---------------------------------------------------------------------------
// parseGVKKey
// ---------------------------------------------------------------------------

func TestParseGVKKey_ParsesCore(t *testing.T) {
	gvk, err := parseGVKKey("v1/ConfigMap")
	if err != nil {
		t.Fatalf("parseGVKKey: %v", err)
	}
	if gvk.Group != "" || gvk.Version != "v1" || gvk.Kind != "ConfigMap" {
		t.Errorf("gvk = %+v", gvk)
	}
}

func TestParseGVKKey_ParsesGroup(t *testing.T) {
	gvk, err := parseGVKKey("apps/v1/Deployment")
	if err != nil {
		t.Fatalf("parseGVKKey: %v", err)
	}
	if gvk.Group != "apps" || gvk.Version != "v1" || gvk.Kind != "Deployment" {
		t.Errorf("gvk = %+v", gvk)
	}
}

func TestParseGVKKey_InvalidReturnsErr(t *testing.T) {
	for _, key := range []string{"invalid", "", "a/b/c/d"} {
		if _, err := parseGVKKey(key); err == nil {
			t.Errorf("parseGVKKey(%q): expected error", key)
		}
	}
}

// ---------------------------------------------------------------------------
// Drain
// ---------------------------------------------------------------------------

func TestDrain_RetriesOnConflictThenSucceeds(t *testing.T) {
	calls := 0
	rt := &fakeRuntime{
		listPodsOnNode: func(ctx context.Context, node string) ([]core.ResourceRef, error) {
			calls++
			if calls <= 3 {
				return []core.ResourceRef{{Namespace: "ns", Name: "p"}}, nil
			}
			return nil, nil
		},
		evictPod: func(ctx context.Context, namespace, name string, grace *int64) error {
			if calls < 3 {
				return core.NewDomainError(core.KindConflict, "blocked by pdb", nil)
			}
			return nil
		},
	}
	s := NewService(rt, nil, nil, nil, 0, time.Second, time.Millisecond)
	if err := s.Drain(context.Background(), "node-1"); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if calls < 3 {
		t.Errorf("expected at least 3 list/evict rounds, got %d", calls)
	}
}

func TestDrain_TimesOutWithRemainingPods(t *testing.T) {
	rt := &fakeRuntime{
		listPodsOnNode: func(ctx context.Context, node string) ([]core.ResourceRef, error) {
			return []core.ResourceRef{{Namespace: "ns", Name: "stuck"}}, nil
		},
		evictPod: func(ctx context.Context, namespace, name string, grace *int64) error {
			return core.NewDomainError(core.KindConflict, "blocked by pdb", nil)
		},
	}
	s := NewService(rt, nil, nil, nil, 0, 5*time.Millisecond, time.Millisecond)
	err := s.Drain(context.Background(), "node-1")
	if err == nil || core.Kind(err) != core.KindConflict {
		t.Fatalf("expected conflict timeout error, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Scale
// ---------------------------------------------------------------------------

func nodeResourceList() []*metav1.APIResourceList {
	return []*metav1.APIResourceList{
		{GroupVersion: "apps/v1", APIResources: []metav1.APIResource{{Name: "deployments", Kind: "Deployment", Namespaced: true}}},
	}
}

func TestScale_FallsBackToPatchWhenNoSubresource(t *testing.T) {
	applied := false
	rt := &fakeRuntime{
		updateScale: func(ctx context.Context, gvr schema.GroupVersionResource, namespace, name string, replicas int32) (int32, error) {
			return 0, core.NewDomainError(core.KindNotFound, "no scale subresource", nil)
		},
	}
	res := &fakeResources{
		apply: func(ctx context.Context, gvr schema.GroupVersionResource, namespace, name string, manifest []byte, opts core.ApplyOptions) (*unstructured.Unstructured, error) {
			applied = true
			return &unstructured.Unstructured{Object: map[string]any{"spec": map[string]any{"replicas": int64(3)}}}, nil
		},
	}
	disc := &fakeDiscovery{lists: nodeResourceList()}
	s := NewService(rt, res, disc, nil, 0, 0, 0)

	got, err := s.Scale(context.Background(), "apps/v1/Deployment", "ns", "web", 3, true)
	if err != nil {
		t.Fatalf("Scale: %v", err)
	}
	if !applied {
		t.Error("expected fallback Apply to be called")
	}
	if got != 3 {
		t.Errorf("got replicas %d, want 3", got)
	}
}

// ---------------------------------------------------------------------------
// Logs
// ---------------------------------------------------------------------------

type stringReadCloser struct{ io.Reader }

func (stringReadCloser) Close() error { return nil }

func TestPumpContainerLogs_SplitsLinesAndFlushesTail(t *testing.T) {
	rt := &fakeRuntime{
		podLogs: func(ctx context.Context, namespace, name string, opts core.PodLogOptions) (io.ReadCloser, error) {
			return stringReadCloser{strings.NewReader("hello\nworld\ntail")}, nil
		},
	}
	s := NewService(rt, nil, nil, nil, 16, 0, 0)

	out := make(chan LogLine, 16)
	if err := s.pumpContainerLogs(context.Background(), "ns", "pod", "main", LogOptions{}, out); err != nil {
		t.Fatalf("pumpContainerLogs: %v", err)
	}
	close(out)

	var got []string
	for l := range out {
		got = append(got, l.Line)
	}
	want := []string{"hello", "world", "tail"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLogs_AllContainersFansOut(t *testing.T) {
	rt := &fakeRuntime{
		podLogs: func(ctx context.Context, namespace, name string, opts core.PodLogOptions) (io.ReadCloser, error) {
			return stringReadCloser{strings.NewReader(opts.Container + "-line\n")}, nil
		},
	}
	res := &fakeResources{
		get: func(ctx context.Context, gvr schema.GroupVersionResource, namespace, name string) (*unstructured.Unstructured, error) {
			return &unstructured.Unstructured{Object: map[string]any{
				"spec": map[string]any{
					"containers": []any{
						map[string]any{"name": "app"},
						map[string]any{"name": "sidecar"},
					},
				},
			}}, nil
		},
	}
	s := NewService(rt, res, nil, nil, 16, 0, 0)

	out, cancel, err := s.Logs(context.Background(), "ns", "pod", LogOptions{AllContainers: true})
	if err != nil {
		t.Fatalf("Logs: %v", err)
	}
	defer cancel()

	seen := map[string]bool{}
	for l := range out {
		seen[l.Container] = true
	}
	if !seen["app"] || !seen["sidecar"] {
		t.Errorf("expected lines from both containers, got %v", seen)
	}
}
