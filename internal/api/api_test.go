package api

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	k8sschema "k8s.io/apimachinery/pkg/runtime/schema"
	apiversion "k8s.io/apimachinery/pkg/version"
	openapispec "k8s.io/kube-openapi/pkg/validation/spec"

	"github.com/orka-sh/orka/internal/apply"
	"github.com/orka-sh/orka/internal/core"
	"github.com/orka-sh/orka/internal/hub"
	"github.com/orka-sh/orka/internal/watch"
)

// ---------------------------------------------------------------------------
// fakes
// ---------------------------------------------------------------------------

type fakeDiscovery struct {
	lists []*metav1.APIResourceList
}

func (f *fakeDiscovery) LookupResource(ctx context.Context, group, version, resource string) (k8sschema.GroupVersionResource, error) {
	return k8sschema.GroupVersionResource{}, nil
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

func podDiscovery() []*metav1.APIResourceList {
	return []*metav1.APIResourceList{
		{GroupVersion: "v1", APIResources: []metav1.APIResource{{Kind: "Pod", Name: "pods", Namespaced: true}}},
	}
}

type fakeResources struct {
	getObj    *unstructured.Unstructured
	getErr    error
	applyObj  *unstructured.Unstructured
	applyErr  error
	listItems []map[string]any
}

func (f *fakeResources) List(ctx context.Context, gvr k8sschema.GroupVersionResource, namespace string, opts core.ListOptions) (*unstructured.UnstructuredList, error) {
	l := &unstructured.UnstructuredList{Object: map[string]any{}}
	for _, it := range f.listItems {
		l.Items = append(l.Items, unstructured.Unstructured{Object: it})
	}
	return l, nil
}
func (f *fakeResources) Get(ctx context.Context, gvr k8sschema.GroupVersionResource, namespace, name string) (*unstructured.Unstructured, error) {
	return f.getObj, f.getErr
}
func (f *fakeResources) Create(ctx context.Context, gvr k8sschema.GroupVersionResource, namespace string, manifest []byte) (*unstructured.Unstructured, error) {
	return nil, nil
}
func (f *fakeResources) Apply(ctx context.Context, gvr k8sschema.GroupVersionResource, namespace, name string, manifest []byte, opts core.ApplyOptions) (*unstructured.Unstructured, error) {
	return f.applyObj, f.applyErr
}
func (f *fakeResources) Delete(ctx context.Context, gvr k8sschema.GroupVersionResource, namespace, name string, opts core.DeleteOptions) error {
	return nil
}
func (f *fakeResources) Watch(ctx context.Context, gvr k8sschema.GroupVersionResource, namespace string, opts core.WatchOptions) (core.Watcher, error) {
	return &fakeWatcher{ch: make(chan core.WatchEvent)}, nil
}
func (f *fakeResources) ListEvents(ctx context.Context, namespace string, opts core.ListOptions) (*unstructured.UnstructuredList, error) {
	return nil, nil
}

var _ core.ResourceRepo = (*fakeResources)(nil)

type fakeWatcher struct{ ch chan core.WatchEvent }

func (w *fakeWatcher) ResultChan() <-chan core.WatchEvent { return w.ch }
func (w *fakeWatcher) Stop()                              {}

var _ core.Watcher = (*fakeWatcher)(nil)

type fakeStore struct {
	records map[core.UID][]core.LastApplied
}

func newFakeStore() *fakeStore { return &fakeStore{records: map[core.UID][]core.LastApplied{}} }

func (s *fakeStore) PutLast(rec core.LastApplied) error {
	s.records[rec.UID] = append([]core.LastApplied{rec}, s.records[rec.UID]...)
	return nil
}
func (s *fakeStore) GetLast(uid core.UID, limit int) ([]core.LastApplied, error) {
	rows := s.records[uid]
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}
func (s *fakeStore) Close() error { return nil }

var _ core.LastAppliedStore = (*fakeStore)(nil)

func podObj(uid, name string) map[string]any {
	return map[string]any{
		"apiVersion": "v1",
		"kind":       "Pod",
		"metadata":   map[string]any{"uid": uid, "name": name, "namespace": "default"},
	}
}

func podSel() core.Selector {
	return core.Selector{GVK: core.ResourceKind{Version: "v1", Kind: "Pod"}, Namespace: "default"}
}

// ---------------------------------------------------------------------------
// tests
// ---------------------------------------------------------------------------

func TestDiscover_ListsResourceKinds(t *testing.T) {
	s := &Service{discovery: &fakeDiscovery{lists: podDiscovery()}}
	kinds, err := s.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(kinds) != 1 || kinds[0].Kind != "Pod" || !kinds[0].Namespaced {
		t.Fatalf("kinds = %+v, want a single namespaced Pod kind", kinds)
	}
}

func TestGetRaw_ReturnsMarshaledObject(t *testing.T) {
	obj := &unstructured.Unstructured{Object: podObj("11111111-1111-1111-1111-111111111111", "a")}
	s := &Service{
		discovery: &fakeDiscovery{lists: podDiscovery()},
		resources: &fakeResources{getObj: obj},
	}
	raw, err := s.GetRaw(context.Background(), core.ResourceRef{GVK: core.ResourceKind{Version: "v1", Kind: "Pod"}, Namespace: "default", Name: "a"})
	if err != nil {
		t.Fatalf("GetRaw: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["kind"] != "Pod" {
		t.Fatalf("decoded kind = %v, want Pod", decoded["kind"])
	}
}

func TestGetRaw_NotFoundWhenObjectMissing(t *testing.T) {
	s := &Service{
		discovery: &fakeDiscovery{lists: podDiscovery()},
		resources: &fakeResources{getObj: nil},
	}
	_, err := s.GetRaw(context.Background(), core.ResourceRef{GVK: core.ResourceKind{Version: "v1", Kind: "Pod"}, Namespace: "default", Name: "missing"})
	if core.Kind(err) != core.KindNotFound {
		t.Fatalf("err kind = %v, want KindNotFound", core.Kind(err))
	}
}

func TestSnapshotAndSearch_ReturnsMatchingHit(t *testing.T) {
	resources := &fakeResources{listItems: []map[string]any{
		podObj("11111111-1111-1111-1111-111111111111", "frontend-a"),
		podObj("22222222-2222-2222-2222-222222222222", "backend-b"),
	}}
	discovery := &fakeDiscovery{lists: podDiscovery()}
	watcher := watch.NewService(resources, discovery, 300*time.Second, 30*time.Second, 500)
	resolver := NewSchemaResolver(nil, false, true)
	h := hub.New(watcher, resolver.Resolve, 0, 0)
	defer h.Close()

	s := NewService(discovery, resources, h, watcher, resolver, nil, nil, nil, Config{})

	deadline := time.After(2 * time.Second)
	for {
		resp, err := s.Snapshot(context.Background(), podSel())
		if err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
		if len(resp.Data.Items) == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for snapshot to populate, got %d items", len(resp.Data.Items))
		case <-time.After(10 * time.Millisecond):
		}
	}

	result, err := s.Search(context.Background(), podSel(), "frontend", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(result.Hits) != 1 || result.Hits[0].Obj.Name != "frontend-a" {
		t.Fatalf("hits = %+v, want a single frontend-a hit", result.Hits)
	}
}

func TestApply_PersistsLastAppliedRecord(t *testing.T) {
	live := &unstructured.Unstructured{Object: podObj("11111111-1111-1111-1111-111111111111", "a")}
	applied := &unstructured.Unstructured{Object: podObj("11111111-1111-1111-1111-111111111111", "a")}
	applied.SetResourceVersion("2")

	resources := &fakeResources{getObj: live, applyObj: applied}
	discovery := &fakeDiscovery{lists: podDiscovery()}
	store := newFakeStore()
	applySvc := apply.NewService(discovery, resources, store, 1<<20, 10_000, false, false)

	s := NewService(discovery, resources, nil, nil, nil, applySvc, nil, store, Config{})

	yamlDoc := []byte("apiVersion: v1\nkind: Pod\nmetadata:\n  name: a\n  namespace: default\n")
	result, err := s.Apply(context.Background(), yamlDoc, "")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !result.Applied {
		t.Fatalf("result.Applied = false, want true")
	}

	uid, _ := core.ParseUID("11111111-1111-1111-1111-111111111111")
	rows, err := s.LastApplied(uid, 10)
	if err != nil {
		t.Fatalf("LastApplied: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("LastApplied rows = %d, want 1", len(rows))
	}
}

func TestSchema_ReturnsNilForBuiltinKind(t *testing.T) {
	resolver := NewSchemaResolver(nil, false, true)
	s := &Service{resolver: resolver}
	crd, err := s.Schema(context.Background(), "v1/Pod")
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}
	if crd != nil {
		t.Fatalf("crd = %+v, want nil for core-group kind", crd)
	}
}
