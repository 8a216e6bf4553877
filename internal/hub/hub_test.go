package hub

import (
	"context"
	"testing"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	apiversion "k8s.io/apimachinery/pkg/version"
	openapispec "k8s.io/kube-openapi/pkg/validation/spec"

	"github.com/orka-sh/orka/internal/core"
	"github.com/orka-sh/orka/internal/watch"
)

// ---------------------------------------------------------------------------
// fakes (core.ResourceRepo / core.DiscoveryClient / core.Watcher)
// ---------------------------------------------------------------------------

type fakeDiscovery struct{}

func (f *fakeDiscovery) LookupResource(ctx context.Context, group, version, resource string) (schema.GroupVersionResource, error) {
	return schema.GroupVersionResource{}, nil
}
func (f *fakeDiscovery) ServerResources(ctx context.Context) ([]*metav1.APIResourceList, error) {
	return []*metav1.APIResourceList{
		{GroupVersion: "v1", APIResources: []metav1.APIResource{{Kind: "Pod", Name: "pods", Namespaced: true}}},
	}, nil
}
func (f *fakeDiscovery) ResolveSchema(ctx context.Context, group, version, kind string) (*openapispec.Schema, error) {
	return nil, nil
}
func (f *fakeDiscovery) ServerVersion(ctx context.Context) (*apiversion.Info, error) { return nil, nil }
func (f *fakeDiscovery) SupportsWatchList(ctx context.Context) (bool, error)         { return false, nil }

var _ core.DiscoveryClient = (*fakeDiscovery)(nil)

// fakeResources serves a single list page (gated, so tests can control
// exactly when the background relist observes it) and a single
// never-closing watch stream.
type fakeResources struct {
	gate  chan struct{} // closed to release List
	items []map[string]any
}

func (f *fakeResources) List(ctx context.Context, gvr schema.GroupVersionResource, namespace string, opts core.ListOptions) (*unstructured.UnstructuredList, error) {
	if f.gate != nil {
		<-f.gate
	}
	l := &unstructured.UnstructuredList{Object: map[string]any{}}
	for _, it := range f.items {
		l.Items = append(l.Items, unstructured.Unstructured{Object: it})
	}
	return l, nil
}
func (f *fakeResources) Get(ctx context.Context, gvr schema.GroupVersionResource, namespace, name string) (*unstructured.Unstructured, error) {
	return nil, nil
}
func (f *fakeResources) Create(ctx context.Context, gvr schema.GroupVersionResource, namespace string, manifest []byte) (*unstructured.Unstructured, error) {
	return nil, nil
}
func (f *fakeResources) Apply(ctx context.Context, gvr schema.GroupVersionResource, namespace, name string, manifest []byte, opts core.ApplyOptions) (*unstructured.Unstructured, error) {
	return nil, nil
}
func (f *fakeResources) Delete(ctx context.Context, gvr schema.GroupVersionResource, namespace, name string, opts core.DeleteOptions) error {
	return nil
}
func (f *fakeResources) Watch(ctx context.Context, gvr schema.GroupVersionResource, namespace string, opts core.WatchOptions) (core.Watcher, error) {
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

func podSel() core.Selector {
	return core.Selector{GVK: core.ResourceKind{Version: "v1", Kind: "Pod"}, Namespace: "default"}
}

func podObj(uid, name string) map[string]any {
	return map[string]any{
		"apiVersion": "v1",
		"kind":       "Pod",
		"metadata":   map[string]any{"uid": uid, "name": name, "namespace": "default"},
	}
}

func waitForApplied(t *testing.T, events <-chan core.LiteEvent, name string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Kind == core.LiteApplied && ev.Obj.Name == name {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for Applied(%s)", name)
		}
	}
}

// ---------------------------------------------------------------------------
// tests
// ---------------------------------------------------------------------------

func TestSubscribe_ReceivesAppliedEventAfterLiveRelist(t *testing.T) {
	resources := &fakeResources{items: []map[string]any{podObj("11111111-1111-1111-1111-111111111111", "a")}}
	watcher := watch.NewService(resources, &fakeDiscovery{}, 300*time.Second, 30*time.Second, 500)
	h := New(watcher, nil, 0, 0)
	defer h.Close()

	_, events, unsubscribe := h.Subscribe(podSel())
	defer unsubscribe()

	waitForApplied(t, events, "a")
}

func TestSubscribe_SharesOneWatchAcrossSubscribers(t *testing.T) {
	resources := &fakeResources{items: []map[string]any{podObj("11111111-1111-1111-1111-111111111111", "a")}}
	watcher := watch.NewService(resources, &fakeDiscovery{}, 300*time.Second, 30*time.Second, 500)
	h := New(watcher, nil, 0, 0)
	defer h.Close()

	_, events1, unsub1 := h.Subscribe(podSel())
	defer unsub1()
	_, events2, unsub2 := h.Subscribe(podSel())
	defer unsub2()

	waitForApplied(t, events1, "a")
	waitForApplied(t, events2, "a")

	h.mu.Lock()
	n := len(h.entries)
	h.mu.Unlock()
	if n != 1 {
		t.Fatalf("entries = %d, want 1 shared entry for identical selector", n)
	}
}

func TestPrime_SeedsCacheBeforeLiveDataArrives(t *testing.T) {
	gate := make(chan struct{})
	resources := &fakeResources{gate: gate, items: []map[string]any{podObj("11111111-1111-1111-1111-111111111111", "live")}}
	watcher := watch.NewService(resources, &fakeDiscovery{}, 300*time.Second, 30*time.Second, 500)
	h := New(watcher, nil, 0, 0)
	defer h.Close()

	seedUID, err := core.ParseUID("22222222-2222-2222-2222-222222222222")
	if err != nil {
		t.Fatalf("ParseUID: %v", err)
	}
	h.Prime(podSel(), []core.LiteObj{{UID: seedUID, Name: "seeded"}})

	items, events, unsubscribe := h.Subscribe(podSel())
	defer unsubscribe()

	if len(items) != 1 || items[0].Name != "seeded" {
		t.Fatalf("Subscribe items = %+v, want the seeded item before live data arrives", items)
	}

	close(gate)
	waitForApplied(t, events, "live")
}

func TestUnsubscribe_ClosesEventChannel(t *testing.T) {
	resources := &fakeResources{}
	watcher := watch.NewService(resources, &fakeDiscovery{}, 300*time.Second, 30*time.Second, 500)
	h := New(watcher, nil, 0, 0)
	defer h.Close()

	_, events, unsubscribe := h.Subscribe(podSel())
	unsubscribe()

	select {
	case _, ok := <-events:
		if ok {
			t.Fatal("expected channel closed after unsubscribe")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel close after unsubscribe")
	}
}

func TestLiteObjEqual(t *testing.T) {
	a := core.LiteObj{Name: "a", Namespace: "ns", Projected: []core.ProjectedField{{FieldID: 1, Value: "x"}}}
	b := a
	b.Projected = []core.ProjectedField{{FieldID: 1, Value: "x"}}
	if !liteObjEqual(a, b) {
		t.Fatal("expected equal")
	}
	b.Projected[0].Value = "y"
	if liteObjEqual(a, b) {
		t.Fatal("expected not equal after projected value change")
	}
}
