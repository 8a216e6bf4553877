package watch

import (
	"context"
	"fmt"
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

func podDiscovery() []*metav1.APIResourceList {
	return []*metav1.APIResourceList{
		{
			GroupVersion: "v1",
			APIResources: []metav1.APIResource{
				{Kind: "Pod", Name: "pods", Namespaced: true},
			},
		},
	}
}

type fakeResources struct {
	lists  []*unstructured.UnstructuredList
	listAt int
	listErr error

	watchers []core.Watcher
	watchAt  int
	watchErr error
}

func (f *fakeResources) List(ctx context.Context, gvr schema.GroupVersionResource, namespace string, opts core.ListOptions) (*unstructured.UnstructuredList, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if f.listAt >= len(f.lists) {
		return &unstructured.UnstructuredList{}, nil
	}
	l := f.lists[f.listAt]
	f.listAt++
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
	if f.watchErr != nil {
		return nil, f.watchErr
	}
	if f.watchAt >= len(f.watchers) {
		return &fakeWatcher{ch: make(chan core.WatchEvent)}, nil
	}
	w := f.watchers[f.watchAt]
	f.watchAt++
	return w, nil
}
func (f *fakeResources) ListEvents(ctx context.Context, namespace string, opts core.ListOptions) (*unstructured.UnstructuredList, error) {
	return nil, nil
}

var _ core.ResourceRepo = (*fakeResources)(nil)

type fakeWatcher struct {
	ch chan core.WatchEvent
}

func (w *fakeWatcher) ResultChan() <-chan core.WatchEvent { return w.ch }
func (w *fakeWatcher) Stop()                              {}

var _ core.Watcher = (*fakeWatcher)(nil)

func podObj(uid, name string) map[string]any {
	return map[string]any{
		"apiVersion": "v1",
		"kind":       "Pod",
		"metadata": map[string]any{
			"uid":           uid,
			"name":          name,
			"namespace":     "default",
			"managedFields": []any{map[string]any{"manager": "kubectl"}},
		},
	}
}

func unstructuredList(items ...map[string]any) *unstructured.UnstructuredList {
	l := &unstructured.UnstructuredList{Object: map[string]any{}}
	for _, it := range items {
		l.Items = append(l.Items, unstructured.Unstructured{Object: it})
	}
	return l
}

// ---------------------------------------------------------------------------
// PrimeList
// ---------------------------------------------------------------------------

func TestPrimeList_SendsAppliedDeltasAndStripsManagedFields(t *testing.T) {
	resources := &fakeResources{
		lists: []*unstructured.UnstructuredList{
			unstructuredList(
				podObj("11111111-1111-1111-1111-111111111111", "a"),
				podObj("22222222-2222-2222-2222-222222222222", "b"),
			),
		},
	}
	svc := NewService(resources, &fakeDiscovery{lists: podDiscovery()}, 300*time.Second, 30*time.Second, 500)

	out := make(chan core.Delta, 4)
	sent, err := svc.PrimeList(context.Background(), core.Selector{GVK: core.ResourceKind{Version: "v1", Kind: "Pod"}, Namespace: "default"}, out)
	if err != nil {
		t.Fatalf("PrimeList: %v", err)
	}
	if sent != 2 {
		t.Fatalf("sent = %d, want 2", sent)
	}
	close(out)
	for d := range out {
		if d.Kind != core.DeltaApplied {
			t.Errorf("kind = %v, want DeltaApplied", d.Kind)
		}
		meta, _ := d.Raw["metadata"].(map[string]any)
		if _, ok := meta["managedFields"]; ok {
			t.Errorf("managedFields not stripped: %v", meta)
		}
	}
}

func TestPrimeList_PagesUntilContinueEmpty(t *testing.T) {
	page1 := unstructuredList(podObj("11111111-1111-1111-1111-111111111111", "a"))
	page1.Object["metadata"] = map[string]any{"continue": "tok1"}
	page2 := unstructuredList(podObj("22222222-2222-2222-2222-222222222222", "b"))

	resources := &fakeResources{lists: []*unstructured.UnstructuredList{page1, page2}}
	svc := NewService(resources, &fakeDiscovery{lists: podDiscovery()}, 300*time.Second, 30*time.Second, 500)

	out := make(chan core.Delta, 4)
	sent, err := svc.PrimeList(context.Background(), core.Selector{GVK: core.ResourceKind{Version: "v1", Kind: "Pod"}}, out)
	if err != nil {
		t.Fatalf("PrimeList: %v", err)
	}
	if sent != 2 {
		t.Fatalf("sent = %d, want 2", sent)
	}
	if resources.listAt != 2 {
		t.Fatalf("listAt = %d, want 2 pages fetched", resources.listAt)
	}
}

// ---------------------------------------------------------------------------
// StartWatcher
// ---------------------------------------------------------------------------

func TestStartWatcher_Expired410TriggersImmediateRelistNoBackoff(t *testing.T) {
	errCh := make(chan core.WatchEvent, 1)
	errCh <- core.WatchEvent{Type: core.WatchEventError, Object: map[string]any{"reason": "Expired", "code": float64(410), "message": "too old resource version"}}
	close(errCh)

	relistPage := unstructuredList(podObj("11111111-1111-1111-1111-111111111111", "a"))

	resources := &fakeResources{
		watchers: []core.Watcher{&fakeWatcher{ch: errCh}},
		lists:    []*unstructured.UnstructuredList{relistPage},
	}
	svc := NewService(resources, &fakeDiscovery{lists: podDiscovery()}, 300*time.Second, 30*time.Second, 500)

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan core.Delta, 4)

	done := make(chan error, 1)
	go func() { done <- svc.StartWatcher(ctx, core.Selector{GVK: core.ResourceKind{Version: "v1", Kind: "Pod"}}, out) }()

	select {
	case d := <-out:
		if d.Kind != core.DeltaApplied {
			t.Errorf("relist delta kind = %v, want DeltaApplied", d.Kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for relist delta after expired watch")
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("StartWatcher returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("StartWatcher did not exit after cancel")
	}
}

func TestStartWatcher_NonExpiredErrorBacksOffThenRetries(t *testing.T) {
	errCh := make(chan core.WatchEvent, 1)
	errCh <- core.WatchEvent{Type: core.WatchEventError, Object: map[string]any{"reason": "InternalError", "code": float64(500), "message": "boom"}}
	close(errCh)

	retryCh := make(chan core.WatchEvent, 1)
	retryCh <- core.WatchEvent{Type: core.WatchEventAdded, Object: podObj("11111111-1111-1111-1111-111111111111", "a")}

	resources := &fakeResources{
		watchers: []core.Watcher{&fakeWatcher{ch: errCh}, &fakeWatcher{ch: retryCh}},
	}
	svc := NewService(resources, &fakeDiscovery{lists: podDiscovery()}, 300*time.Second, 30*time.Second, 500)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan core.Delta, 4)

	go func() { _ = svc.StartWatcher(ctx, core.Selector{GVK: core.ResourceKind{Version: "v1", Kind: "Pod"}}, out) }()

	select {
	case d := <-out:
		if d.Kind != core.DeltaApplied {
			t.Errorf("kind = %v, want DeltaApplied", d.Kind)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for delta after backoff+retry")
	}
}

// ---------------------------------------------------------------------------
// isExpired / deltaFromObject
// ---------------------------------------------------------------------------

func TestIsExpired(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{fmt.Errorf("watch stream error: reason=Expired code=410 message=too old resource version"), true},
		{fmt.Errorf("resourceVersion is too old, watch closed (HTTP 410)"), true},
		{fmt.Errorf("the requested resource version has EXPIRED"), true},
		{fmt.Errorf("watch stream error: reason=InternalError code=500 message=boom"), false},
		{nil, false},
	}
	for _, c := range cases {
		if got := isExpired(c.err); got != c.want {
			t.Errorf("isExpired(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestDeltaFromObject_MissingUIDErrors(t *testing.T) {
	_, err := deltaFromObject(map[string]any{"metadata": map[string]any{"name": "a"}}, core.DeltaApplied)
	if err == nil {
		t.Fatal("expected error for missing uid")
	}
}
