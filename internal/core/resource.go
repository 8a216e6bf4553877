package core

// ADR: Kubernetes types in the domain layer
//
// This file imports several k8s.io packages (apimachinery, kube-openapi)
// directly into the core (domain) layer. In a strict DDD interpretation,
// domain types should be infrastructure-agnostic. However, Orka's core
// business *is* Kubernetes resource management: GVR, Unstructured,
// APIResourceList, and OpenAPI Schema are part of the domain's Ubiquitous
// Language, not incidental infrastructure details.
//
// Wrapping these types in custom DTOs would introduce a costly
// translation layer at every boundary with no material benefit — the
// domain would still be structurally identical to the K8s types.
//
// Trade-off accepted: we allow k8s.io/apimachinery and kube-openapi
// imports in core, treating them as domain-level vocabulary rather than
// infrastructure leakage.

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/version"
	"k8s.io/kube-openapi/pkg/validation/spec"
)

// ---------------------------------------------------------------------------
// Canonical in-memory shapes
// ---------------------------------------------------------------------------

// UID is the 16-byte opaque identifier of a Kubernetes object. It is
// the primary key across every in-memory structure (coalescer,
// snapshots, postings, last-applied index) over the object's lifetime.
type UID [16]byte

// ParseUID parses a Kubernetes metadata.uid string (a UUID) into a UID.
func ParseUID(s string) (UID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return UID{}, fmt.Errorf("parse uid %q: %w", s, err)
	}
	return UID(u), nil
}

func (u UID) String() string {
	return uuid.UUID(u).String()
}

// KV is a single key/value pair, used for labels and annotations
// carried on a LiteObj.
type KV struct {
	Key   string
	Value string
}

// ProjectedField is a single (fieldId, value) pair produced by a
// Projector. FieldID is a stable small integer; see internal/projector
// for the per-kind ranges.
type ProjectedField struct {
	FieldID uint32
	Value   string
}

// LiteObj is the projected row shape carried through snapshots and
// channels. uid uniquely identifies the entry within a snapshot;
// (Namespace, Name) is human-readable but not a key.
type LiteObj struct {
	UID          UID
	Namespace    string // empty means cluster-scoped
	Name         string
	CreationTS   int64 // seconds since epoch
	Projected    []ProjectedField
	Labels       []KV
	Annotations  []KV
}

// DeltaKind distinguishes an upsert from a removal in the delta stream.
type DeltaKind int

const (
	DeltaApplied DeltaKind = iota
	DeltaDeleted
)

// Delta is a single change observed by a watcher, destined for the
// coalescer. Raw is the full JSON form with noisy fields stripped (see
// StripNoisyFields). For DeltaDeleted, only UID is semantically
// required.
type Delta struct {
	UID UID
	Kind DeltaKind
	Raw  map[string]any
}

// StripNoisyFields deletes metadata.managedFields from obj in place
// and returns it. It is the minimal normalization every delta receives
// before being handed to the coalescer; internal/apply applies a
// stricter variant on top for its own diffing needs.
func StripNoisyFields(obj map[string]any) map[string]any {
	if meta, ok := obj["metadata"].(map[string]any); ok {
		delete(meta, "managedFields")
	}
	return obj
}

// WorldSnapshot is an immutable, point-in-time view of a single
// (GVK, namespace) scope. Items are unique by uid; Epoch increases
// monotonically per ingest pipeline and never decreases once observed
// by a reader.
type WorldSnapshot struct {
	Epoch uint64
	Items []LiteObj
}

// LiteEventKind distinguishes the three signals a watch hub subscriber
// can receive.
type LiteEventKind int

const (
	LiteApplied LiteEventKind = iota
	LiteDeleted
	// LiteLagged tells a subscriber it missed one or more events
	// because its channel was full; it must resync from the hub's
	// cached item set rather than assume it saw every change.
	LiteLagged
)

// LiteEvent is a single fan-out signal delivered by the watch hub to a
// subscriber. Obj is meaningless for LiteLagged.
type LiteEvent struct {
	Kind LiteEventKind
	Obj  LiteObj
}

// ---------------------------------------------------------------------------
// Resource identity
// ---------------------------------------------------------------------------

// ResourceKind identifies a served Kubernetes kind, including CRDs. Its
// GVKKey is "v1/Kind" for the core group, "group/version/Kind"
// otherwise.
type ResourceKind struct {
	Group      string
	Version    string
	Kind       string
	Namespaced bool
}

// GVKKey returns the canonical string key used to index watch-hub
// subscriptions and projector lookups.
func (k ResourceKind) GVKKey() string {
	if k.Group == "" {
		return k.Version + "/" + k.Kind
	}
	return k.Group + "/" + k.Version + "/" + k.Kind
}

func (k ResourceKind) GroupVersionKind() schema.GroupVersionKind {
	return schema.GroupVersionKind{Group: k.Group, Version: k.Version, Kind: k.Kind}
}

// ResourceRef identifies a single object for raw access (get_raw, apply,
// diff, last-applied lookup).
type ResourceRef struct {
	GVK       ResourceKind
	Namespace string // empty for cluster-scoped
	Name      string
}

// Selector describes the current world scope: a single GVK plus an
// optional namespace restriction.
type Selector struct {
	GVK       ResourceKind
	Namespace string // empty means all namespaces
}

// Key returns the watch-hub subscription key "<gvk_key>|<ns_or_empty>".
func (s Selector) Key() string {
	return s.GVK.GVKKey() + "|" + s.Namespace
}

// ---------------------------------------------------------------------------
// Interfaces
// ---------------------------------------------------------------------------

// DiscoveryClient abstracts Kubernetes API discovery so the use-case
// layer can validate resources and fetch schemas without depending on a
// concrete client implementation. Orka is single-cluster: every method
// operates against the one cluster the process was started against.
type DiscoveryClient interface {
	// LookupResource validates that a group/version/resource triple
	// exists on the cluster.
	LookupResource(ctx context.Context, group, version, resource string) (schema.GroupVersionResource, error)
	// ServerResources returns all API resources advertised by the cluster.
	ServerResources(ctx context.Context) ([]*metav1.APIResourceList, error)
	// ResolveSchema fetches the OpenAPI schema for a given GVK.
	ResolveSchema(ctx context.Context, group, version, kind string) (*spec.Schema, error)
	// ServerVersion returns the cluster's Kubernetes version.
	ServerVersion(ctx context.Context) (*version.Info, error)
	// SupportsWatchList reports whether the cluster supports the
	// WatchList streaming feature (Kubernetes >= 1.34).
	SupportsWatchList(ctx context.Context) (bool, error)
}

// ResourceRepo abstracts Kubernetes resource CRUD and watch operations
// through the dynamic client.
type ResourceRepo interface {
	List(ctx context.Context, gvr schema.GroupVersionResource, namespace string, opts ListOptions) (*unstructured.UnstructuredList, error)
	Get(ctx context.Context, gvr schema.GroupVersionResource, namespace, name string) (*unstructured.Unstructured, error)
	Create(ctx context.Context, gvr schema.GroupVersionResource, namespace string, manifest []byte) (*unstructured.Unstructured, error)
	// Apply performs a server-side apply (PATCH with ApplyPatchType).
	Apply(ctx context.Context, gvr schema.GroupVersionResource, namespace, name string, manifest []byte, opts ApplyOptions) (*unstructured.Unstructured, error)
	Delete(ctx context.Context, gvr schema.GroupVersionResource, namespace, name string, opts DeleteOptions) error
	// Watch opens a long-lived watch stream for resources matching the
	// given options.
	Watch(ctx context.Context, gvr schema.GroupVersionResource, namespace string, opts WatchOptions) (Watcher, error)
	// ListEvents returns events matching the given options, used to
	// fetch events via involvedObject.uid.
	ListEvents(ctx context.Context, namespace string, opts ListOptions) (*unstructured.UnstructuredList, error)
}

// ---------------------------------------------------------------------------
// Options types
// ---------------------------------------------------------------------------

// ListOptions configures a resource list or event list query. Mirrors
// the commonly used fields of metav1.ListOptions.
type ListOptions struct {
	LabelSelector string
	FieldSelector string
	Limit         int64
	Continue      string
}

// ApplyOptions configures a server-side apply operation.
type ApplyOptions struct {
	Force        bool
	DryRun       bool
	FieldManager string
}

// DeleteOptions configures a resource deletion.
type DeleteOptions struct {
	GracePeriodSeconds *int64
}

// WatchOptions configures a watch stream.
type WatchOptions struct {
	LabelSelector     string
	FieldSelector     string
	ResourceVersion   string
	SendInitialEvents bool
}

// SchemaResolver resolves OpenAPI schemas for Kubernetes GVKs.
// Implementations may cache results and deduplicate concurrent
// requests. Defining this as an interface decouples callers from the
// caching infrastructure.
type SchemaResolver interface {
	ResolveSchema(ctx context.Context, group, version, kind string) (*spec.Schema, error)
}
