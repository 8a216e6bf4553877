package core

import (
	"context"
	"io"
	"time"

	"k8s.io/apimachinery/pkg/runtime/schema"
)

// ---------------------------------------------------------------------------
// Interfaces
// ---------------------------------------------------------------------------

// RuntimeRepo abstracts Kubernetes runtime operations (logs, exec,
// scale, restart, port-forward, cordon, drain).
type RuntimeRepo interface {
	// PodLogs opens a streaming reader for container log output.
	PodLogs(ctx context.Context, namespace, name string, opts PodLogOptions) (io.ReadCloser, error)
	// Exec starts an exec session and blocks until it completes.
	Exec(ctx context.Context, namespace, name string, opts ExecOptions) error
	// GetScale reads the current replica count via the /scale subresource.
	GetScale(ctx context.Context, gvr schema.GroupVersionResource, namespace, name string) (int32, error)
	// UpdateScale sets the desired replica count via the /scale subresource.
	UpdateScale(ctx context.Context, gvr schema.GroupVersionResource, namespace, name string, replicas int32) (int32, error)
	// Restart triggers a rolling restart by patching the pod template annotation.
	Restart(ctx context.Context, gvr schema.GroupVersionResource, namespace, name string) error
	// PortForward opens a port-forward session and copies data
	// bidirectionally until ctx is cancelled or the connection closes.
	PortForward(ctx context.Context, namespace, name string, opts PortForwardOptions) error
	// DeletePod deletes a single pod.
	DeletePod(ctx context.Context, namespace, name string, opts DeleteOptions) error
	// Cordon marks a node unschedulable (or schedulable again).
	Cordon(ctx context.Context, node string, unschedulable bool) error
	// ListPodsOnNode returns the names and namespaces of pods scheduled
	// onto the given node, used by drain to build its eviction set.
	ListPodsOnNode(ctx context.Context, node string) ([]ResourceRef, error)
	// EvictPod attempts an eviction (respecting PodDisruptionBudgets);
	// implementations report 429 TooManyRequests as a retryable error.
	EvictPod(ctx context.Context, namespace, name string, gracePeriodSeconds *int64) error
}

// ---------------------------------------------------------------------------
// Options types
// ---------------------------------------------------------------------------

// PodLogOptions mirrors the fields of corev1.PodLogOptions Orka exposes.
type PodLogOptions struct {
	Container    string
	Follow       bool
	TailLines    *int64
	SinceSeconds *int64
	SinceTime    *time.Time
	Previous     bool
	Timestamps   bool
	LimitBytes   *int64
}

// ExecOptions holds parameters for an interactive exec session.
type ExecOptions struct {
	Container string
	Command   []string
	TTY       bool
	Stdin     io.Reader
	Stdout    io.Writer
	Stderr    io.Writer
	SizeQueue TerminalSizer
}

// PortForwardOptions holds parameters for a port-forward session.
type PortForwardOptions struct {
	Port   int32
	Stdin  io.Reader
	Stdout io.Writer
}

// ---------------------------------------------------------------------------
// Capability model
// ---------------------------------------------------------------------------

// OpsCaps reports which imperative operations the caller is authorized
// to perform, as probed via SelfSubjectAccessReview plus subresource
// discovery.
type OpsCaps struct {
	PodLogs        bool
	PodExec        bool
	PortForward    bool
	NodePatch      bool
	PodEviction    bool // PDB-aware eviction subresource is available
	ScaleSubresource bool
}

// ScaleCaps describes how a given resource kind can be scaled: via the
// dedicated /scale subresource (preferred) or by patching
// spec.replicas directly.
type ScaleCaps struct {
	Plural            string
	HasScaleSubresource bool
	HasSpecReplicas   bool
}

// AccessCheck describes a single SelfSubjectAccessReview probe: can
// the current caller perform verb against group/resource(/subresource)
// in namespace (empty for cluster-scoped resources)?
type AccessCheck struct {
	Namespace   string
	Group       string
	Resource    string
	Subresource string
	Verb        string
}

// CapabilityRepo probes the caller's own RBAC grants via
// SelfSubjectAccessReview, underpinning internal/ops's capability
// discovery.
type CapabilityRepo interface {
	CanI(ctx context.Context, check AccessCheck) (bool, error)
}
