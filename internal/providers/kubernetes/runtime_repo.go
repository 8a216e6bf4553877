package kubernetes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	corev1 "k8s.io/api/core/v1"
	policyv1 "k8s.io/api/policy/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/fields"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/remotecommand"
	"k8s.io/client-go/transport/spdy"

	"github.com/orka-sh/orka/internal/core"
)

// runtimeRepo implements core.RuntimeRepo by delegating to the
// Kubernetes typed, dynamic, and SPDY clients built from the session's
// shared rest.Config.
type runtimeRepo struct {
	session *Session
}

// NewRuntimeRepo returns a core.RuntimeRepo backed by Kubernetes.
func NewRuntimeRepo(session *Session) core.RuntimeRepo {
	return &runtimeRepo{session: session}
}

var _ core.RuntimeRepo = (*runtimeRepo)(nil)

// ---------------------------------------------------------------------------
// PodLogs
// ---------------------------------------------------------------------------

// PodLogs opens a streaming log reader for a container.
func (r *runtimeRepo) PodLogs(ctx context.Context, namespace, name string, opts core.PodLogOptions) (io.ReadCloser, error) {
	clientset, err := r.clientset()
	if err != nil {
		return nil, err
	}

	logOpts := &corev1.PodLogOptions{
		Container:  opts.Container,
		Follow:     opts.Follow,
		Previous:   opts.Previous,
		Timestamps: opts.Timestamps,
	}
	if opts.TailLines != nil {
		logOpts.TailLines = opts.TailLines
	}
	if opts.SinceSeconds != nil {
		logOpts.SinceSeconds = opts.SinceSeconds
	}
	if opts.SinceTime != nil {
		logOpts.SinceTime = &metav1.Time{Time: *opts.SinceTime}
	}
	if opts.LimitBytes != nil {
		logOpts.LimitBytes = opts.LimitBytes
	}

	result, err := clientset.CoreV1().Pods(namespace).GetLogs(name, logOpts).Stream(ctx)
	return result, wrapK8sError(err)
}

// ---------------------------------------------------------------------------
// Exec
// ---------------------------------------------------------------------------

// Exec starts an interactive exec session and blocks until it completes.
func (r *runtimeRepo) Exec(ctx context.Context, namespace, name string, opts core.ExecOptions) error {
	config := r.session.RESTConfig()

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return core.NewDomainError(core.KindInternal, "create clientset for exec", err)
	}

	execOpts := &corev1.PodExecOptions{
		Container: opts.Container,
		Command:   opts.Command,
		TTY:       opts.TTY,
		Stdin:     opts.Stdin != nil,
		Stdout:    opts.Stdout != nil,
		Stderr:    opts.Stderr != nil,
	}

	req := clientset.CoreV1().RESTClient().Post().
		Resource("pods").
		Name(name).
		Namespace(namespace).
		SubResource("exec").
		VersionedParams(execOpts, scheme.ParameterCodec)

	executor, err := remotecommand.NewSPDYExecutor(config, http.MethodPost, req.URL())
	if err != nil {
		return core.NewDomainError(core.KindInternal, "create SPDY executor", err)
	}

	streamOpts := remotecommand.StreamOptions{
		Stdin:  opts.Stdin,
		Stdout: opts.Stdout,
		Stderr: opts.Stderr,
		Tty:    opts.TTY,
	}
	if opts.TTY && opts.SizeQueue != nil {
		streamOpts.TerminalSizeQueue = &sizeQueueAdapter{inner: opts.SizeQueue}
	}

	return wrapK8sError(executor.StreamWithContext(ctx, streamOpts))
}

// ---------------------------------------------------------------------------
// Scale
// ---------------------------------------------------------------------------

// GetScale reads the current replica count via the /scale subresource.
func (r *runtimeRepo) GetScale(ctx context.Context, gvr schema.GroupVersionResource, namespace, name string) (int32, error) {
	client, err := r.dynamicClient()
	if err != nil {
		return 0, err
	}

	scaleObj, err := client.Resource(gvr).Namespace(namespace).Get(ctx, name, metav1.GetOptions{}, "scale")
	if err != nil {
		return 0, wrapK8sError(err)
	}

	replicas, found, err := unstructured.NestedInt64(scaleObj.Object, "spec", "replicas")
	if err != nil || !found {
		return 0, core.NewDomainError(core.KindInternal, "failed to read spec.replicas from scale subresource", err)
	}

	return int32(replicas), nil
}

// UpdateScale sets the desired replica count via the /scale subresource.
func (r *runtimeRepo) UpdateScale(ctx context.Context, gvr schema.GroupVersionResource, namespace, name string, replicas int32) (int32, error) {
	client, err := r.dynamicClient()
	if err != nil {
		return 0, err
	}

	scaleObj, err := client.Resource(gvr).Namespace(namespace).Get(ctx, name, metav1.GetOptions{}, "scale")
	if err != nil {
		return 0, wrapK8sError(err)
	}

	if err := unstructured.SetNestedField(scaleObj.Object, int64(replicas), "spec", "replicas"); err != nil {
		return 0, core.NewDomainError(core.KindInternal, "set spec.replicas", err)
	}

	updated, err := client.Resource(gvr).Namespace(namespace).Update(ctx, scaleObj, metav1.UpdateOptions{}, "scale")
	if err != nil {
		return 0, wrapK8sError(err)
	}

	newReplicas, found, err := unstructured.NestedInt64(updated.Object, "spec", "replicas")
	if err != nil {
		return 0, core.NewDomainError(core.KindInternal, "read updated replicas", err)
	}
	if !found {
		return 0, core.NewDomainError(core.KindInternal, "spec.replicas not found in updated scale subresource", nil)
	}
	return int32(newReplicas), nil
}

// ---------------------------------------------------------------------------
// Restart
// ---------------------------------------------------------------------------

// Restart triggers a rolling restart by patching the pod template
// annotation with kubectl.kubernetes.io/restartedAt, equivalent to
// `kubectl rollout restart`.
func (r *runtimeRepo) Restart(ctx context.Context, gvr schema.GroupVersionResource, namespace, name string) error {
	client, err := r.dynamicClient()
	if err != nil {
		return err
	}

	// time.Now is used directly (not injected) because the annotation
	// value only needs to differ from the previous value to trigger a
	// rolling update — its exact timestamp is not significant for
	// correctness or testability.
	patchData := map[string]any{
		"spec": map[string]any{
			"template": map[string]any{
				"metadata": map[string]any{
					"annotations": map[string]any{
						"kubectl.kubernetes.io/restartedAt": time.Now().UTC().Format(time.RFC3339),
					},
				},
			},
		},
	}
	data, err := json.Marshal(patchData)
	if err != nil {
		return fmt.Errorf("marshal restart patch: %w", err)
	}

	_, err = client.Resource(gvr).Namespace(namespace).Patch(ctx, name, types.MergePatchType, data, metav1.PatchOptions{})
	return wrapK8sError(err)
}

// ---------------------------------------------------------------------------
// PortForward
// ---------------------------------------------------------------------------

// PortForward opens a port-forward session via SPDY and copies data
// bidirectionally between the caller's stdin/stdout and the pod.
// It waits for both copy directions to complete before returning.
func (r *runtimeRepo) PortForward(ctx context.Context, namespace, name string, opts core.PortForwardOptions) error {
	config := r.session.RESTConfig()

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return core.NewDomainError(core.KindInternal, "create clientset for port-forward", err)
	}

	req := clientset.CoreV1().RESTClient().Post().
		Resource("pods").
		Name(name).
		Namespace(namespace).
		SubResource("portforward")

	transport, upgrader, err := spdy.RoundTripperFor(config)
	if err != nil {
		return core.NewDomainError(core.KindInternal, "create SPDY round-tripper", err)
	}

	dialer := spdy.NewDialer(upgrader, &http.Client{Transport: transport}, http.MethodPost, req.URL())
	streamConn, _, err := dialer.Dial(portForwardProtocolV1)
	if err != nil {
		return wrapK8sError(err)
	}
	defer streamConn.Close()

	portStr := strconv.FormatInt(int64(opts.Port), 10)
	requestID := "0"

	errorHeaders := http.Header{}
	errorHeaders.Set(corev1.StreamType, corev1.StreamTypeError)
	errorHeaders.Set(corev1.PortHeader, portStr)
	errorHeaders.Set(corev1.PortForwardRequestIDHeader, requestID)

	errorStream, err := streamConn.CreateStream(errorHeaders)
	if err != nil {
		return core.NewDomainError(core.KindInternal, "create error stream", err)
	}
	defer errorStream.Close()

	dataHeaders := http.Header{}
	dataHeaders.Set(corev1.StreamType, corev1.StreamTypeData)
	dataHeaders.Set(corev1.PortHeader, portStr)
	dataHeaders.Set(corev1.PortForwardRequestIDHeader, requestID)

	dataStream, err := streamConn.CreateStream(dataHeaders)
	if err != nil {
		return core.NewDomainError(core.KindInternal, "create data stream", err)
	}
	defer dataStream.Close()

	// Track all goroutines with a WaitGroup so we guarantee every
	// goroutine has exited before PortForward returns, preventing
	// goroutine leaks.
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		buf := make([]byte, 1024)
		n, _ := errorStream.Read(buf)
		if n > 0 {
			if err := dataStream.Close(); err != nil {
				slog.Warn("failed to close data stream after kubelet error", "error", err)
			}
		}
	}()

	errCh := make(chan error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := io.Copy(dataStream, opts.Stdin)
		errCh <- err
	}()

	go func() {
		defer wg.Done()
		_, err := io.Copy(opts.Stdout, dataStream)
		errCh <- err
	}()

	var firstErr error
	for i := 0; i < 2; i++ {
		select {
		case <-ctx.Done():
			streamConn.Close()
			wg.Wait()
			return ctx.Err()
		case err := <-errCh:
			if err != nil && firstErr == nil {
				firstErr = err
				streamConn.Close()
			}
		}
	}

	wg.Wait()
	return firstErr
}

// portForwardProtocolV1 is the subprotocol used for Kubernetes port
// forwarding over SPDY.
const portForwardProtocolV1 = "portforward.k8s.io"

// ---------------------------------------------------------------------------
// Pod / node ops
// ---------------------------------------------------------------------------

// DeletePod deletes a single pod outright (no PDB consideration — see
// EvictPod for the disruption-aware path used by drain).
func (r *runtimeRepo) DeletePod(ctx context.Context, namespace, name string, opts core.DeleteOptions) error {
	clientset, err := r.clientset()
	if err != nil {
		return err
	}

	deleteOpts := metav1.DeleteOptions{GracePeriodSeconds: opts.GracePeriodSeconds}
	return wrapK8sError(clientset.CoreV1().Pods(namespace).Delete(ctx, name, deleteOpts))
}

// Cordon marks a node unschedulable, or schedulable again, via a merge
// patch on spec.unschedulable.
func (r *runtimeRepo) Cordon(ctx context.Context, node string, unschedulable bool) error {
	clientset, err := r.clientset()
	if err != nil {
		return err
	}

	patch, err := json.Marshal(map[string]any{
		"spec": map[string]any{"unschedulable": unschedulable},
	})
	if err != nil {
		return fmt.Errorf("marshal cordon patch: %w", err)
	}

	_, err = clientset.CoreV1().Nodes().Patch(ctx, node, types.MergePatchType, patch, metav1.PatchOptions{})
	return wrapK8sError(err)
}

// ListPodsOnNode returns the pods scheduled onto the given node that
// are actual eviction targets for a drain: DaemonSet-managed pods and
// mirror/static pods (identified by the kubernetes.io/config.mirror
// annotation) are excluded, since evicting either is either pointless
// (the DaemonSet controller just reschedules it on the same node) or
// impossible (mirror pods have no API object to evict).
func (r *runtimeRepo) ListPodsOnNode(ctx context.Context, node string) ([]core.ResourceRef, error) {
	clientset, err := r.clientset()
	if err != nil {
		return nil, err
	}

	listOpts := metav1.ListOptions{
		FieldSelector: fields.OneTermEqualSelector("spec.nodeName", node).String(),
	}
	pods, err := clientset.CoreV1().Pods(metav1.NamespaceAll).List(ctx, listOpts)
	if err != nil {
		return nil, wrapK8sError(err)
	}

	refs := make([]core.ResourceRef, 0, len(pods.Items))
	podGVK := core.ResourceKind{Version: "v1", Kind: "Pod", Namespaced: true}
	for i := range pods.Items {
		pod := &pods.Items[i]
		if isDaemonSetManaged(pod) || isMirrorPod(pod) {
			continue
		}
		refs = append(refs, core.ResourceRef{
			GVK:       podGVK,
			Namespace: pod.Namespace,
			Name:      pod.Name,
		})
	}
	return refs, nil
}

func isDaemonSetManaged(pod *corev1.Pod) bool {
	for _, owner := range pod.OwnerReferences {
		if owner.Kind == "DaemonSet" {
			return true
		}
	}
	return false
}

func isMirrorPod(pod *corev1.Pod) bool {
	_, ok := pod.Annotations["kubernetes.io/config.mirror"]
	return ok
}

// EvictPod attempts a PodDisruptionBudget-aware eviction. A 429
// TooManyRequests response (the budget currently disallows the
// eviction) surfaces as a KindConflict error, which drain treats as
// retryable.
func (r *runtimeRepo) EvictPod(ctx context.Context, namespace, name string, gracePeriodSeconds *int64) error {
	clientset, err := r.clientset()
	if err != nil {
		return err
	}

	eviction := &policyv1.Eviction{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace},
		DeleteOptions: &metav1.DeleteOptions{
			GracePeriodSeconds: gracePeriodSeconds,
		},
	}
	return wrapK8sError(clientset.PolicyV1().Evictions(namespace).Evict(ctx, eviction))
}

// ---------------------------------------------------------------------------
// Terminal size adapter
// ---------------------------------------------------------------------------

// sizeQueueAdapter bridges the domain core.TerminalSizer interface to
// the remotecommand.TerminalSizeQueue interface required by SPDY
// executors. This keeps the domain layer free of client-go dependencies.
type sizeQueueAdapter struct {
	inner core.TerminalSizer
}

func (a *sizeQueueAdapter) Next() *remotecommand.TerminalSize {
	s := a.inner.Next()
	if s == nil {
		return nil
	}
	return &remotecommand.TerminalSize{Width: s.Width, Height: s.Height}
}

// ---------------------------------------------------------------------------
// Client helpers
// ---------------------------------------------------------------------------

// clientset builds a typed Kubernetes clientset from the session's
// shared rest.Config.
func (r *runtimeRepo) clientset() (*kubernetes.Clientset, error) {
	cs, err := kubernetes.NewForConfig(r.session.RESTConfig())
	if err != nil {
		return nil, core.NewDomainError(core.KindInternal, "create kubernetes clientset", err)
	}
	return cs, nil
}

// dynamicClient builds a dynamic client from the session's shared
// rest.Config.
func (r *runtimeRepo) dynamicClient() (*dynamic.DynamicClient, error) {
	dc, err := dynamic.NewForConfig(r.session.RESTConfig())
	if err != nil {
		return nil, core.NewDomainError(core.KindInternal, "create dynamic client for runtime", err)
	}
	return dc, nil
}
