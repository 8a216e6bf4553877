package ops

import (
	"bufio"
	"context"
	"errors"
	"io"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"golang.org/x/sync/errgroup"

	"github.com/orka-sh/orka/internal/core"
)

var podsGVR = schema.GroupVersionResource{Version: "v1", Resource: "pods"}

// LogOptions configures a Logs call.
type LogOptions struct {
	Container     string
	AllContainers bool
	Follow        bool
	TailLines     *int64
	SinceSeconds  *int64
}

// LogLine is a single line of pod output, tagged with the container it
// came from (useful when AllContainers fans multiple streams into one
// channel).
type LogLine struct {
	Container string
	Line      string
}

// Logs streams log lines from a pod, one container (LogOptions.Container)
// or every container (LogOptions.AllContainers) at once. The returned
// channel is closed once every underlying stream ends; the returned
// cancel function stops all of them early. Lines are dropped (not
// buffered) if the caller falls behind the channel's capacity, the
// same back-pressure policy the reference implementation's bounded
// mpsc channel uses.
func (s *Service) Logs(ctx context.Context, namespace, pod string, opts LogOptions) (<-chan LogLine, context.CancelFunc, error) {
	cctx, cancel := context.WithCancel(ctx)

	containers := []string{opts.Container}
	if opts.AllContainers {
		names, err := s.podContainers(cctx, namespace, pod)
		if err != nil {
			cancel()
			return nil, cancel, err
		}
		containers = names
	}

	out := make(chan LogLine, s.queueCap)
	var eg errgroup.Group
	for _, c := range containers {
		container := c
		eg.Go(func() error {
			return s.pumpContainerLogs(cctx, namespace, pod, container, opts, out)
		})
	}
	go func() {
		_ = eg.Wait()
		close(out)
	}()

	return out, cancel, nil
}

// podContainers returns the container names declared on pod's spec,
// used to fan Logs out across every container when AllContainers is set.
func (s *Service) podContainers(ctx context.Context, namespace, pod string) ([]string, error) {
	obj, err := s.resources.Get(ctx, podsGVR, namespace, pod)
	if err != nil {
		return nil, err
	}
	raw, _, _ := unstructured.NestedSlice(obj.Object, "spec", "containers")
	names := make([]string, 0, len(raw))
	for _, c := range raw {
		m, ok := c.(map[string]any)
		if !ok {
			continue
		}
		if name, ok := m["name"].(string); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

// pumpContainerLogs opens a log stream for one container and splits it
// into lines, sending each non-blockingly (dropping on a full channel)
// into out. It closes the underlying reader as soon as ctx is done, so
// a blocking Read unblocks promptly on cancellation.
func (s *Service) pumpContainerLogs(ctx context.Context, namespace, pod, container string, opts LogOptions, out chan<- LogLine) error {
	rc, err := s.runtime.PodLogs(ctx, namespace, pod, core.PodLogOptions{
		Container:    container,
		Follow:       opts.Follow,
		TailLines:    opts.TailLines,
		SinceSeconds: opts.SinceSeconds,
	})
	if err != nil {
		return err
	}

	closed := make(chan struct{})
	defer close(closed)
	go func() {
		select {
		case <-ctx.Done():
			rc.Close()
		case <-closed:
		}
	}()
	defer rc.Close()

	reader := bufio.NewReader(rc)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			trimmed := line
			if trimmed[len(trimmed)-1] == '\n' {
				trimmed = trimmed[:len(trimmed)-1]
			}
			trySend(out, LogLine{Container: container, Line: trimmed})
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// trySend delivers msg to out without blocking; a caller that isn't
// keeping up with the stream loses the line rather than stalling the
// producer, the same drop-on-full policy as the reference pump.
func trySend(out chan<- LogLine, msg LogLine) {
	select {
	case out <- msg:
	default:
	}
}
