package ops

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/orka-sh/orka/internal/core"
)

// Drain evicts every eviction-eligible pod on node (DaemonSet-managed
// and mirror pods are already filtered out by ListPodsOnNode), polling
// until the node is clear or the drain timeout elapses. Evictions
// blocked by a PodDisruptionBudget (KindConflict, surfaced from a 429
// response) are retried on the next poll; any other per-pod error is
// also retried best-effort, matching the reference implementation's
// "keep going, re-list next round" behaviour.
func (s *Service) Drain(ctx context.Context, node string) error {
	deadline := time.Now().Add(s.drainTimeout)

	for {
		targets, err := s.runtime.ListPodsOnNode(ctx, node)
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			remain := make([]string, 0, len(targets))
			for _, t := range targets {
				remain = append(remain, t.Namespace+"/"+t.Name)
			}
			return core.NewDomainError(core.KindConflict, fmt.Sprintf("drain timeout; remaining: %s", strings.Join(remain, ", ")), nil)
		}

		for _, t := range targets {
			if err := s.runtime.EvictPod(ctx, t.Namespace, t.Name, nil); err != nil && core.Kind(err) != core.KindConflict {
				// best-effort: log-worthy but not fatal, retry next round
				_ = err
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.drainPoll):
		}
	}
}
