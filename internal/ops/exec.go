package ops

import (
	"context"

	"github.com/orka-sh/orka/internal/core"
)

// Exec starts an interactive exec session and blocks until it
// completes. Terminal-mode concerns (raw mode, resize signals) belong
// to the caller, which wires stdin/stdout and a
// core.TerminalSizer into opts.
func (s *Service) Exec(ctx context.Context, namespace, pod string, opts core.ExecOptions) error {
	return s.runtime.Exec(ctx, namespace, pod, opts)
}

// PortForward opens a port-forward session and copies data
// bidirectionally until ctx is cancelled or the connection closes. The
// caller owns the local TCP listener and wires each
// accepted connection's reader/writer into opts.
func (s *Service) PortForward(ctx context.Context, namespace, pod string, opts core.PortForwardOptions) error {
	return s.runtime.PortForward(ctx, namespace, pod, opts)
}
