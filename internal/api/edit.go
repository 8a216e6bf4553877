package api

import (
	"context"

	"github.com/orka-sh/orka/internal/apply"
	"github.com/orka-sh/orka/internal/core"
)

// DryRun validates yamlDoc against the cluster via a server-side
// dry-run apply and returns the structural diff against the live
// object, without persisting anything.
func (s *Service) DryRun(ctx context.Context, yamlDoc []byte, nsOverride string) (core.DiffSummary, error) {
	result, err := s.applySvc.Edit(ctx, yamlDoc, apply.Options{NamespaceOverride: nsOverride, DryRun: true})
	if err != nil {
		return core.DiffSummary{}, err
	}
	return result.Summary, nil
}

// Diff reports the structural diff between yamlDoc and the live
// object, plus (when a last-applied record exists) the diff against
// the last manifest this process applied for that object.
func (s *Service) Diff(ctx context.Context, yamlDoc []byte, nsOverride string) (live core.DiffSummary, lastApplied *core.DiffSummary, err error) {
	return s.applySvc.Diff(ctx, yamlDoc, apply.Options{NamespaceOverride: nsOverride})
}

// Apply performs a real server-side apply of yamlDoc, persisting a
// last-applied record on success (unless disabled or the kind is
// Secret).
func (s *Service) Apply(ctx context.Context, yamlDoc []byte, nsOverride string) (*apply.Result, error) {
	result, err := s.applySvc.Edit(ctx, yamlDoc, apply.Options{NamespaceOverride: nsOverride})
	if err != nil {
		s.metrics.Apply("error")
		return nil, err
	}
	if result.Applied {
		s.metrics.Apply("applied")
	} else {
		s.metrics.Apply("noop")
	}
	return result, nil
}
