package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/orka-sh/orka/internal/core"
)

// addCommands registers every subcommand onto root. getApp is resolved
// lazily (after PersistentPreRunE has run) rather than captured by
// value, since root's bootstrap hasn't executed yet when commands are
// registered.
func addCommands(root *cobra.Command, getApp func() *application) {
	root.AddCommand(
		newDiscoverCommand(getApp),
		newGetCommand(getApp),
		newListCommand(getApp),
		newWatchCommand(getApp),
		newSearchCommand(getApp),
		newApplyCommand(getApp),
		newDiffCommand(getApp),
		newLogsCommand(getApp),
		newScaleCommand(getApp),
		newRestartCommand(getApp),
		newDeletePodCommand(getApp),
		newCordonCommand(getApp),
		newDrainCommand(getApp),
		newStatsCommand(getApp),
	)
}

// parseGVKKey parses "version/Kind" or "group/version/Kind" into a
// core.ResourceKind, the same shorthand internal/api's Schema and
// internal/ops's command parsing accept.
func parseGVKKey(key string) (core.ResourceKind, error) {
	parts := strings.Split(key, "/")
	switch len(parts) {
	case 2:
		return core.ResourceKind{Version: parts[0], Kind: parts[1]}, nil
	case 3:
		return core.ResourceKind{Group: parts[0], Version: parts[1], Kind: parts[2]}, nil
	default:
		return core.ResourceKind{}, fmt.Errorf("invalid kind %q (expect v1/Kind or group/v1/Kind)", key)
	}
}
