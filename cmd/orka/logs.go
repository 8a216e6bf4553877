package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/orka-sh/orka/internal/ops"
)

func newLogsCommand(getApp func() *application) *cobra.Command {
	var namespace, container string
	var follow, allContainers bool
	var tailLines int64
	cmd := &cobra.Command{
		Use:     "logs <pod>",
		Short:   "Stream pod logs",
		Example: "orka logs my-pod -n default -f",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := ops.LogOptions{Container: container, AllContainers: allContainers, Follow: follow}
			if tailLines > 0 {
				opts.TailLines = &tailLines
			}
			lines, cancel, err := getApp().svc.Ops().Logs(cmd.Context(), namespace, args[0], opts)
			if err != nil {
				return err
			}
			defer cancel()

			out := cmd.OutOrStdout()
			for line := range lines {
				if allContainers {
					fmt.Fprintf(out, "[%s] %s\n", line.Container, line.Line)
				} else {
					fmt.Fprintln(out, line.Line)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&namespace, "namespace", "n", "default", "pod namespace")
	cmd.Flags().StringVarP(&container, "container", "c", "", "container name (may be omitted only for single-container pods)")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "stream new lines as they arrive")
	cmd.Flags().BoolVarP(&allContainers, "all-containers", "A", false, "fan out across every container in the pod")
	cmd.Flags().Int64Var(&tailLines, "tail", 0, "number of lines from the end to start at (0 means all)")
	return cmd
}
