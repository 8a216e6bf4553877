package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newScaleCommand(getApp func() *application) *cobra.Command {
	var namespace string
	var replicas int32
	var useSubresource bool
	cmd := &cobra.Command{
		Use:     "scale <kind> <name>",
		Short:   "Scale a workload's replica count",
		Example: "orka scale apps/v1/Deployment web --replicas 3 -n default",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			got, err := getApp().svc.Ops().Scale(cmd.Context(), args[0], namespace, args[1], replicas, useSubresource)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scaled %s/%s to %d replicas\n", namespace, args[1], got)
			return nil
		},
	}
	cmd.Flags().StringVarP(&namespace, "namespace", "n", "default", "workload namespace")
	cmd.Flags().Int32Var(&replicas, "replicas", 0, "target replica count (required)")
	cmd.Flags().BoolVar(&useSubresource, "subresource", true, "scale via the /scale subresource instead of a server-side apply patch")
	_ = cmd.MarkFlagRequired("replicas")
	return cmd
}
