package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeletePodCommand(getApp func() *application) *cobra.Command {
	var namespace string
	var gracePeriod int64
	cmd := &cobra.Command{
		Use:     "delete-pod <name>",
		Short:   "Delete a pod",
		Example: "orka delete-pod my-pod -n default --grace-period 0",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var grace *int64
			if cmd.Flags().Changed("grace-period") {
				grace = &gracePeriod
			}
			if err := getApp().svc.Ops().DeletePod(cmd.Context(), namespace, args[0], grace); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s/%s\n", namespace, args[0])
			return nil
		},
	}
	cmd.Flags().StringVarP(&namespace, "namespace", "n", "default", "pod namespace")
	cmd.Flags().Int64Var(&gracePeriod, "grace-period", 0, "override the pod's termination grace period, in seconds")
	return cmd
}
