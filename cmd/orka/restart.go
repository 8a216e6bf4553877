package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRestartCommand(getApp func() *application) *cobra.Command {
	var namespace string
	cmd := &cobra.Command{
		Use:     "restart <kind> <name>",
		Short:   "Trigger a rollout restart via the pod template annotation",
		Example: "orka restart apps/v1/Deployment web -n default",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := getApp().svc.Ops().RolloutRestart(cmd.Context(), args[0], namespace, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restarted %s/%s\n", namespace, args[1])
			return nil
		},
	}
	cmd.Flags().StringVarP(&namespace, "namespace", "n", "default", "workload namespace")
	return cmd
}
