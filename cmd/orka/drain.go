package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDrainCommand(getApp func() *application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "drain <node>",
		Short:   "Evict a node's pods (does not cordon the node)",
		Example: "orka drain node-1",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := getApp().svc.Ops().Drain(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "drained %s\n", args[0])
			return nil
		},
	}
	return cmd
}
