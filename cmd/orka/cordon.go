package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCordonCommand(getApp func() *application) *cobra.Command {
	var uncordon bool
	cmd := &cobra.Command{
		Use:     "cordon <node>",
		Short:   "Mark a node unschedulable (or schedulable again with --uncordon)",
		Example: "orka cordon node-1",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := getApp().svc.Ops().Cordon(cmd.Context(), args[0], !uncordon); err != nil {
				return err
			}
			verb := "cordoned"
			if uncordon {
				verb = "uncordoned"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&uncordon, "uncordon", false, "mark the node schedulable instead of unschedulable")
	return cmd
}
