package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDiscoverCommand(getApp func() *application) *cobra.Command {
	return &cobra.Command{
		Use:     "discover",
		Short:   "List every resource kind the cluster serves",
		Example: "orka discover",
		RunE: func(cmd *cobra.Command, _ []string) error {
			kinds, err := getApp().svc.Discover(cmd.Context())
			if err != nil {
				return err
			}
			for _, k := range kinds {
				scope := "cluster"
				if k.Namespaced {
					scope = "namespaced"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", scope, k.GVKKey())
			}
			return nil
		},
	}
}
