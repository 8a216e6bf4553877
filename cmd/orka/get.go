package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/orka-sh/orka/internal/core"
)

func newGetCommand(getApp func() *application) *cobra.Command {
	var namespace string
	cmd := &cobra.Command{
		Use:     "get <kind> <name>",
		Short:   "Fetch the full, unprojected JSON for a single object",
		Example: "orka get v1/Pod my-pod -n default",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			gvk, err := parseGVKKey(args[0])
			if err != nil {
				return err
			}
			raw, err := getApp().svc.GetRaw(cmd.Context(), core.ResourceRef{GVK: gvk, Namespace: namespace, Name: args[1]})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(raw))
			return nil
		},
	}
	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "namespace (omit for cluster-scoped kinds)")
	return cmd
}
