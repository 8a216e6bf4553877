package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/orka-sh/orka/internal/core"
)

func newListCommand(getApp func() *application) *cobra.Command {
	var namespace string
	cmd := &cobra.Command{
		Use:     "list <kind>",
		Short:   "Print the current cached snapshot for a resource kind",
		Example: "orka list apps/v1/Deployment -n default",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gvk, err := parseGVKKey(args[0])
			if err != nil {
				return err
			}
			resp, err := getApp().svc.Snapshot(cmd.Context(), core.Selector{GVK: gvk, Namespace: namespace})
			if err != nil {
				return err
			}
			printItems(cmd, resp.Data.Items)
			return nil
		},
	}
	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "namespace (empty means all namespaces)")
	return cmd
}

func printItems(cmd *cobra.Command, items []core.LiteObj) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-20s %-30s %-20s %s\n", "NAMESPACE", "NAME", "AGE", "COLUMNS")
	for _, o := range items {
		age := time.Since(time.Unix(o.CreationTS, 0)).Round(time.Second)
		fmt.Fprintf(out, "%-20s %-30s %-20s %s\n", o.Namespace, o.Name, age, projectedSummary(o))
	}
}

func projectedSummary(o core.LiteObj) string {
	s := ""
	for i, pf := range o.Projected {
		if i > 0 {
			s += " "
		}
		s += pf.Value
	}
	return s
}
