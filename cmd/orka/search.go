package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/orka-sh/orka/internal/core"
)

func newSearchCommand(getApp func() *application) *cobra.Command {
	var namespace string
	var limit int
	cmd := &cobra.Command{
		Use:     "search <kind> <query>",
		Short:   "Rank a resource kind's cached items against a query",
		Example: `orka search v1/Pod "ns:default label:app=web frontend"`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			gvk, err := parseGVKKey(args[0])
			if err != nil {
				return err
			}
			resp, err := getApp().svc.Search(cmd.Context(), core.Selector{GVK: gvk, Namespace: namespace}, args[1], limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, h := range resp.Hits {
				fmt.Fprintf(out, "%6.2f  %s/%s\n", h.Score, h.Obj.Namespace, h.Obj.Name)
			}
			if resp.Meta.Partial {
				fmt.Fprintln(out, "# warning: index was pruned under memory pressure; results may be incomplete")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "namespace (empty means all namespaces)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum hits to return")
	return cmd
}
