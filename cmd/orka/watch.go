package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/orka-sh/orka/internal/core"
)

func newWatchCommand(getApp func() *application) *cobra.Command {
	var namespace string
	cmd := &cobra.Command{
		Use:     "watch <kind>",
		Short:   "Tail the shared lite event stream for a resource kind",
		Example: "orka watch v1/Pod -n default",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gvk, err := parseGVKKey(args[0])
			if err != nil {
				return err
			}
			sel := core.Selector{GVK: gvk, Namespace: namespace}

			initial, events, unsubscribe := getApp().svc.WatchLite(sel)
			defer unsubscribe()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# %d cached items\n", len(initial))
			for _, o := range initial {
				fmt.Fprintf(out, "SYNC    %s/%s\n", o.Namespace, o.Name)
			}

			ctx := cmd.Context()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case ev, ok := <-events:
					if !ok {
						return nil
					}
					fmt.Fprintf(out, "%-8s%s/%s\n", liteEventLabel(ev.Kind), ev.Obj.Namespace, ev.Obj.Name)
				}
			}
		},
	}
	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "namespace (empty means all namespaces)")
	return cmd
}

func liteEventLabel(k core.LiteEventKind) string {
	switch k {
	case core.LiteApplied:
		return "APPLIED"
	case core.LiteDeleted:
		return "DELETED"
	case core.LiteLagged:
		return "LAGGED"
	default:
		return "UNKNOWN"
	}
}
