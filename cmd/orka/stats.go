package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCommand(getApp func() *application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "stats",
		Short:   "Print runtime configuration and traffic counters",
		Example: "orka stats",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc := getApp().svc
			s := svc.Stats()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "relist:            %ds\n", s.RelistSecs)
			fmt.Fprintf(out, "watch backoff max: %ds\n", s.WatchBackoffMaxSecs)
			fmt.Fprintf(out, "max postings/key:  %d\n", s.MaxPostingsPerKey)
			fmt.Fprintf(out, "max index bytes:   %d\n", s.MaxIndexBytes)
			fmt.Fprintf(out, "metrics addr:      %s\n", s.MetricsAddr)
			fmt.Fprintf(out, "traffic snapshot:  %d bytes\n", s.TrafficSnapshotBytes)
			fmt.Fprintf(out, "traffic watch:     %d bytes\n", s.TrafficWatchBytes)
			fmt.Fprintf(out, "traffic details:   %d bytes\n", s.TrafficDetailsBytes)
			fmt.Fprintf(out, "active shards:     %d\n", svc.ShardCount())
			return nil
		},
	}
	return cmd
}
