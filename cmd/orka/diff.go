package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newDiffCommand(getApp func() *application) *cobra.Command {
	var file, namespace string
	cmd := &cobra.Command{
		Use:     "diff -f <manifest.yaml>",
		Short:   "Show the structural diff a manifest would make against the live object",
		Example: "orka diff -f deploy.yaml",
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading %s: %w", file, err)
			}
			live, lastApplied, err := getApp().svc.Diff(cmd.Context(), doc, namespace)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "vs live:         +%d ~%d -%d\n", live.Adds, live.Updates, live.Removes)
			if lastApplied != nil {
				fmt.Fprintf(out, "vs last applied: +%d ~%d -%d\n", lastApplied.Adds, lastApplied.Updates, lastApplied.Removes)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "filename", "f", "", "path to the YAML manifest (required)")
	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "namespace override")
	_ = cmd.MarkFlagRequired("filename")
	return cmd
}
