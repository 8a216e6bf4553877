package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newApplyCommand(getApp func() *application) *cobra.Command {
	var file, namespace string
	var dryRun bool
	cmd := &cobra.Command{
		Use:     "apply -f <manifest.yaml>",
		Short:   "Server-side apply a YAML manifest",
		Example: "orka apply -f deploy.yaml",
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading %s: %w", file, err)
			}
			out := cmd.OutOrStdout()
			if dryRun {
				summary, err := getApp().svc.DryRun(cmd.Context(), doc, namespace)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "dry-run ok: +%d ~%d -%d\n", summary.Adds, summary.Updates, summary.Removes)
				return nil
			}
			result, err := getApp().svc.Apply(cmd.Context(), doc, namespace)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "applied=%v rv=%s +%d ~%d -%d\n", result.Applied, result.NewRV, result.Summary.Adds, result.Summary.Updates, result.Summary.Removes)
			for _, w := range result.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "filename", "f", "", "path to the YAML manifest (required)")
	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "namespace override")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate via server-side dry-run without applying")
	_ = cmd.MarkFlagRequired("filename")
	return cmd
}
