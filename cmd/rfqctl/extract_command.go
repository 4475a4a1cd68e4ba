package main

import (
	"github.com/spf13/cobra"

	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/services"
)

func newExtractCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <url>...",
		Short: "Analyze attachment URLs and print the findings as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, logger, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			rt, err := services.NewAnalyzer(cmd.Context(), settings, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			findings := rt.Analyzer.Analyze(cmd.Context(), args)
			return writeJSON(cmd.OutOrStdout(), findings)
		},
	}
}
