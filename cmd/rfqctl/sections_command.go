package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/sections"
)

func newSectionsCommand() *cobra.Command {
	var tags []string

	cmd := &cobra.Command{
		Use:   "sections [file|-]",
		Short: "Split model output into OUTPUT 1/OUTPUT 2 or tagged sections",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open input: %w", err)
				}
				defer f.Close()
				r = f
			}
			raw, err := io.ReadAll(r)
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			if len(tags) > 0 {
				names := make([]string, 0, len(tags))
				for _, t := range tags {
					if t = strings.TrimSpace(t); t != "" {
						names = append(names, t)
					}
				}
				return writeJSON(cmd.OutOrStdout(), sections.ParseTags(string(raw), names...))
			}
			return writeJSON(cmd.OutOrStdout(), sections.Outputs(string(raw)))
		},
	}
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Tag names to extract instead of OUTPUT markers")
	return cmd
}
