package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/models"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/services"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/writeback"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var modeFlag string
	var noWriteback bool

	cmd := &cobra.Command{
		Use:   "run <input.json|->",
		Short: "Run one RFQ synchronously and print the run output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := models.ParseMode(modeFlag)
			if err != nil {
				return err
			}
			payload, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			settings, logger, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			rt, err := services.NewRuntime(cmd.Context(), settings, logger)
			if err != nil {
				return err
			}
			defer rt.Close()
			if noWriteback {
				rt.Task.Writer = writeback.Nop{}
			}

			out, err := rt.Task.Run(cmd.Context(), models.Job{
				RunID:   uuid.NewString(),
				Mode:    mode,
				Payload: payload,
				RowID:   payload.RowID,
			})
			if out != nil {
				if werr := writeJSON(cmd.OutOrStdout(), out); werr != nil {
					return werr
				}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&modeFlag, "mode", string(models.ModeSummary), "summary or pricing")
	cmd.Flags().BoolVar(&noWriteback, "no-writeback", false, "Skip the writeback step")
	return cmd
}

// readInput decodes an RFQ record from a file, or from stdin when path is "-".
func readInput(stdin io.Reader, path string) (*models.RFQInput, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}
	var in models.RFQInput
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	return &in, nil
}
