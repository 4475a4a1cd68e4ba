package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"

	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/config"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/logging"
)

type commandContext struct {
	logLevel *string

	once      sync.Once
	settings  *config.Settings
	logger    *slog.Logger
	closeLogs func() error
	err       error
}

func (c *commandContext) ensureConfig() (*config.Settings, *slog.Logger, error) {
	c.once.Do(func() {
		s, err := config.Load()
		if err != nil {
			c.err = err
			return
		}
		level := s.Log.Level
		if c.logLevel != nil && *c.logLevel != "" {
			level = *c.logLevel
		}
		c.logger, c.closeLogs = logging.Setup(s.Log.File, logging.ParseLevel(level))
		slog.SetDefault(c.logger)
		c.settings = s
	})
	return c.settings, c.logger, c.err
}

func newRootCommand() *cobra.Command {
	var logLevel string
	ctx := &commandContext{logLevel: &logLevel}

	rootCmd := &cobra.Command{
		Use:           "rfqctl",
		Short:         "Run the RFQ attachment pipeline from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if ctx.closeLogs != nil {
				return ctx.closeLogs()
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override LOG_LEVEL")

	rootCmd.AddCommand(newExtractCommand(ctx))
	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newSectionsCommand())
	return rootCmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
