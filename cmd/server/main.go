package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"contactgraph/internal/platform/config"
	"contactgraph/internal/platform/logger"
)

// rootOptions holds state shared by all subcommands.
type rootOptions struct {
	cfg config.Config
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "contactgraph",
		Short:         "Identity reconciliation service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newIdentifyCommand(opts))
	cmd.AddCommand(newTokenCommand(opts))
	return cmd
}

// newLogger writes to w so CLI commands can keep stdout for their result.
func (o *rootOptions) newLogger(w io.Writer) *slog.Logger {
	return logger.NewWithWriter(w, o.cfg.Server.Environment, o.cfg.Server.LogLevel)
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
