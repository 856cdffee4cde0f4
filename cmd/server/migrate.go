package main

import (
	"github.com/spf13/cobra"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the contact schema for the configured storage driver",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := opts.newLogger(cmd.ErrOrStderr())

			be, err := openBackend(ctx, opts.cfg.Storage, log)
			if err != nil {
				return err
			}
			defer be.close()

			if err := be.migrate(ctx); err != nil {
				return err
			}
			log.Info("schema up to date", "storage_driver", opts.cfg.Storage.Driver)
			return nil
		},
	}
}
