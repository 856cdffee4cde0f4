package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"contactgraph/internal/contact/models"
	"contactgraph/internal/contact/service"
	"contactgraph/pkg/domain"
)

func newIdentifyCommand(opts *rootOptions) *cobra.Command {
	var owner, email, phone string

	cmd := &cobra.Command{
		Use:   "identify",
		Short: "Reconcile one identity against the configured store and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := opts.newLogger(cmd.ErrOrStderr())

			scope, err := domain.ParseOwnerScope(owner)
			if err != nil {
				return err
			}

			be, err := openBackend(ctx, opts.cfg.Storage, log)
			if err != nil {
				return err
			}
			defer be.close()
			if err := be.migrate(ctx); err != nil {
				return err
			}

			req := models.IdentifyRequest{Email: email, PhoneNumber: phone}
			req.Normalize()

			identity, err := service.New(be.store, service.WithLogger(log)).Reconcile(ctx, scope, req)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(identity)
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner scope (required)")
	cmd.Flags().StringVar(&email, "email", "", "email fragment")
	cmd.Flags().StringVar(&phone, "phone", "", "phone number fragment")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}
