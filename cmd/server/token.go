package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	jwttoken "contactgraph/internal/jwt_token"
	"contactgraph/pkg/domain"
)

func newTokenCommand(opts *rootOptions) *cobra.Command {
	var (
		owner   string
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for an owner scope",
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := domain.ParseOwnerScope(owner)
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = opts.cfg.JWT.TokenTTL
			}

			jwtCfg := opts.cfg.JWT
			token, err := jwttoken.NewJWTService(jwtCfg.SigningKey, jwtCfg.Issuer, jwtCfg.Audience).
				GenerateOwnerToken(scope, subject, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner scope (required)")
	cmd.Flags().StringVar(&subject, "subject", "cli", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to JWT_TOKEN_TTL)")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}
