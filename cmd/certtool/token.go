package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	jwttoken "certtrace/internal/jwt_token"
	"certtrace/internal/platform/config"
	"certtrace/pkg/domain"
)

func newTokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <address>",
		Short: "Mint a bearer token for an actor address",
		Long: `Sign an actor token with the server's JWT settings, read from the same
CERTTRACE_* environment and config file the server uses. Meant for development.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := domain.ParseAddress(args[0])
			if err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			svc := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
			token, err := svc.GenerateActorToken(actor, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	return cmd
}
