package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	jwttoken "certtrace/internal/jwt_token"
	"certtrace/internal/platform/config"
	platformredis "certtrace/internal/platform/redis"
)

func newRevokeTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke-token <token>",
		Short: "Deny a bearer token until it expires",
		Long: `Validate the token with the server's JWT settings and add its ID to the
Redis denylist for the rest of its lifetime. Requires CERTTRACE_REDIS_URL.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Redis.URL == "" {
				return errors.New("revocation needs redis: set CERTTRACE_REDIS_URL")
			}
			claims, err := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience).
				ValidateToken(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			client, err := platformredis.New(ctx, cfg.Redis)
			if err != nil {
				return err
			}
			defer client.Close()

			if claims.ExpiresAt == nil {
				return errors.New("token has no expiry to revoke until")
			}
			ttl := time.Until(claims.ExpiresAt.Time)
			if err := jwttoken.NewDenylist(client).Revoke(ctx, claims.ID, ttl); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "revoked %s for %s\n", claims.ID, ttl.Round(time.Second))
			return err
		},
	}
}
