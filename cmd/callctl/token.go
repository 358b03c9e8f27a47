package main

import (
	"fmt"
	"os"
	"time"

	"call-inbox/internal/auth"
	"call-inbox/internal/config"
	"call-inbox/internal/rbac"

	"github.com/spf13/cobra"
)

type tokenOptions struct {
	UserID string
	Role   string
	TTL    time.Duration
}

// newTokenCommand mints a view API access token with the local JWT secret.
func newTokenCommand() *cobra.Command {
	opts := &tokenOptions{}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for the view API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !rbac.IsKnown(opts.Role) {
				return fmt.Errorf("invalid --role %q", opts.Role)
			}
			m, err := auth.NewManager(config.AuthConfig{
				JWTSecret:      os.Getenv("JWT_SECRET"),
				JWTIssuer:      os.Getenv("JWT_ISSUER"),
				JWTAudience:    os.Getenv("JWT_AUDIENCE"),
				AccessTokenTTL: opts.TTL,
			})
			if err != nil {
				return err
			}
			tok, err := m.IssueAccess(time.Now(), opts.UserID, opts.Role)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}

	cmd.Flags().StringVar(&opts.UserID, "user", "operator", "user id claim")
	cmd.Flags().StringVar(&opts.Role, "role", rbac.RoleViewer, "role claim (viewer|agent|admin)")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", time.Hour, "token lifetime")

	return cmd
}
