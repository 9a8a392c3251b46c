package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/eshaffer321/invoice-match-backend/internal/api/middleware"
)

func newTokenCommand(opts *rootOptions) *cobra.Command {
	var (
		role    string
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token",
		Long: `Issue an HS256 bearer token signed with api.jwt_secret.

Viewers may read; operators may also start matches and jobs.

Example:
  invoice-match token --role operator --subject ops --ttl 24h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cfg.API.JWTSecret == "" {
				return errors.New("api.jwt_secret is not configured")
			}

			r, ok := middleware.NormalizeRole(role)
			if !ok {
				return fmt.Errorf("unknown role %q (want viewer or operator)", role)
			}

			token, err := middleware.IssueToken([]byte(cfg.API.JWTSecret), subject, r, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", string(middleware.RoleViewer), "token role: viewer or operator")
	cmd.Flags().StringVar(&subject, "subject", "cli", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime (0 = no expiry)")
	return cmd
}
