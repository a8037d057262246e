package main

import (
	"errors"
	"fmt"
	"time"

	"payaid/internal/authn"

	"github.com/spf13/cobra"
)

func newTokenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "token", Short: "Access tokens for development"}

	var (
		principal authn.Principal
		ttl       time.Duration
	)
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Sign an access token with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.settings.JWTSecret == "" {
				return errors.New("JWT_SECRET is required")
			}
			if !authn.KnownRole(principal.Role) {
				return fmt.Errorf("unknown role %q", principal.Role)
			}
			if ttl <= 0 {
				ttl = a.settings.TokenTTL
			}
			tm := authn.NewTokenManager([]byte(a.settings.JWTSecret), a.settings.JWTIssuer, ttl).WithClock(a.now)
			token, expiresAt, err := tm.Issue(principal)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"access_token": token,
				"token_type":   "Bearer",
				"expires_at":   expiresAt,
			})
		},
	}
	issue.Flags().StringVar(&principal.TenantID, "tenant", "", "tenant ID")
	issue.Flags().StringVar(&principal.UserID, "user", "", "user ID")
	issue.Flags().StringVar(&principal.Email, "email", "", "user email")
	issue.Flags().StringVar(&principal.Role, "role", authn.RoleAdmin, "role name")
	issue.Flags().BoolVar(&principal.SuperAdmin, "super-admin", false, "mark the token as super-admin")
	issue.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to ACCESS_TOKEN_TTL)")
	_ = issue.MarkFlagRequired("tenant")
	_ = issue.MarkFlagRequired("user")

	cmd.AddCommand(issue)
	return cmd
}
