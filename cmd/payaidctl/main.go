// Command payaidctl bootstraps and inspects a PayAid deployment.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	platformconfig "payaid/internal/platform/config"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

type settings struct {
	DatabaseURL string        `env:"DB_DSN"`
	JWTSecret   string        `env:"JWT_SECRET"`
	JWTIssuer   string        `env:"JWT_ISSUER" envDefault:"payaid-auth"`
	TokenTTL    time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
}

type app struct {
	settings settings
	now      func() time.Time
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{now: time.Now}
	root := &cobra.Command{
		Use:          "payaidctl",
		Short:        "PayAid administration CLI",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := platformconfig.ParseEnv(&a.settings); err != nil {
				return err
			}
			if dsn, _ := cmd.Flags().GetString("dsn"); dsn != "" {
				a.settings.DatabaseURL = dsn
			}
			return nil
		},
	}
	root.PersistentFlags().String("dsn", "", "Postgres DSN (defaults to DB_DSN)")

	root.AddCommand(
		newMigrateCmd(a),
		newTenantCmd(a),
		newLicenseCmd(a),
		newPayrollCmd(a),
		newGSTINCmd(),
		newTokenCmd(a),
	)
	return root
}

func (a *app) connect(ctx context.Context) (*pgxpool.Pool, error) {
	if a.settings.DatabaseURL == "" {
		return nil, fmt.Errorf("database DSN is required: set DB_DSN or --dsn")
	}
	pool, err := pgxpool.New(ctx, a.settings.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return pool, nil
}

func printJSON(w io.Writer, value interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
