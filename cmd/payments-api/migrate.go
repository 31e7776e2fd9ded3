package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/payment-integration-service/internal/config"
	"github.com/example/payment-integration-service/internal/ledger"
)

func migrateCmd(configPath *string) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the Postgres ledger schema",
		Long: `Create the transactions table and its indexes.

The statements are idempotent, so running migrate against an existing
database is safe.

Examples:
  payments-api migrate --config config.yaml
  PIS_LEDGER_DSN=postgres://... payments-api migrate`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Ledger.DSN == "" {
				return fmt.Errorf("ledger.dsn is required for migrate")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			pool, err := ledger.OpenPostgres(ctx, cfg.Ledger.DSN)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := ledger.NewPostgresRepository(pool).Migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ledger schema is up to date")
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "overall migration timeout")
	return cmd
}
