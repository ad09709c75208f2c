package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/grumpyguvner/mailkeys/internal/logging"
	"github.com/spf13/cobra"
)

func NewMigrateCommand() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the key index schema",
		Long:  `Create the Cassandra keyspace and table, or apply the PostgreSQL migrations, for the configured backend.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			logging.InitLogger(cfg.LogMode)

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			if err := migrateBackend(ctx, cfg, logging.Component("migrate")); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Schema ready for %s backend\n", cfg.Backend)
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "deadline for schema creation")

	return cmd
}
