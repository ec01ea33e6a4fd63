package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jrazmi/habitsync/app/habitsync/config"
	"github.com/jrazmi/habitsync/infrastructure/postgresdb"
	"github.com/spf13/cobra"
)

func (r *runner) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the kv schema in the postgres backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(r.configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if cfg.Store.Backend != config.BackendPostgres {
				return errors.New("migrate needs the postgres backend")
			}

			// migrations may hold locks for a while on a busy database
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			pool, err := postgresdb.New(cfg.Store.Postgres, postgresdb.WithLogger(r.log))
			if err != nil {
				return fmt.Errorf("configuring postgres support: %w", err)
			}
			defer pool.Close()

			r.log.InfoContext(ctx, "migration started", "step", "checking database status")
			if err := postgresdb.StatusCheck(ctx, pool); err != nil {
				return fmt.Errorf("database status check failed: %w", err)
			}
			if err := postgresdb.Migrate(ctx, pool, r.log); err != nil {
				return fmt.Errorf("migrate database: %w", err)
			}
			r.log.InfoContext(ctx, "migrations completed successfully")
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
