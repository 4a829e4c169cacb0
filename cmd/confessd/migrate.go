package main

import (
	"context"
	"log/slog"

	"github.com/secretdrop/feed-service/store"
	"github.com/spf13/cobra"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	run := func(fn func(ctx context.Context, st *store.Store, logger *slog.Logger) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			st, err := store.Connect(ctx, cfg.Database.URL)
			if err != nil {
				return err
			}
			defer st.Close()
			return fn(ctx, st, logger)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, st *store.Store, logger *slog.Logger) error {
			if err := st.Migrate(ctx, logger); err != nil {
				return err
			}
			v, err := st.SchemaVersion(ctx)
			if err != nil {
				return err
			}
			logger.Info("Schema up to date", "version", v)
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, st *store.Store, logger *slog.Logger) error {
			return st.Rollback(ctx, logger)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show which migrations are applied",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, st *store.Store, logger *slog.Logger) error {
			return st.MigrationStatus(ctx, logger)
		}),
	})

	return cmd
}
