package store

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations
var migrations embed.FS

// goose keeps its settings in package state.
var gooseMu sync.Mutex

// Migrate applies all pending schema migrations.
func (s *Store) Migrate(ctx context.Context, logger *slog.Logger) error {
	return s.withGoose(logger, func(dir string) error {
		if err := goose.UpContext(ctx, s.bun.DB, dir); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
		return nil
	})
}

// Rollback reverts the most recent schema migration.
func (s *Store) Rollback(ctx context.Context, logger *slog.Logger) error {
	return s.withGoose(logger, func(dir string) error {
		if err := goose.DownContext(ctx, s.bun.DB, dir); err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
		return nil
	})
}

// MigrationStatus logs the state of every known migration.
func (s *Store) MigrationStatus(ctx context.Context, logger *slog.Logger) error {
	return s.withGoose(logger, func(dir string) error {
		if err := goose.StatusContext(ctx, s.bun.DB, dir); err != nil {
			return fmt.Errorf("migration status: %w", err)
		}
		return nil
	})
}

// SchemaVersion returns the version of the last applied migration.
func (s *Store) SchemaVersion(ctx context.Context) (int64, error) {
	var v int64
	err := s.withGoose(slog.New(slog.DiscardHandler), func(string) error {
		var err error
		v, err = goose.GetDBVersionContext(ctx, s.bun.DB)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("schema version: %w", err)
	}
	return v, nil
}

func (s *Store) withGoose(logger *slog.Logger, fn func(dir string) error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{logger})
	if err := goose.SetDialect(s.Dialect()); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	dir := "migrations/sqlite"
	if s.pg {
		dir = "migrations/postgres"
	}
	return fn(dir)
}

// gooseLogger routes goose output to slog.
type gooseLogger struct {
	logger *slog.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
