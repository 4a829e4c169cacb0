// Package store persists posts and the like/reaction ledger with bun, on
// PostgreSQL in production and SQLite for local development and tests.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/oklog/ulid/v2"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Store provides storage in PostgreSQL or SQLite.
type Store struct {
	bun *bun.DB
	pg  bool
	now func() time.Time
}

// An Option configures a Store.
type Option func(*Store)

// WithClock replaces the clock used for post timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithMaxOpenConns bounds the PostgreSQL connection pool. SQLite always uses a
// single connection.
func WithMaxOpenConns(n int) Option {
	return func(s *Store) {
		if s.pg && n > 0 {
			s.bun.SetMaxOpenConns(n)
		}
	}
}

// Connect opens the database named by dsn and pings it to ensure the
// connection is working. postgres:// and postgresql:// URLs select PostgreSQL;
// sqlite:// and file: URLs select SQLite.
func Connect(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	s := &Store{now: time.Now}
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		sqlDB := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
		s.bun = bun.NewDB(sqlDB, pgdialect.New())
		s.pg = true
	case strings.HasPrefix(dsn, "sqlite://"), strings.HasPrefix(dsn, "file:"):
		sqlDB, err := sql.Open("sqlite3", sqliteDSN(dsn))
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// SQLite allows a single writer; one connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		s.bun = bun.NewDB(sqlDB, sqlitedialect.New())
	default:
		return nil, fmt.Errorf("unsupported database url %q", redact(dsn))
	}

	if err := s.bun.PingContext(ctx); err != nil {
		s.bun.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// sqlitePragmas are applied unless the URL sets them explicitly.
var sqlitePragmas = [][2]string{
	{"_foreign_keys", "on"},
	{"_busy_timeout", "5000"},
	{"_journal_mode", "WAL"},
	{"_synchronous", "NORMAL"},
	{"_txlock", "immediate"},
}

// sqliteDSN converts a sqlite:// URL into a go-sqlite3 DSN.
func sqliteDSN(dsn string) string {
	base, query, _ := strings.Cut(strings.TrimPrefix(dsn, "sqlite://"), "?")
	set := make(map[string]bool)
	var params []string
	if query != "" {
		for _, kv := range strings.Split(query, "&") {
			k, _, _ := strings.Cut(kv, "=")
			set[k] = true
			params = append(params, kv)
		}
	}
	for _, p := range sqlitePragmas {
		if !set[p[0]] {
			params = append(params, p[0]+"="+p[1])
		}
	}
	return base + "?" + strings.Join(params, "&")
}

// redact hides the password of a database URL.
func redact(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return dsn
	}
	creds, host, ok := strings.Cut(rest, "@")
	if !ok {
		return dsn
	}
	user, _, _ := strings.Cut(creds, ":")
	return scheme + "://" + user + ":xxxxx@" + host
}

// Dialect returns the name of the SQL dialect in use.
func (s *Store) Dialect() string {
	if s.pg {
		return "postgres"
	}
	return "sqlite3"
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.bun.PingContext(ctx); err != nil {
		return classify(fmt.Errorf("ping: %w", err))
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.bun.Close()
}

func (s *Store) newID() string {
	return ulid.Make().String()
}

// timestamp returns the current time at the precision both databases store.
func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}
