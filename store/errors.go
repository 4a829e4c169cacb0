package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"github.com/secretdrop/feed-service/feed"
	"github.com/uptrace/bun/driver/pgdriver"
)

// PostgreSQL SQLSTATE codes that mean the transaction lost a race.
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// classify maps driver errors onto the feed error taxonomy.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, feed.ErrNotFound), errors.Is(err, feed.ErrValidation),
		errors.Is(err, feed.ErrConflict), errors.Is(err, feed.ErrUnavailable):
		return err
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%w: %w", feed.ErrNotFound, err)
	}

	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		switch pgErr.Field('C') {
		case pgUniqueViolation, pgSerializationFailure, pgDeadlockDetected:
			return fmt.Errorf("%w: %w", feed.ErrConflict, err)
		}
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch {
		case liteErr.ExtendedCode == sqlite3.ErrConstraintUnique,
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey,
			liteErr.Code == sqlite3.ErrBusy,
			liteErr.Code == sqlite3.ErrLocked:
			return fmt.Errorf("%w: %w", feed.ErrConflict, err)
		}
	}

	return fmt.Errorf("%w: %w", feed.ErrUnavailable, err)
}
