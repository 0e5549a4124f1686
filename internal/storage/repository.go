package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidEntry = errors.New("invalid thought log entry")

type Repository interface {
	SaveEntry(ctx context.Context, record *EntryRecord) error

	// ListEntries returns every entry of the user, newest first.
	ListEntries(ctx context.Context, userID int64) ([]EntryRecord, error)

	ListRecentEntries(ctx context.Context, userID int64, since time.Time) ([]EntryRecord, error)

	Close() error
}

// Open picks the backend from the shape of databaseURL: postgres:// and
// postgresql:// URLs go to Postgres, anything else is a SQLite file path.
func Open(databaseURL string) (Repository, error) {
	dsn := strings.TrimSpace(databaseURL)
	if dsn == "" {
		return nil, fmt.Errorf("database url is required")
	}

	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return NewPostgresRepository(dsn)
	default:
		return NewSQLiteRepository(strings.TrimPrefix(dsn, "sqlite://"))
	}
}

func validate(record *EntryRecord) error {
	if record == nil {
		return fmt.Errorf("%w: nil record", ErrInvalidEntry)
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidEntry)
	}
	if record.CreatedAt.IsZero() {
		return fmt.Errorf("%w: created_at is required", ErrInvalidEntry)
	}
	return nil
}
