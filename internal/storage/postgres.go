package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(connStr string) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres db: %w", err)
	}

	repo := &PostgresRepository{db: db}
	if err := repo.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create postgres tables: %w", err)
	}

	return repo, nil
}

func (r *PostgresRepository) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS thought_logs (
		id TEXT PRIMARY KEY,
		user_id BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		original_thought TEXT NOT NULL,
		distortions JSONB NOT NULL,
		reframed_thought TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_thought_logs_user_created ON thought_logs(user_id, created_at DESC);
	`

	_, err := r.db.Exec(schema)
	return err
}

func (r *PostgresRepository) SaveEntry(ctx context.Context, record *EntryRecord) error {
	if err := validate(record); err != nil {
		return err
	}

	distortionsJSON, err := marshalDistortions(record.Distortions)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO thought_logs (id, user_id, created_at, original_thought, distortions, reframed_thought)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = r.db.ExecContext(
		ctx,
		query,
		record.ID,
		record.UserID,
		record.CreatedAt.UTC(),
		record.OriginalThought,
		string(distortionsJSON),
		record.ReframedThought,
	)

	return err
}

func (r *PostgresRepository) ListEntries(ctx context.Context, userID int64) ([]EntryRecord, error) {
	query := `
		SELECT id, user_id, created_at, original_thought, distortions, reframed_thought
		FROM thought_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanEntries(rows)
}

func (r *PostgresRepository) ListRecentEntries(ctx context.Context, userID int64, since time.Time) ([]EntryRecord, error) {
	query := `
		SELECT id, user_id, created_at, original_thought, distortions, reframed_thought
		FROM thought_logs
		WHERE user_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanEntries(rows)
}

func (r *PostgresRepository) scanEntries(rows *sql.Rows) ([]EntryRecord, error) {
	records := []EntryRecord{}

	for rows.Next() {
		var record EntryRecord
		var distortionsJSON []byte

		err := rows.Scan(
			&record.ID,
			&record.UserID,
			&record.CreatedAt,
			&record.OriginalThought,
			&distortionsJSON,
			&record.ReframedThought,
		)
		if err != nil {
			return nil, err
		}

		if err := json.Unmarshal(distortionsJSON, &record.Distortions); err != nil {
			return nil, fmt.Errorf("decode distortions of %s: %w", record.ID, err)
		}

		records = append(records, record)
	}

	return records, rows.Err()
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}
