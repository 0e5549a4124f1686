package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	repo := &SQLiteRepository{db: db}
	if err := repo.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sqlite tables: %w", err)
	}

	return repo, nil
}

func (r *SQLiteRepository) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS thought_logs (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		original_thought TEXT NOT NULL,
		distortions TEXT NOT NULL,
		reframed_thought TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_thought_logs_user_created ON thought_logs(user_id, created_at);
	`

	_, err := r.db.Exec(schema)
	return err
}

func (r *SQLiteRepository) SaveEntry(ctx context.Context, record *EntryRecord) error {
	if err := validate(record); err != nil {
		return err
	}

	distortionsJSON, err := marshalDistortions(record.Distortions)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO thought_logs (id, user_id, created_at, original_thought, distortions, reframed_thought)
		VALUES (?, ?, ?, ?, ?, ?)
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

func (r *SQLiteRepository) ListEntries(ctx context.Context, userID int64) ([]EntryRecord, error) {
	query := `
		SELECT id, user_id, created_at, original_thought, distortions, reframed_thought
		FROM thought_logs
		WHERE user_id = ?
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanEntries(rows)
}

func (r *SQLiteRepository) ListRecentEntries(ctx context.Context, userID int64, since time.Time) ([]EntryRecord, error) {
	query := `
		SELECT id, user_id, created_at, original_thought, distortions, reframed_thought
		FROM thought_logs
		WHERE user_id = ? AND created_at >= ?
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanEntries(rows)
}

func (r *SQLiteRepository) scanEntries(rows *sql.Rows) ([]EntryRecord, error) {
	records := []EntryRecord{}

	for rows.Next() {
		var record EntryRecord
		var distortionsJSON string

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

		if err := json.Unmarshal([]byte(distortionsJSON), &record.Distortions); err != nil {
			return nil, fmt.Errorf("decode distortions of %s: %w", record.ID, err)
		}

		records = append(records, record)
	}

	return records, rows.Err()
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func marshalDistortions(distortions []string) ([]byte, error) {
	if distortions == nil {
		distortions = []string{}
	}
	return json.Marshal(distortions)
}
