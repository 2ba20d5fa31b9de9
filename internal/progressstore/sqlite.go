package progressstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dgallion1/lessonpage/internal/progress"
	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS lesson_progress (
	user_id             TEXT    NOT NULL,
	lesson_id           TEXT    NOT NULL,
	furthest_page_index INTEGER NOT NULL,
	total_pages         INTEGER NOT NULL DEFAULT 0,
	updated_at          TEXT    NOT NULL,
	PRIMARY KEY (user_id, lesson_id)
)`

// The upsert keeps the larger index. total_pages is replaced only by a
// non-zero value from an event that raises the index or fills an unknown
// total, matching merge. SET expressions see the row's old values.
const sqliteUpsert = `
INSERT INTO lesson_progress (user_id, lesson_id, furthest_page_index, total_pages, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (user_id, lesson_id) DO UPDATE SET
	furthest_page_index = MAX(furthest_page_index, excluded.furthest_page_index),
	total_pages = CASE
		WHEN excluded.total_pages > 0
			AND (excluded.furthest_page_index > furthest_page_index OR total_pages = 0)
		THEN excluded.total_pages ELSE total_pages END,
	updated_at = excluded.updated_at
RETURNING furthest_page_index, total_pages, updated_at`

// SQLiteStore persists records in a single sqlite table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path. Use ":memory:" for a
// throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite serializes writers; one connection also keeps :memory: databases
	// from splitting per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Apply runs the merge as a single upsert.
func (s *SQLiteStore) Apply(ctx context.Context, ev progress.Event) (Record, error) {
	rec := Record{UserID: ev.UserID, LessonID: ev.LessonID}
	var updated string
	err := s.db.QueryRowContext(ctx, sqliteUpsert,
		ev.UserID, ev.LessonID, ev.FurthestPageIndex, ev.TotalPages,
		time.Now().UTC().Format(time.RFC3339Nano),
	).Scan(&rec.FurthestPageIndex, &rec.TotalPages, &updated)
	if err != nil {
		return Record{}, fmt.Errorf("upsert progress: %w", err)
	}
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return rec, nil
}

func (s *SQLiteStore) Get(ctx context.Context, userID, lessonID string) (Record, bool, error) {
	rec := Record{UserID: userID, LessonID: lessonID}
	var updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT furthest_page_index, total_pages, updated_at FROM lesson_progress WHERE user_id = ? AND lesson_id = ?`,
		userID, lessonID,
	).Scan(&rec.FurthestPageIndex, &rec.TotalPages, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("get progress: %w", err)
	}
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return rec, true, nil
}

func (s *SQLiteStore) List(ctx context.Context, userID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT lesson_id, furthest_page_index, total_pages, updated_at FROM lesson_progress WHERE user_id = ? ORDER BY lesson_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec := Record{UserID: userID}
		var updated string
		if err := rows.Scan(&rec.LessonID, &rec.FurthestPageIndex, &rec.TotalPages, &updated); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
