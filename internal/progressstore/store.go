// Package progressstore persists learner progress with max semantics: a
// recorded furthest page index only ever grows, so duplicate, late or
// reordered events cannot move a learner backwards.
package progressstore

import (
	"context"
	"fmt"
	"time"

	"github.com/dgallion1/lessonpage/internal/progress"
)

// Record is the stored progress for one learner in one lesson.
type Record struct {
	UserID            string    `json:"user_id"`
	LessonID          string    `json:"lesson_id"`
	FurthestPageIndex int       `json:"furthest_page_index"`
	TotalPages        int       `json:"total_pages"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// CompletedPages counts pages reached, including the first.
func (r Record) CompletedPages() int { return r.FurthestPageIndex + 1 }

// Percent returns completion in [0,100], or 0 when TotalPages is unknown.
func (r Record) Percent() float64 {
	if r.TotalPages <= 0 {
		return 0
	}
	p := float64(r.CompletedPages()) / float64(r.TotalPages) * 100
	if p > 100 {
		return 100
	}
	return p
}

// Store is a progress backend.
type Store interface {
	// Apply merges ev into the stored record and returns the result.
	Apply(ctx context.Context, ev progress.Event) (Record, error)
	// Get returns the record for a user and lesson; ok is false if none exists.
	Get(ctx context.Context, userID, lessonID string) (rec Record, ok bool, err error)
	// List returns all records for a user ordered by lesson id.
	List(ctx context.Context, userID string) ([]Record, error)
	Close() error
}

// merge applies max semantics to an existing record. A non-zero TotalPages
// replaces the stored one only when the event raises the furthest index or
// no total is known yet, so a late event cannot restore a stale total.
func merge(cur Record, ev progress.Event, now time.Time) Record {
	if ev.TotalPages > 0 && (ev.FurthestPageIndex > cur.FurthestPageIndex || cur.TotalPages == 0) {
		cur.TotalPages = ev.TotalPages
	}
	if ev.FurthestPageIndex > cur.FurthestPageIndex {
		cur.FurthestPageIndex = ev.FurthestPageIndex
	}
	cur.UpdatedAt = now
	return cur
}

// Open selects a backend by name: "memory", "sqlite" or "redis". dsn is
// the sqlite path or the redis address.
func Open(ctx context.Context, backend, dsn string) (Store, error) {
	switch backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		s, err := OpenSQLite(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "redis":
		s, err := OpenRedis(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown progress store %q", backend)
	}
}

// Sink adapts a Store to progress.Sink for in-process delivery. Events are
// validated the same way the receiving endpoint validates them.
func Sink(s Store) progress.Sink {
	return progress.SinkFunc(func(ctx context.Context, ev progress.Event) error {
		if err := ev.Validate(); err != nil {
			return fmt.Errorf("invalid progress event: %w", err)
		}
		_, err := s.Apply(ctx, ev)
		return err
	})
}
