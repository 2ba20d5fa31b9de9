// Package viewer owns the per-view state of one learner reading one lesson:
// the rendered pages, a navigator, and the hook that turns furthest-page
// changes into progress reports.
package viewer

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/lessonpage/internal/content"
	"github.com/dgallion1/lessonpage/internal/navigation"
	"github.com/dgallion1/lessonpage/internal/progress"
	"github.com/dgallion1/lessonpage/internal/render"
)

// ErrClosed is returned by operations on a closed view.
var ErrClosed = errors.New("view closed")

// Reporter is the part of progress.Reporter a view needs.
type Reporter interface {
	Report(ev progress.Event) bool
}

// View is one learner's session on one lesson. Methods are safe for
// concurrent use; the navigator itself is only touched under mu.
type View struct {
	mu sync.Mutex

	ID       string
	UserID   string
	LessonID string
	Title    string

	pages       []render.Page
	contentHash string
	nav         *navigation.Navigator
	reporter    Reporter
	opts        render.Options
	log         *slog.Logger
	closed      bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Snapshot is a read-only, JSON-safe copy of view state plus the current page.
type Snapshot struct {
	ID          string           `json:"view_id"`
	UserID      string           `json:"user_id"`
	LessonID    string           `json:"lesson_id"`
	Title       string           `json:"title,omitempty"`
	State       navigation.State `json:"state"`
	CanAdvance  bool             `json:"can_advance"`
	CanRetreat  bool             `json:"can_retreat"`
	Page        render.Page      `json:"page"`
	ContentHash string           `json:"content_hash"`
	Closed      bool             `json:"closed"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Open loads a lesson through loader and starts a view at page 0.
func Open(ctx context.Context, loader content.Loader, reporter Reporter, opts render.Options, log *slog.Logger, userID, lessonID string) (*View, error) {
	l, err := loader.Load(ctx, lessonID)
	if err != nil {
		return nil, fmt.Errorf("load lesson %s: %w", lessonID, err)
	}
	return New(l, reporter, opts, log, userID), nil
}

// New starts a view over already-loaded lesson text.
func New(l content.Lesson, reporter Reporter, opts render.Options, log *slog.Logger, userID string) *View {
	if log == nil {
		log = slog.Default()
	}
	now := time.Now()
	v := &View{
		ID:        uuid.NewString(),
		UserID:    userID,
		LessonID:  l.ID,
		Title:     l.Title,
		reporter:  reporter,
		opts:      opts,
		CreatedAt: now,
		UpdatedAt: now,
	}
	v.log = log.With("view_id", v.ID, "user_id", userID, "lesson_id", l.ID)
	v.pages = render.RenderWith(l.Text, opts)
	v.contentHash = ContentHashHex([]byte(l.Text))
	v.nav = navigation.New(len(v.pages), v.onFurthest)
	return v
}

// onFurthest runs inside Advance with mu held. Report never blocks.
func (v *View) onFurthest(furthest int) {
	if v.reporter == nil {
		return
	}
	v.reporter.Report(progress.Event{
		UserID:            v.UserID,
		LessonID:          v.LessonID,
		FurthestPageIndex: furthest,
		TotalPages:        len(v.pages),
	})
}

// Advance moves forward one page. moved is false at the last page.
func (v *View) Advance() (moved bool, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return false, ErrClosed
	}
	moved = v.nav.Advance()
	v.UpdatedAt = time.Now()
	return moved, nil
}

// Retreat moves back one page. moved is false at page 0.
func (v *View) Retreat() (moved bool, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return false, ErrClosed
	}
	moved = v.nav.Retreat()
	v.UpdatedAt = time.Now()
	return moved, nil
}

// Page returns the rendered page at index.
func (v *View) Page(index int) (render.Page, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if index < 0 || index >= len(v.pages) {
		return render.Page{}, false
	}
	return v.pages[index], true
}

// Pages returns all rendered pages.
func (v *View) Pages() []render.Page {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]render.Page, len(v.pages))
	copy(out, v.pages)
	return out
}

// Reload re-renders new lesson text. Identical text is a no-op and keeps
// the reader's position; changed text resets navigation to page 0.
func (v *View) Reload(text string) (changed bool, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return false, ErrClosed
	}
	hash := ContentHashHex([]byte(text))
	if hash == v.contentHash {
		return false, nil
	}
	v.pages = render.RenderWith(text, v.opts)
	v.contentHash = hash
	v.nav.Reset(len(v.pages))
	v.UpdatedAt = time.Now()
	v.log.Info("lesson reloaded", "total_pages", len(v.pages))
	return true, nil
}

// Close ends the view. Reports already handed to the reporter still run.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	v.UpdatedAt = time.Now()
	st := v.nav.State()
	v.log.Info("view closed", "current_page_index", st.Current, "furthest_page_index", st.Furthest)
}

// Snapshot returns a JSON-safe copy of the view with its current page.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	st := v.nav.State()
	return Snapshot{
		ID:          v.ID,
		UserID:      v.UserID,
		LessonID:    v.LessonID,
		Title:       v.Title,
		State:       st,
		CanAdvance:  v.nav.CanAdvance(),
		CanRetreat:  v.nav.CanRetreat(),
		Page:        v.pages[st.Current],
		ContentHash: v.contentHash,
		Closed:      v.closed,
		UpdatedAt:   v.UpdatedAt,
	}
}

func (v *View) lastTouched() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.UpdatedAt
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
