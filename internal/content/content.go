// Package content loads lesson markup text by lesson id.
package content

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNotFound is returned when a lesson id has no content.
var ErrNotFound = errors.New("lesson not found")

// Lesson is raw lesson markup plus the metadata a loader could find.
type Lesson struct {
	ID        string `json:"lesson_id"`
	Title     string `json:"title,omitempty"`
	Text      string `json:"text"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

// Loader fetches lesson text.
type Loader interface {
	Load(ctx context.Context, lessonID string) (Lesson, error)
}

var lessonIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidateID rejects ids that are empty, too long, or could escape a path
// or query string.
func ValidateID(id string) error {
	if !lessonIDRe.MatchString(id) {
		return fmt.Errorf("invalid lesson id %q", id)
	}
	return nil
}

// Static serves lessons from a fixed map. Used by tests and the CLI.
type Static map[string]Lesson

func (s Static) Load(_ context.Context, lessonID string) (Lesson, error) {
	l, ok := s[lessonID]
	if !ok {
		return Lesson{}, ErrNotFound
	}
	if l.ID == "" {
		l.ID = lessonID
	}
	return l, nil
}

var (
	slugInvalidRe = regexp.MustCompile(`[^a-z0-9_-]`)
	slugDashRe    = regexp.MustCompile(`-+`)
)

// Slug turns a title or file name into a lesson id accepted by ValidateID.
// It returns "" when nothing usable remains.
func Slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugInvalidRe.ReplaceAllString(s, "-")
	s = slugDashRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > 64 {
		s = strings.TrimRight(s[:64], "-")
	}
	return s
}
