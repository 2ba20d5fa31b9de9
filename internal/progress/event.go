package progress

import (
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/dgallion1/lessonpage/internal/content"
)

// Event reports that a learner reached a new furthest page in a lesson.
// Receivers should keep the maximum FurthestPageIndex seen per
// (UserID, LessonID), which makes loss and reordering harmless.
type Event struct {
	ID                string    `json:"event_id"`
	UserID            string    `json:"user_id"`
	LessonID          string    `json:"lesson_id"`
	FurthestPageIndex int       `json:"furthest_page_index"`
	TotalPages        int       `json:"total_pages,omitempty"`
	ReportedAt        time.Time `json:"reported_at"`
}

// Validate checks an event received over the wire.
func (e Event) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.UserID, validation.Required, validation.Length(1, 128), validation.By(func(any) error {
			return ValidateUserID(e.UserID)
		})),
		validation.Field(&e.LessonID, validation.Required, validation.By(func(any) error {
			return content.ValidateID(e.LessonID)
		})),
		validation.Field(&e.FurthestPageIndex, validation.Min(0), validation.By(func(any) error {
			if e.TotalPages > 0 && e.FurthestPageIndex >= e.TotalPages {
				return errors.New("must be less than total_pages")
			}
			return nil
		})),
		validation.Field(&e.TotalPages, validation.Min(0)),
	)
}

// ValidateUserID rejects user ids that cannot be used as a store key
// segment.
func ValidateUserID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("user id is required")
	}
	if strings.ContainsAny(id, ":\r\n") {
		return errors.New("user id must not contain ':' or line breaks")
	}
	return nil
}
