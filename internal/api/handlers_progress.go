package api

import (
	"encoding/json"
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/dgallion1/lessonpage/internal/progress"
	"github.com/dgallion1/lessonpage/internal/progressstore"
)

type progressResponse struct {
	progressstore.Record
	Percent float64 `json:"percent"`
}

func newProgressResponse(rec progressstore.Record) progressResponse {
	return progressResponse{Record: rec, Percent: rec.Percent()}
}

// handleReceiveProgress is the persistence endpoint reporters post to. It
// applies max semantics, so duplicates and late arrivals are accepted and
// leave the stored value unchanged.
func (s *Server) handleReceiveProgress(w http.ResponseWriter, r *http.Request) {
	var ev progress.Event
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&ev); err != nil {
		jsonError(w, "invalid json body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := ev.Validate(); err != nil {
		var verrs validation.Errors
		if errors.As(err, &verrs) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid progress event", "fields": verrs})
			return
		}
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	rec, err := s.deps.Store.Apply(r.Context(), ev)
	if err != nil {
		s.log.Error("apply progress", "user_id", ev.UserID, "lesson_id", ev.LessonID, "error", err)
		jsonError(w, "failed to store progress", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, newProgressResponse(rec))
}

// handleGetProgress returns one record with lesson_id, or all of a user's
// records without it.
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		jsonError(w, "user_id query parameter is required", http.StatusBadRequest)
		return
	}
	ctx := r.Context()

	if lessonID := r.URL.Query().Get("lesson_id"); lessonID != "" {
		rec, ok, err := s.deps.Store.Get(ctx, userID, lessonID)
		if err != nil {
			jsonError(w, "failed to read progress: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if !ok {
			jsonError(w, "no progress recorded", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, newProgressResponse(rec))
		return
	}

	recs, err := s.deps.Store.List(ctx, userID)
	if err != nil {
		jsonError(w, "failed to list progress: "+err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]progressResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, newProgressResponse(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"progress": out})
}
