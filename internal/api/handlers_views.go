package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/lessonpage/internal/content"
	"github.com/dgallion1/lessonpage/internal/progress"
	"github.com/dgallion1/lessonpage/internal/viewer"
)

type openViewRequest struct {
	UserID   string `json:"user_id"`
	LessonID string `json:"lesson_id"`
}

func (s *Server) handleOpenView(w http.ResponseWriter, r *http.Request) {
	var req openViewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid json body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := progress.ValidateUserID(req.UserID); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := content.ValidateID(req.LessonID); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	v, err := viewer.Open(r.Context(), s.deps.Loader, s.viewReporter(), s.renderOpts, s.log, req.UserID, req.LessonID)
	if errors.Is(err, content.ErrNotFound) {
		jsonError(w, "lesson not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("open view", "lesson_id", req.LessonID, "error", err)
		jsonError(w, "failed to load lesson", http.StatusBadGateway)
		return
	}
	s.deps.Views.Put(v)

	w.Header().Set("Location", "/api/views/"+v.ID)
	writeJSON(w, http.StatusCreated, v.Snapshot())
}

func (s *Server) handleGetView(w http.ResponseWriter, r *http.Request) {
	v := s.lookupView(w, r)
	if v == nil {
		return
	}
	writeJSON(w, http.StatusOK, v.Snapshot())
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	s.navigate(w, r, (*viewer.View).Advance)
}

func (s *Server) handleRetreat(w http.ResponseWriter, r *http.Request) {
	s.navigate(w, r, (*viewer.View).Retreat)
}

// navigate applies a move. Moves past either end leave the state unchanged
// and still return 200 with moved=false.
func (s *Server) navigate(w http.ResponseWriter, r *http.Request, move func(*viewer.View) (bool, error)) {
	v := s.lookupView(w, r)
	if v == nil {
		return
	}
	moved, err := move(v)
	if errors.Is(err, viewer.ErrClosed) {
		jsonError(w, "view closed", http.StatusGone)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"moved": moved,
		"view":  v.Snapshot(),
	})
}

// handleReload refetches the lesson text. Unchanged text keeps the reader's
// position.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	v := s.lookupView(w, r)
	if v == nil {
		return
	}
	l, err := s.deps.Loader.Load(r.Context(), v.LessonID)
	if errors.Is(err, content.ErrNotFound) {
		jsonError(w, "lesson not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("reload lesson", "lesson_id", v.LessonID, "error", err)
		jsonError(w, "failed to load lesson", http.StatusBadGateway)
		return
	}
	changed, err := v.Reload(l.Text)
	if errors.Is(err, viewer.ErrClosed) {
		jsonError(w, "view closed", http.StatusGone)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"changed": changed,
		"view":    v.Snapshot(),
	})
}

func (s *Server) handleCloseView(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Views.Delete(chi.URLParam(r, "viewID")) {
		jsonError(w, "view not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) lookupView(w http.ResponseWriter, r *http.Request) *viewer.View {
	v := s.deps.Views.Get(chi.URLParam(r, "viewID"))
	if v == nil {
		jsonError(w, "view not found", http.StatusNotFound)
	}
	return v
}
