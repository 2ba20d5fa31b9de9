package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/lessonpage/internal/content"
	"github.com/dgallion1/lessonpage/internal/paginate"
	"github.com/dgallion1/lessonpage/internal/render"
)

type renderRequest struct {
	Text   string `json:"text"`
	Marker string `json:"marker,omitempty"`
}

// handleRender renders posted lesson text. ?format=html returns HTML
// fragments, optionally restricted to one page with ?page=N.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	var req renderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid json body: "+err.Error(), http.StatusBadRequest)
		return
	}

	opts := s.renderOpts
	if req.Marker != "" {
		m, err := paginate.ParseMarker(req.Marker)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		opts.Marker = m
	}

	s.writePages(w, r, "", "", render.RenderWith(req.Text, opts))
}

// handleGetLesson loads a lesson by id and renders it.
func (s *Server) handleGetLesson(w http.ResponseWriter, r *http.Request) {
	lessonID := chi.URLParam(r, "lessonID")
	if err := content.ValidateID(lessonID); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	l, err := s.deps.Loader.Load(r.Context(), lessonID)
	if errors.Is(err, content.ErrNotFound) {
		jsonError(w, "lesson not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("load lesson", "lesson_id", lessonID, "error", err)
		jsonError(w, "failed to load lesson", http.StatusBadGateway)
		return
	}
	s.writePages(w, r, l.ID, l.Title, render.RenderWith(l.Text, s.renderOpts))
}

func (s *Server) writePages(w http.ResponseWriter, r *http.Request, lessonID, title string, pages []render.Page) {
	q := r.URL.Query()
	selected := pages
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n >= len(pages) {
			jsonError(w, "page out of range", http.StatusBadRequest)
			return
		}
		selected = pages[n : n+1]
	}

	if q.Get("format") == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		for _, p := range selected {
			if err := render.WriteHTML(w, p); err != nil {
				s.log.Warn("write html", "error", err)
				return
			}
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"lesson_id":   lessonID,
		"title":       title,
		"total_pages": len(pages),
		"pages":       selected,
	})
}
