package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/lessonpage/internal/config"
	"github.com/dgallion1/lessonpage/internal/content"
	"github.com/dgallion1/lessonpage/internal/importer"
	"github.com/dgallion1/lessonpage/internal/progress"
	"github.com/dgallion1/lessonpage/internal/progressstore"
	"github.com/dgallion1/lessonpage/internal/render"
	"github.com/dgallion1/lessonpage/internal/viewer"
)

// Deps are the collaborators the HTTP surface drives.
type Deps struct {
	Loader   content.Loader
	Views    *viewer.Store
	Reporter *progress.Reporter // nil disables progress reporting
	Store    progressstore.Store
}

// Server is the HTTP API server for lessonpage.
type Server struct {
	router     chi.Router
	deps       Deps
	renderOpts render.Options
	importOpts importer.Options
	log        *slog.Logger
	cfg        config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(deps Deps, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		deps:       deps,
		renderOpts: render.Options{Marker: cfg.Marker()},
		importOpts: importer.Options{FallbackPdftotext: cfg.PDFFallbackPdftotext},
		log:        log,
		cfg:        cfg,
	}
	s.setupRoutes()
	return s
}

// viewReporter returns the reporter views emit through, or a nil interface
// when progress reporting is disabled.
func (s *Server) viewReporter() viewer.Reporter {
	if s.deps.Reporter == nil {
		return nil
	}
	return s.deps.Reporter
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.LessonpageAPIKey, s.log))

		r.Post("/api/lessons/render", s.handleRender)
		r.Get("/api/lessons/{lessonID}", s.handleGetLesson)
		r.Post("/api/lessons/import", s.handleImport)
		r.Post("/api/lessons/import/batch", s.handleBatchImport)

		r.Post("/api/views", s.handleOpenView)
		r.Get("/api/views/{viewID}", s.handleGetView)
		r.Post("/api/views/{viewID}/advance", s.handleAdvance)
		r.Post("/api/views/{viewID}/retreat", s.handleRetreat)
		r.Post("/api/views/{viewID}/reload", s.handleReload)
		r.Delete("/api/views/{viewID}", s.handleCloseView)

		r.Post("/api/progress", s.handleReceiveProgress)
		r.Get("/api/progress", s.handleGetProgress)

		r.Get("/api/stats/delivery", s.handleDeliveryStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
