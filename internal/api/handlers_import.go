package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/lessonpage/internal/content"
	"github.com/dgallion1/lessonpage/internal/importer"
	"github.com/dgallion1/lessonpage/internal/paginate"
)

const batchImportConcurrency = 4

type importResult struct {
	Filename   string `json:"filename"`
	LessonID   string `json:"lesson_id,omitempty"`
	Title      string `json:"title,omitempty"`
	Markup     string `json:"markup,omitempty"`
	TotalPages int    `json:"total_pages,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !importer.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	res := s.importOne(filename, data)
	if res.Error != "" {
		jsonError(w, res.Error, http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleBatchImport converts several files concurrently. Per-file failures
// are reported inline; results keep upload order.
func (s *Server) handleBatchImport(w http.ResponseWriter, r *http.Request) {
	maxFiles := int64(s.cfg.MaxBatchFiles)
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*maxFiles+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}
	if len(files) > s.cfg.MaxBatchFiles {
		jsonError(w, fmt.Sprintf("at most %d files per batch", s.cfg.MaxBatchFiles), http.StatusBadRequest)
		return
	}

	results := make([]importResult, len(files))
	g, gctx := errgroup.WithContext(r.Context())
	g.SetLimit(batchImportConcurrency)
	for i, fh := range files {
		g.Go(func() error {
			results[i] = s.importFileHeader(gctx, fh)
			return nil
		})
	}
	_ = g.Wait()

	writeJSON(w, http.StatusOK, map[string]any{"lessons": results})
}

func (s *Server) importFileHeader(ctx context.Context, fh *multipart.FileHeader) importResult {
	filename := sanitizeFilename(fh.Filename)
	if err := ctx.Err(); err != nil {
		return importResult{Filename: filename, Error: err.Error()}
	}
	if !importer.IsSupportedExtension(filename) {
		return importResult{Filename: filename, Error: fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename))}
	}

	f, err := fh.Open()
	if err != nil {
		return importResult{Filename: filename, Error: "failed to open file"}
	}
	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
	f.Close()
	if err != nil || int64(len(data)) > s.cfg.MaxUploadBytes {
		return importResult{Filename: filename, Error: "file too large or read error"}
	}
	return s.importOne(filename, data)
}

func (s *Server) importOne(filename string, data []byte) importResult {
	imp, err := importer.ForFile(filename, s.importOpts)
	if err != nil {
		return importResult{Filename: filename, Error: err.Error()}
	}
	doc, err := imp.Import(bytes.NewReader(data), filename)
	if err != nil {
		s.log.Warn("import failed", "filename", filename, "error", err)
		return importResult{Filename: filename, Error: err.Error()}
	}
	id := content.Slug(doc.Title)
	if id == "" {
		id = content.Slug(strings.TrimSuffix(filename, filepath.Ext(filename)))
	}
	if id == "" {
		id = "lesson-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	}
	return importResult{
		Filename:   filename,
		LessonID:   id,
		Title:      doc.Title,
		Markup:     doc.Markup,
		TotalPages: paginate.Count(doc.Markup, s.renderOpts.Marker),
	}
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
