package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/frontmatter"
)

// DirExtensions are tried in order when resolving a lesson file.
var DirExtensions = []string{".lesson", ".md"}

// DirLoader reads {dir}/{id}.lesson or {dir}/{id}.md. A leading YAML front
// matter block of lesson metadata is stripped and its fields kept.
type DirLoader struct {
	dir string
}

func NewDirLoader(dir string) *DirLoader {
	return &DirLoader{dir: dir}
}

type lessonMeta struct {
	Title     string `yaml:"title"`
	StartDate string `yaml:"start_date"`
	EndDate   string `yaml:"end_date"`
}

func (l *DirLoader) Load(_ context.Context, lessonID string) (Lesson, error) {
	if err := ValidateID(lessonID); err != nil {
		return Lesson{}, err
	}
	for _, ext := range DirExtensions {
		data, err := os.ReadFile(filepath.Join(l.dir, lessonID+ext))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return Lesson{}, fmt.Errorf("read lesson %s: %w", lessonID, err)
		}
		return ParseFile(lessonID, data)
	}
	return Lesson{}, ErrNotFound
}

// ParseFile splits optional front matter from lesson markup. A leading
// "---" block is front matter only when it parses as a YAML mapping whose
// keys are all lesson metadata fields; anything else is a page separator
// and the text is returned untouched.
func ParseFile(lessonID string, data []byte) (Lesson, error) {
	if !hasFrontMatter(data) {
		return Lesson{ID: lessonID, Text: string(data)}, nil
	}
	var meta lessonMeta
	body, err := frontmatter.Parse(bytes.NewReader(data), &meta)
	if err != nil {
		return Lesson{}, fmt.Errorf("parse frontmatter: %w", err)
	}
	return Lesson{
		ID:        lessonID,
		Title:     meta.Title,
		Text:      string(body),
		StartDate: meta.StartDate,
		EndDate:   meta.EndDate,
	}, nil
}

var metaKeys = map[string]bool{"title": true, "start_date": true, "end_date": true}

func hasFrontMatter(data []byte) bool {
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	if len(lines) < 3 || strings.TrimSpace(lines[0]) != "---" {
		return false
	}
	closed := false
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "---" {
			closed = true
			break
		}
	}
	if !closed {
		return false
	}

	var raw map[string]any
	if _, err := frontmatter.Parse(bytes.NewReader(data), &raw); err != nil || len(raw) == 0 {
		return false
	}
	for k := range raw {
		if !metaKeys[k] {
			return false
		}
	}
	return true
}
