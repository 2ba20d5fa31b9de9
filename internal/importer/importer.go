// Package importer converts documents in common formats into lesson markup.
//
// The conversion is lossy on purpose: lesson markup only knows titles,
// subtitles, paragraphs with bold and italic, videos and page breaks, so
// lists, tables and code are flattened to paragraphs.
package importer

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/lessonpage/internal/lesson"
	"github.com/dgallion1/lessonpage/internal/markup"
)

// Document is an imported lesson.
type Document struct {
	Title  string `json:"title,omitempty"`
	Markup string `json:"markup"`
}

// Importer converts raw document bytes into lesson markup.
type Importer interface {
	Import(r io.Reader, filename string) (Document, error)
}

// Options tunes format-specific behaviour.
type Options struct {
	// FallbackPdftotext runs the pdftotext binary when the Go PDF reader fails.
	FallbackPdftotext bool
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".lesson":   true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate importer for a filename.
func ForFile(filename string, opts Options) (Importer, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt", ".lesson":
		return &TextImporter{}, nil
	case ".md", ".markdown":
		return &MarkdownImporter{}, nil
	case ".csv":
		return &CSVImporter{}, nil
	case ".html", ".htm":
		return &HTMLImporter{}, nil
	case ".pdf":
		return &PDFImporter{FallbackPdftotext: opts.FallbackPdftotext}, nil
	case ".docx":
		return &DOCXImporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

func baseTitle(filename string) string {
	return strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
}

// builder accumulates markup lines. Every emitted line is a single line so
// the tokenizer classifies it exactly as written.
type builder struct {
	lines []string
}

func (b *builder) title(s string) {
	if s = oneLine(s); s != "" {
		b.lines = append(b.lines, markup.TitlePrefix+s)
	}
}

func (b *builder) subtitle(s string) {
	if s = oneLine(s); s != "" {
		b.lines = append(b.lines, markup.SubtitlePrefix+s)
	}
}

func (b *builder) heading(level int, s string) {
	if level <= 1 {
		b.title(s)
		return
	}
	b.subtitle(s)
}

func (b *builder) paragraph(s string) {
	s = oneLine(s)
	// A bare "---" paragraph would turn into a page break.
	if s == "" || s == markup.SeparatorLine {
		return
	}
	if markup.Tokenize(s)[0].Type != lesson.TokenParagraph {
		s = paragraphEscape + s
	}
	b.lines = append(b.lines, s)
}

// paragraphEscape keeps body text that starts with a markup prefix ("# ",
// "## ", "#video ") a paragraph. strings.TrimSpace does not strip it.
const paragraphEscape = "\u200b"

func (b *builder) video(url string) {
	if url = strings.TrimSpace(url); url != "" {
		b.lines = append(b.lines, markup.VideoPrefix+url)
	}
}

func (b *builder) pageBreak() {
	b.lines = append(b.lines, markup.SeparatorLine)
}

func (b *builder) String() string {
	return strings.Join(b.lines, "\n")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
