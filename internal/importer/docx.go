package importer

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fumiama/go-docx"
)

// DOCXImporter handles .docx files. Heading styles become titles and
// subtitles; bold and italic runs keep their emphasis.
type DOCXImporter struct{}

func (p *DOCXImporter) Import(r io.Reader, filename string) (Document, error) {
	// go-docx needs a ReadSeeker+size, so write to temp file.
	tmp, err := os.CreateTemp("", "lessonpage-docx-*.docx")
	if err != nil {
		return Document{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return Document{}, fmt.Errorf("write temp file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return Document{}, fmt.Errorf("seek temp file: %w", err)
	}

	d, err := docx.Parse(tmp, size)
	tmp.Close()
	if err != nil {
		return Document{}, fmt.Errorf("parse docx: %w", err)
	}

	doc := Document{Title: baseTitle(filename)}
	var b builder
	titled := false
	for _, item := range d.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		text := docxParagraphText(para)
		if level := docxHeadingLevel(para); level > 0 {
			if level == 1 && !titled && text != "" {
				doc.Title = oneLine(stripEmphasis(text))
				titled = true
			}
			b.heading(level, stripEmphasis(text))
			continue
		}
		b.paragraph(text)
	}
	doc.Markup = b.String()
	return doc, nil
}

// docxHeadingLevel accepts both style ids ("Heading2") and names ("heading 2").
func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	if style == "title" {
		return 1
	}
	if !strings.HasPrefix(style, "heading") {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimPrefix(style, "heading"))
	if err != nil || n < 1 || n > 9 {
		return 0
	}
	return n
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		var rb strings.Builder
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				rb.WriteString(t.Text)
			}
		}
		s := rb.String()
		switch {
		case strings.TrimSpace(s) == "":
			buf.WriteString(s)
		case run.RunProperties != nil && run.RunProperties.Bold != nil:
			buf.WriteString("**" + strings.TrimSpace(s) + "**")
		case run.RunProperties != nil && run.RunProperties.Italic != nil:
			buf.WriteString("*" + strings.TrimSpace(s) + "*")
		default:
			buf.WriteString(s)
		}
	}
	return strings.TrimSpace(buf.String())
}

func stripEmphasis(s string) string {
	return strings.ReplaceAll(s, "*", "")
}
