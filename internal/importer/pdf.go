package importer

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// PDFImporter maps each PDF page to one lesson page. It tries the Go
// library first, then falls back to pdftotext if enabled.
type PDFImporter struct {
	FallbackPdftotext bool
}

func (p *PDFImporter) Import(r io.Reader, filename string) (Document, error) {
	// ledongthuc/pdf requires a ReadSeeker+size, so we write to a temp file.
	tmp, err := os.CreateTemp("", "lessonpage-pdf-*.pdf")
	if err != nil {
		return Document{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return Document{}, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	text, err := extractPDFText(tmpPath)
	if err != nil && p.FallbackPdftotext {
		text, err = extractPdftotext(tmpPath)
	}
	if err != nil {
		return Document{}, fmt.Errorf("extract pdf text: %w", err)
	}

	return Document{Title: baseTitle(filename), Markup: pdfMarkup(text)}, nil
}

// pdfMarkup turns form-feed separated page text into lesson pages. Runs of
// non-blank lines become one paragraph.
func pdfMarkup(text string) string {
	var b builder
	for i, page := range strings.Split(strings.TrimRight(text, "\f"), "\f") {
		if i > 0 {
			b.pageBreak()
		}
		var para []string
		flush := func() {
			b.paragraph(strings.Join(para, " "))
			para = para[:0]
		}
		for _, line := range strings.Split(page, "\n") {
			if strings.TrimSpace(line) == "" {
				flush()
				continue
			}
			para = append(para, line)
		}
		flush()
	}
	return b.String()
}

func extractPDFText(path string) (string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var buf strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		if i > 1 {
			buf.WriteString("\f")
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		buf.WriteString(text)
	}
	return buf.String(), nil
}

func extractPdftotext(path string) (string, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}
