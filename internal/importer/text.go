package importer

import (
	"io"
	"strings"
)

// TextImporter passes lesson markup and plain text through with newlines
// normalized.
type TextImporter struct{}

func (p *TextImporter) Import(r io.Reader, filename string) (Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return Document{}, err
	}
	text := strings.ReplaceAll(string(src), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return Document{Title: baseTitle(filename), Markup: text}, nil
}
