package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// CSVImporter turns a spreadsheet of slides into pages. The first row is a
// header; each later row becomes one page. A "title" column becomes the
// page title, a "video" column a video line, and every other non-empty
// cell a paragraph.
type CSVImporter struct{}

func (p *CSVImporter) Import(r io.Reader, filename string) (Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return Document{}, fmt.Errorf("parse csv: %w", err)
	}

	doc := Document{Title: baseTitle(filename)}
	if len(records) < 2 {
		return doc, nil
	}

	headers := records[0]
	for i := range headers {
		headers[i] = strings.ToLower(strings.TrimSpace(headers[i]))
	}

	var b builder
	for i, row := range records[1:] {
		if i > 0 {
			b.pageBreak()
		}
		for j, cell := range row {
			var col string
			if j < len(headers) {
				col = headers[j]
			}
			switch col {
			case "title":
				b.title(cell)
			case "subtitle":
				b.subtitle(cell)
			case "video":
				b.video(cell)
			default:
				b.paragraph(cell)
			}
		}
	}
	doc.Markup = b.String()
	return doc, nil
}
