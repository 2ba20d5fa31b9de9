package paginate

import (
	"fmt"
	"strings"

	"github.com/dgallion1/lessonpage/internal/lesson"
	"github.com/dgallion1/lessonpage/internal/markup"
)

// Marker selects how raw lesson text is divided into pages.
type Marker string

const (
	// MarkerLine splits on separator tokens: a line that is exactly "---".
	MarkerLine Marker = "line"
	// MarkerDashes splits the raw text on every "---" substring.
	MarkerDashes Marker = "dashes"
	// MarkerDashesNewline splits the raw text on "---\n".
	MarkerDashesNewline Marker = "dashes-newline"
)

// ParseMarker maps a configuration value to a Marker. Empty means MarkerLine.
func ParseMarker(s string) (Marker, error) {
	switch m := Marker(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return MarkerLine, nil
	case MarkerLine, MarkerDashes, MarkerDashesNewline:
		return m, nil
	default:
		return "", fmt.Errorf("unknown page marker %q", s)
	}
}

// Paginate splits tokens at every separator, dropping the separator.
// k separators always give k+1 pages; leading, trailing and consecutive
// separators produce empty pages.
func Paginate(tokens []lesson.Token) []lesson.Page {
	pages := make([]lesson.Page, 0, 1)
	var current []lesson.Token

	for _, tok := range tokens {
		if tok.Type == lesson.TokenSeparator {
			pages = append(pages, lesson.Page{Tokens: current})
			current = nil
			continue
		}
		current = append(current, tok)
	}
	pages = append(pages, lesson.Page{Tokens: current})

	return pages
}

// PaginateText tokenizes and paginates text using the given marker.
// The raw-split markers tokenize each chunk separately; a chunk that still
// holds a separator line is split again, so no page keeps a separator.
func PaginateText(text string, marker Marker, tk *markup.Tokenizer) []lesson.Page {
	if tk == nil {
		tk = markup.NewTokenizer()
	}

	var delim string
	switch marker {
	case MarkerDashes:
		delim = "---"
	case MarkerDashesNewline:
		delim = "---\n"
		text = strings.ReplaceAll(text, "\r\n", "\n")
	default:
		return Paginate(tk.Tokenize(text))
	}

	var pages []lesson.Page
	for _, chunk := range strings.Split(text, delim) {
		pages = append(pages, Paginate(tk.Tokenize(chunk))...)
	}
	return pages
}

// Count returns the number of pages PaginateText would produce.
func Count(text string, marker Marker) int {
	return len(PaginateText(text, marker, nil))
}
