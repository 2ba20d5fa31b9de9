package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/lessonpage/internal/lesson"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/wordwrap"
)

const (
	ansiReset     = "\x1b[0m"
	ansiBold      = "\x1b[1m"
	ansiItalic    = "\x1b[3m"
	ansiUnderline = "\x1b[4m"
)

// Terminal writes pages as word-wrapped text for a terminal.
type Terminal struct {
	Width int
	// Plain disables ANSI styling.
	Plain bool
}

// WritePage writes one page. Empty pages print a placeholder line.
func (t Terminal) WritePage(w io.Writer, p Page) error {
	var sb strings.Builder
	if len(p.Blocks) == 0 {
		sb.WriteString(t.style(ansiItalic, "(empty page)"))
		sb.WriteString("\n")
	}
	for _, b := range p.Blocks {
		sb.WriteString(t.block(b))
		sb.WriteString("\n")
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// Footer renders a "page i / n" line, right-aligned to Width.
func (t Terminal) Footer(index, count int) string {
	label := fmt.Sprintf("page %d / %d", index+1, count)
	pad := t.width() - ansi.PrintableRuneWidth(label)
	if pad < 0 {
		pad = 0
	}
	return strings.Repeat(" ", pad) + label
}

func (t Terminal) block(b Block) string {
	switch b.Kind {
	case BlockTitle:
		return t.wrap(t.style(ansiBold+ansiUnderline, strings.ToUpper(b.Text)))
	case BlockSubtitle:
		return t.wrap(t.style(ansiBold, b.Text))
	case BlockParagraph:
		var sb strings.Builder
		for _, r := range b.Runs {
			sb.WriteString(t.run(r))
		}
		return t.wrap(sb.String())
	case BlockVideo:
		return t.wrap(fmt.Sprintf("[video %s] %s", b.AspectRatio, b.URL))
	default:
		return ""
	}
}

func (t Terminal) run(r lesson.StyledRun) string {
	switch r.Style {
	case lesson.StyleBold:
		return t.style(ansiBold, r.Text)
	case lesson.StyleItalic:
		return t.style(ansiItalic, r.Text)
	default:
		return r.Text
	}
}

func (t Terminal) style(prefix, s string) string {
	if t.Plain || s == "" {
		return s
	}
	return prefix + s + ansiReset
}

func (t Terminal) wrap(s string) string {
	return wordwrap.String(s, t.width())
}

func (t Terminal) width() int {
	if t.Width <= 0 {
		return 80
	}
	return t.Width
}
