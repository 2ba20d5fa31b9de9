package markup

import (
	"regexp"

	"github.com/dgallion1/lessonpage/internal/lesson"
)

// Bold is tried before italic at every position, and neither body may
// contain '*' or be empty.
var inlineRe = regexp.MustCompile(`\*\*([^*]+)\*\*|\*([^*]+)\*`)

// FormatInline decomposes paragraph text into plain, bold and italic runs.
// Unmatched markers stay in plain runs, and the runs' Raw fields always
// concatenate back to text.
func FormatInline(text string) []lesson.StyledRun {
	var runs []lesson.StyledRun
	last := 0

	for _, m := range inlineRe.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[0], m[1]
		if start > last {
			runs = append(runs, plain(text[last:start]))
		}

		run := lesson.StyledRun{Raw: text[start:end]}
		if m[2] >= 0 {
			run.Style = lesson.StyleBold
			run.Text = text[m[2]:m[3]]
		} else {
			run.Style = lesson.StyleItalic
			run.Text = text[m[4]:m[5]]
		}
		runs = append(runs, run)
		last = end
	}

	if last < len(text) {
		runs = append(runs, plain(text[last:]))
	}
	return runs
}

func plain(s string) lesson.StyledRun {
	return lesson.StyledRun{Style: lesson.StylePlain, Text: s, Raw: s}
}

// Source rebuilds the original text from runs.
func Source(runs []lesson.StyledRun) string {
	n := 0
	for _, r := range runs {
		n += len(r.Raw)
	}
	b := make([]byte, 0, n)
	for _, r := range runs {
		b = append(b, r.Raw...)
	}
	return string(b)
}
