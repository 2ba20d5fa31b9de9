package markup

import (
	"strings"

	"github.com/dgallion1/lessonpage/internal/lesson"
)

// Line markers recognised by the tokenizer.
const (
	SeparatorLine  = "---"
	SubtitlePrefix = "## "
	TitlePrefix    = "# "
	VideoPrefix    = "#video "
)

// Tokenizer classifies lesson lines into tokens.
type Tokenizer struct {
	Rewrites []LinkRewrite
}

// NewTokenizer returns a tokenizer using DefaultRewrites.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{Rewrites: DefaultRewrites}
}

// Tokenize splits text on line boundaries and classifies every line.
// It never fails: each line yields exactly one token, in input order.
func Tokenize(text string) []lesson.Token {
	return NewTokenizer().Tokenize(text)
}

// Tokenize splits text on line boundaries and classifies every line.
func (t *Tokenizer) Tokenize(text string) []lesson.Token {
	lines := SplitLines(text)
	tokens := make([]lesson.Token, 0, len(lines))
	for _, line := range lines {
		tokens = append(tokens, t.classify(line))
	}
	return tokens
}

func (t *Tokenizer) classify(line string) lesson.Token {
	line = strings.TrimSpace(line)

	switch {
	case line == SeparatorLine:
		return lesson.Separator()
	case strings.HasPrefix(line, SubtitlePrefix):
		return lesson.Subtitle(strings.TrimSpace(line[len(SubtitlePrefix):]))
	case strings.HasPrefix(line, TitlePrefix):
		return lesson.Title(strings.TrimSpace(line[len(TitlePrefix):]))
	case strings.HasPrefix(line, VideoPrefix):
		url := strings.TrimSpace(line[len(VideoPrefix):])
		return lesson.Video(RewriteLink(url, t.Rewrites))
	case line == "":
		return lesson.Blank()
	default:
		return lesson.Paragraph(line)
	}
}

// SplitLines normalizes \r\n to \n and splits on \n. Empty text yields a
// single empty line, so the result is never empty.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(text, "\n")
}
