package lesson

// TokenType classifies a single line of lesson markup.
type TokenType string

const (
	TokenTitle     TokenType = "title"
	TokenSubtitle  TokenType = "subtitle"
	TokenParagraph TokenType = "paragraph"
	TokenVideo     TokenType = "video"
	TokenBlank     TokenType = "blank"
	TokenSeparator TokenType = "separator"
)

// Token is one classified line. Text holds the post-marker content for
// titles, subtitles and paragraphs; URL holds the video link. Blank and
// separator tokens carry neither.
type Token struct {
	Type TokenType `json:"type"`
	Text string    `json:"text,omitempty"`
	URL  string    `json:"url,omitempty"`
}

// Title returns a title token.
func Title(text string) Token { return Token{Type: TokenTitle, Text: text} }

// Subtitle returns a subtitle token.
func Subtitle(text string) Token { return Token{Type: TokenSubtitle, Text: text} }

// Paragraph returns a paragraph token.
func Paragraph(text string) Token { return Token{Type: TokenParagraph, Text: text} }

// Video returns a video token.
func Video(url string) Token { return Token{Type: TokenVideo, URL: url} }

// Blank returns a blank-line token.
func Blank() Token { return Token{Type: TokenBlank} }

// Separator returns a page-break token.
func Separator() Token { return Token{Type: TokenSeparator} }

// Style is the decoration applied to a run of paragraph text.
type Style string

const (
	StylePlain  Style = "plain"
	StyleBold   Style = "bold"
	StyleItalic Style = "italic"
)

// StyledRun is a span of paragraph text. Text is what gets displayed
// (delimiters stripped); Raw is the exact source span, delimiters included.
// Concatenating Raw over a paragraph's runs yields the paragraph verbatim.
type StyledRun struct {
	Style Style  `json:"style"`
	Text  string `json:"text"`
	Raw   string `json:"-"`
}

// Page is a separator-delimited slice of a lesson. It never contains a
// separator token.
type Page struct {
	Tokens []Token `json:"tokens"`
}

// Empty reports whether the page has no tokens.
func (p Page) Empty() bool { return len(p.Tokens) == 0 }
