// Package render turns lesson markup into displayable pages.
//
// Render is a pure function of its input: it holds no cache, and paragraph
// formatting happens on every call rather than at tokenize time.
package render

import (
	"github.com/dgallion1/lessonpage/internal/lesson"
	"github.com/dgallion1/lessonpage/internal/markup"
	"github.com/dgallion1/lessonpage/internal/paginate"
)

// VideoAspectRatio is the embed hint attached to every video block.
const VideoAspectRatio = "16:9"

// BlockKind mirrors lesson.TokenType for rendered output.
type BlockKind string

const (
	BlockTitle     BlockKind = "title"
	BlockSubtitle  BlockKind = "subtitle"
	BlockParagraph BlockKind = "paragraph"
	BlockVideo     BlockKind = "video"
	BlockBreak     BlockKind = "break"
)

// Block is one displayable element of a page.
type Block struct {
	Kind        BlockKind          `json:"kind"`
	Text        string             `json:"text,omitempty"`
	Runs        []lesson.StyledRun `json:"runs,omitempty"`
	URL         string             `json:"url,omitempty"`
	AspectRatio string             `json:"aspect_ratio,omitempty"`
}

// Page is a rendered lesson page. An empty page has no blocks.
type Page struct {
	Index  int     `json:"index"`
	Blocks []Block `json:"blocks"`
}

// Options controls how text is split and tokenized.
type Options struct {
	Marker    paginate.Marker
	Tokenizer *markup.Tokenizer
}

// Render tokenizes, paginates and formats lesson text with default options.
// It always returns at least one page.
func Render(text string) []Page {
	return RenderWith(text, Options{})
}

// RenderWith is Render with explicit options.
func RenderWith(text string, opts Options) []Page {
	src := paginate.PaginateText(text, opts.Marker, opts.Tokenizer)
	pages := make([]Page, len(src))
	for i, p := range src {
		pages[i] = RenderPage(i, p)
	}
	return pages
}

// RenderPage converts a tokenized page into blocks.
func RenderPage(index int, p lesson.Page) Page {
	out := Page{Index: index, Blocks: make([]Block, 0, len(p.Tokens))}
	for _, tok := range p.Tokens {
		out.Blocks = append(out.Blocks, renderToken(tok))
	}
	return out
}

func renderToken(tok lesson.Token) Block {
	switch tok.Type {
	case lesson.TokenTitle:
		return Block{Kind: BlockTitle, Text: tok.Text}
	case lesson.TokenSubtitle:
		return Block{Kind: BlockSubtitle, Text: tok.Text}
	case lesson.TokenVideo:
		return Block{Kind: BlockVideo, URL: tok.URL, AspectRatio: VideoAspectRatio}
	case lesson.TokenParagraph:
		return Block{Kind: BlockParagraph, Text: tok.Text, Runs: markup.FormatInline(tok.Text)}
	default:
		return Block{Kind: BlockBreak}
	}
}
