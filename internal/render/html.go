package render

import (
	"fmt"
	"io"

	"github.com/dgallion1/lessonpage/internal/lesson"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// WriteHTML writes a page as an HTML fragment wrapped in
// <section class="lesson-page">.
func WriteHTML(w io.Writer, p Page) error {
	section := element(atom.Section, "class", "lesson-page", "data-page", fmt.Sprint(p.Index))
	for _, b := range p.Blocks {
		section.AppendChild(blockNode(b))
	}
	if err := html.Render(w, section); err != nil {
		return fmt.Errorf("render page %d: %w", p.Index, err)
	}
	return nil
}

func blockNode(b Block) *html.Node {
	switch b.Kind {
	case BlockTitle:
		n := element(atom.H1)
		n.AppendChild(text(b.Text))
		return n
	case BlockSubtitle:
		n := element(atom.H2)
		n.AppendChild(text(b.Text))
		return n
	case BlockParagraph:
		n := element(atom.P)
		for _, r := range b.Runs {
			n.AppendChild(runNode(r))
		}
		return n
	case BlockVideo:
		// 56.25% bottom padding keeps the 16:9 box.
		wrap := element(atom.Div,
			"class", "video-embed",
			"data-aspect-ratio", b.AspectRatio,
			"style", "position:relative;width:100%;padding-bottom:56.25%")
		frame := element(atom.Iframe,
			"src", b.URL,
			"style", "position:absolute;top:0;left:0;width:100%;height:100%;border:0",
			"allowfullscreen", "")
		wrap.AppendChild(frame)
		return wrap
	default:
		return element(atom.Br)
	}
}

func runNode(r lesson.StyledRun) *html.Node {
	switch r.Style {
	case lesson.StyleBold:
		n := element(atom.Strong)
		n.AppendChild(text(r.Text))
		return n
	case lesson.StyleItalic:
		n := element(atom.Em)
		n.AppendChild(text(r.Text))
		return n
	default:
		return text(r.Text)
	}
}

func element(a atom.Atom, attrs ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}
