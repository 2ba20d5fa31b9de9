package importer

import (
	"bytes"
	"io"
	"net/url"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/dgallion1/lessonpage/internal/markup"
)

// MarkdownImporter handles standard Markdown files using goldmark.
type MarkdownImporter struct{}

func (p *MarkdownImporter) Import(r io.Reader, filename string) (Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return Document{}, err
	}

	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(src))

	doc := Document{Title: baseTitle(filename)}
	var b builder
	titled := false
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok && h.Level == 1 && !titled {
			doc.Title = oneLine(inlineMarkdown(h, src))
			titled = true
		}
		convertMarkdownBlock(&b, n, src)
	}
	doc.Markup = b.String()
	return doc, nil
}

func convertMarkdownBlock(b *builder, n ast.Node, src []byte) {
	switch node := n.(type) {
	case *ast.Heading:
		b.heading(node.Level, inlineMarkdown(node, src))
	case *ast.ThematicBreak:
		b.pageBreak()
	case *ast.Paragraph, *ast.TextBlock:
		line := oneLine(inlineMarkdown(node, src))
		if u, ok := strings.CutPrefix(line, markup.VideoPrefix); ok && isVideoURL(u) {
			b.video(u)
			return
		}
		b.paragraph(line)
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		lines := node.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			b.paragraph(string(line.Value(src)))
		}
	case *ast.HTMLBlock:
		// Raw HTML has no lesson equivalent.
	default:
		// Lists, list items and blockquotes flatten to their children.
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			convertMarkdownBlock(b, c, src)
		}
	}
}

// inlineMarkdown renders inline children back to lesson inline syntax.
func inlineMarkdown(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch node := c.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(src))
			if node.HardLineBreak() || node.SoftLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(node.Value)
		case *ast.Emphasis:
			inner := strings.TrimSpace(inlineMarkdown(node, src))
			if inner == "" {
				continue
			}
			marker := "*"
			if node.Level >= 2 {
				marker = "**"
			}
			buf.WriteString(marker + inner + marker)
		case *ast.AutoLink:
			buf.Write(node.URL(src))
		default:
			// Links, code spans and images keep their text.
			buf.WriteString(inlineMarkdown(node, src))
		}
	}
	return buf.String()
}

// isVideoURL reports whether s is a single absolute http(s) URL, which is
// what a "#video" directive written in Markdown must carry.
func isVideoURL(s string) bool {
	if strings.ContainsAny(s, " \t") {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
