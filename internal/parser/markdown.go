package parser

import (
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/dgallion1/docoutline/internal/doctree"
)

// MarkdownParser handles Markdown files. The text passes through with
// line endings normalized; the title is the first level-one heading, or
// the filename.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*doctree.Source, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	src := []byte(strings.ReplaceAll(string(raw), "\r\n", "\n"))

	out := &doctree.Source{Title: stem(filename), Text: string(src)}
	doc := goldmark.New().Parser().Parse(text.NewReader(src))
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok && h.Level == 1 {
			if t := strings.TrimSpace(inlineText(h, src)); t != "" {
				out.Title = t
			}
			break
		}
	}
	return out, nil
}

// inlineText gets the text content of a goldmark inline subtree.
func inlineText(n ast.Node, src []byte) string {
	var sb strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			sb.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
			continue
		}
		sb.WriteString(inlineText(c, src))
	}
	return sb.String()
}
