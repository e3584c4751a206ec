package caps

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// markdownTitle returns the text of the first heading in a Markdown body,
// or "" when there is none.
func markdownTitle(body []byte) string {
	doc := goldmark.New().Parser().Parse(text.NewReader(body))

	var title string
	_ = gmast.Walk(doc, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		h, ok := n.(*gmast.Heading)
		if !ok {
			return gmast.WalkContinue, nil
		}
		title = strings.TrimSpace(string(headingText(h, body)))
		return gmast.WalkStop, nil
	})
	return title
}

func headingText(n gmast.Node, source []byte) []byte {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *gmast.Text:
			buf.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *gmast.String:
			buf.Write(t.Value)
		default:
			buf.Write(headingText(c, source))
		}
	}
	return buf.Bytes()
}
