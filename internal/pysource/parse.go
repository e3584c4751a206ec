package pysource

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// parsed is a syntax tree together with the bytes it was built from.
type parsed struct {
	tree    *sitter.Tree
	content []byte
}

func (p *parsed) root() *sitter.Node { return p.tree.RootNode() }

func (p *parsed) close() { p.tree.Close() }

func (p *parsed) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return string(p.content[n.StartByte():n.EndByte()])
}

// parseSource builds a tree for content. sitter.Parser is not safe for
// concurrent use, so every call gets its own.
func parseSource(ctx context.Context, content []byte) (*parsed, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse python: %w", err)
	}
	return &parsed{tree: tree, content: content}, nil
}

// SyntaxError locates the first parse error in a tree.
type SyntaxError struct {
	Line   int
	Column int
	Near   string
}

func (e *SyntaxError) Error() string {
	if e.Near != "" {
		return fmt.Sprintf("%v at line %d, column %d near %q", ErrSyntax, e.Line, e.Column, e.Near)
	}
	return fmt.Sprintf("%v at line %d, column %d", ErrSyntax, e.Line, e.Column)
}

func (e *SyntaxError) Unwrap() error { return ErrSyntax }

// syntaxError returns nil when the tree has no error or missing nodes.
func (p *parsed) syntaxError() error {
	root := p.root()
	if !root.HasError() {
		return nil
	}
	bad := firstError(root)
	if bad == nil {
		bad = root
	}
	near := strings.TrimSpace(p.text(bad))
	if i := strings.IndexByte(near, '\n'); i >= 0 {
		near = near[:i]
	}
	if len(near) > 40 {
		near = near[:40]
	}
	pt := bad.StartPoint()
	return &SyntaxError{Line: int(pt.Row) + 1, Column: int(pt.Column) + 1, Near: near}
}

func firstError(n *sitter.Node) *sitter.Node {
	if n.Type() == "ERROR" || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil || !child.HasError() && !child.IsMissing() {
			continue
		}
		if found := firstError(child); found != nil {
			return found
		}
	}
	return nil
}

// nestedBlocks returns the blocks nested in compound statements that
// execute at the enclosing level (if/try/with and their clauses).
func nestedBlocks(n *sitter.Node) []*sitter.Node {
	var blocks []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "block":
			blocks = append(blocks, child)
		case "elif_clause", "else_clause", "except_clause", "except_group_clause", "finally_clause":
			blocks = append(blocks, nestedBlocks(child)...)
		}
	}
	return blocks
}

// stringValue evaluates a string or concatenated string literal. ok is false
// for anything else, including f-strings with interpolations.
func (p *parsed) stringValue(n *sitter.Node) (string, bool) {
	if n == nil {
		return "", false
	}
	switch n.Type() {
	case "string":
		return decodeStringLiteral(p.text(n))
	case "concatenated_string":
		var b strings.Builder
		for i := 0; i < int(n.NamedChildCount()); i++ {
			s, ok := p.stringValue(n.NamedChild(i))
			if !ok {
				return "", false
			}
			b.WriteString(s)
		}
		return b.String(), true
	case "parenthesized_expression":
		if n.NamedChildCount() == 1 {
			return p.stringValue(n.NamedChild(0))
		}
	}
	return "", false
}

// decodeStringLiteral strips prefix and quotes from a Python string literal
// and resolves common escapes.
func decodeStringLiteral(raw string) (string, bool) {
	i := 0
	for i < len(raw) && strings.ContainsRune("rRuUbBfF", rune(raw[i])) {
		i++
	}
	prefix := strings.ToLower(raw[:i])
	body := raw[i:]
	if strings.Contains(prefix, "f") && strings.Contains(body, "{") {
		return "", false
	}

	var quote string
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(body, q) && strings.HasSuffix(body, q) && len(body) >= 2*len(q) {
			quote = q
			break
		}
	}
	if quote == "" {
		return "", false
	}
	body = body[len(quote) : len(body)-len(quote)]
	if strings.Contains(prefix, "r") {
		return body, true
	}
	return unescape(body), true
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '\\', '\'', '"':
			b.WriteByte(s[i])
		case '\n':
			// line continuation
		case 'x':
			if i+2 < len(s) {
				if v, err := strconv.ParseUint(s[i+1:i+3], 16, 8); err == nil {
					b.WriteByte(byte(v))
					i += 2
					continue
				}
			}
			b.WriteString(`\x`)
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// stringList evaluates a list, tuple or set of string literals.
func (p *parsed) stringList(n *sitter.Node) ([]string, bool) {
	if n == nil {
		return nil, false
	}
	switch n.Type() {
	case "list", "tuple", "set":
	case "parenthesized_expression":
		if n.NamedChildCount() == 1 {
			inner := n.NamedChild(0)
			if s, ok := p.stringValue(inner); ok {
				return []string{s}, true
			}
			return p.stringList(inner)
		}
		return nil, false
	default:
		return nil, false
	}
	out := make([]string, 0, n.NamedChildCount())
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == "comment" {
			continue
		}
		s, ok := p.stringValue(child)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
