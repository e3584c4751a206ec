package templating

import (
	"fmt"
	"strings"

	"golang.org/x/text/width"
)

func init() {
	RegisterExtension(ExtensionFunc{ExtensionName: "rst", Fn: registerRST})
}

func registerRST(env *Environment) error {
	helpers := map[string]any{
		"indent":        Indent,
		"underline":     Underline,
		"overline":      Overline,
		"title":         Title,
		"module_split":  ModuleSplit,
		"literal_block": LiteralBlock,
	}
	for name, fn := range helpers {
		if err := env.DefineHelper(name, fn); err != nil {
			return err
		}
	}
	return nil
}

// Indent prefixes every non-empty line of text with n spaces.
func Indent(n int, text string) string {
	if n <= 0 || text == "" {
		return text
	}
	pad := strings.Repeat(" ", n)
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			lines[i] = pad + line
		}
	}
	return strings.Join(lines, "\n")
}

// Underline returns a section adornment as wide as text. Wide east asian
// characters count as two columns.
func Underline(char, text string) string {
	if char == "" || text == "" {
		return ""
	}
	return strings.Repeat(char, columns(text))
}

// Overline returns text framed above and below by char.
func Overline(char, text string) string {
	line := Underline(char, text)
	return line + "\n" + text + "\n" + line
}

// Title returns text followed by its underline.
func Title(char, text string) string {
	return text + "\n" + Underline(char, text)
}

// ModuleSplit renders a dotted module name as cross-referenced parts, so
// "pkg.sub" becomes ":mod:`pkg<pkg>`. :mod:`sub<pkg.sub>`".
func ModuleSplit(name string) string {
	parts := strings.Split(name, ".")
	refs := make([]string, len(parts))
	for i, part := range parts {
		refs[i] = fmt.Sprintf(":mod:`%s<%s>`", part, strings.Join(parts[:i+1], "."))
	}
	return strings.Join(refs, ". ")
}

// LiteralBlock wraps text as a reStructuredText literal block.
func LiteralBlock(text string) string {
	text = strings.TrimRight(text, "\n")
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return "::\n\n" + Indent(4, text)
}

func columns(s string) int {
	n := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}
