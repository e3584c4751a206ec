package templating

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIndent(t *testing.T) {
	assert.Equal(t, "  a\n\n  b", Indent(2, "a\n\nb"))
	assert.Equal(t, "a", Indent(0, "a"))
	assert.Empty(t, Indent(4, ""))
}

func TestUnderline(t *testing.T) {
	assert.Equal(t, "====", Underline("=", "pkg1"))
	assert.Equal(t, "----", Underline("-", "日本"), "wide runes count as two columns")
	assert.Empty(t, Underline("=", ""))
	assert.Equal(t, "===\nabc\n===", Overline("=", "abc"))
	assert.Equal(t, "abc\n~~~", Title("~", "abc"))
}

func TestModuleSplit(t *testing.T) {
	assert.Equal(t, ":mod:`pkg<pkg>`", ModuleSplit("pkg"))
	assert.Equal(t, ":mod:`pkg<pkg>`. :mod:`sub<pkg.sub>`. :mod:`leaf<pkg.sub.leaf>`", ModuleSplit("pkg.sub.leaf"))
}

func TestLiteralBlock(t *testing.T) {
	assert.Equal(t, "::\n\n    line one\n\n    line two", LiteralBlock("line one\n\nline two\n"))
	assert.Empty(t, LiteralBlock("  \n"))
}
