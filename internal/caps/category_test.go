package caps

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sphinkydoc/internal/match"
)

func TestIsCapsName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"COPYING", true},
		{"COPYING.LESSER", true},
		{"README.rst", true},
		{"README.md", true},
		{"Readme", false},
		{"README.tar.gz", false},
		{"setup.py", false},
		{"NEWS2", false},
		{"", false},
		{".README", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCapsName(tt.name))
		})
	}
}

func TestCategorizePriority(t *testing.T) {
	m := Matchers{
		Included: match.Set{match.Literal("README")},
		About:    match.Set{match.MustParse("re:A.*")},
		Topic:    match.Set{match.MustParse("re:.*S")},
	}

	got := Categorize([]string{"ABOUTS", "README", "NEWS", "AUTHORS", "X"}, m, PolicyBucket, nil)

	assert.Equal(t, []string{"README"}, got.Included)
	assert.Equal(t, []string{"ABOUTS", "AUTHORS"}, got.About, "about wins over topic and keeps order")
	assert.Equal(t, []string{"NEWS"}, got.Topic)
	assert.Equal(t, []string{"X"}, got.Unclassified)
	assert.Equal(t, 5, got.Len())
}

func TestCategorizeDropPolicy(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	got := Categorize([]string{"COPYING", "WEIRD"}, DefaultMatchers(), PolicyDrop, logger)

	assert.Equal(t, []string{"COPYING"}, got.About)
	assert.Empty(t, got.Unclassified)
	assert.Equal(t, 1, got.Len())
	assert.Contains(t, buf.String(), "name=WEIRD")
}

func TestCategorizeEmptyMatchers(t *testing.T) {
	got := Categorize([]string{"README"}, Matchers{}, PolicyBucket, nil)
	assert.Equal(t, []string{"README"}, got.Unclassified)
}

func TestDefaultMatchers(t *testing.T) {
	m := DefaultMatchers()
	tests := map[string]Category{
		"README":         CategoryIncluded,
		"README.md":      CategoryIncluded,
		"COPYING":        CategoryAbout,
		"COPYING.LESSER": CategoryAbout,
		"LICENSE":        CategoryAbout,
		"AUTHORS":        CategoryAbout,
		"INSTALL":        CategoryTopic,
		"TODO":           CategoryTopic,
		"MAKEFILE":       CategoryUnclassified,
	}
	for name, want := range tests {
		assert.Equal(t, want, m.Classify(name), name)
	}
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyBucket, p)

	p, err = ParsePolicy("drop")
	require.NoError(t, err)
	assert.Equal(t, PolicyDrop, p)

	_, err = ParsePolicy("hide")
	require.Error(t, err)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Copying", Label("COPYING"))
	assert.Equal(t, "Copying Lesser", Label("COPYING.LESSER"))
	assert.Equal(t, "Release Notes", Label("RELEASE_NOTES"))
}
