package caps

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sphinkydoc/internal/match"
	"git.home.luguber.info/inful/sphinkydoc/internal/templating"
)

func newClassifier(t *testing.T) *Classifier {
	t.Helper()
	env, err := templating.New(nil)
	require.NoError(t, err)
	return &Classifier{
		Env:      env,
		Matchers: DefaultMatchers(),
		Literals: match.Set{match.Literal("COPYING")},
		Policy:   PolicyBucket,
	}
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path) // #nosec G304 -- test helper
	require.NoError(t, err)
	return string(b)
}

func byBase(files []File) map[string]File {
	out := make(map[string]File, len(files))
	for _, f := range files {
		out[f.Base] = f
	}
	return out
}

func TestClassifyCaps_CopyingAndReadme(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	writeFiles(t, src, map[string]string{
		"COPYING":  "Permission is granted\nto copy.\n",
		"README":   "Some *prose* here.\n",
		"setup.py": "print('x')\n",
	})
	c := newClassifier(t)
	c.Matchers = Matchers{
		Included: match.Set{match.Literal("README")},
		About:    match.Set{match.Literal("COPYING")},
	}

	files, err := c.ClassifyCaps(context.Background(), src, out)
	require.NoError(t, err)
	require.Len(t, files, 2)

	got := byBase(files)
	copying := got["COPYING"]
	assert.Equal(t, "COPYING.rst", copying.Output)
	assert.Equal(t, CategoryAbout, copying.Category)
	assert.True(t, copying.Literal)
	assert.Equal(t, KindCapsFile, copying.Kind)
	assert.True(t, copying.Written)

	readme := got["README"]
	assert.Equal(t, "README.inc", readme.Output)
	assert.Equal(t, CategoryIncluded, readme.Category)
	assert.False(t, readme.Literal)

	literal := readFile(t, filepath.Join(out, "COPYING.rst"))
	assert.Equal(t, "Copying\n=======\n\n::\n\n    Permission is granted\n    to copy.\n", literal)

	prose := readFile(t, filepath.Join(out, "README.inc"))
	assert.Equal(t, "Readme\n======\n\nSome *prose* here.\n", prose)
	assert.NoFileExists(t, filepath.Join(out, "README.rst"))
	assert.NoFileExists(t, filepath.Join(out, "setup.py.rst"))

	cats := Group(files)
	assert.Equal(t, []string{"COPYING"}, cats.About)
	assert.NotContains(t, cats.About, "README")
	assert.Equal(t, []string{"README.inc"}, cats.Included)
}

func TestClassifyCaps_ExistingRSTKeepsName(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	writeFiles(t, src, map[string]string{"INSTALL.rst": "Run make.\n"})

	files, err := newClassifier(t).ClassifyCaps(context.Background(), src, out)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "INSTALL.rst", files[0].Output)
	assert.Equal(t, "INSTALL", files[0].Base)
	assert.Equal(t, CategoryTopic, files[0].Category)
	assert.Equal(t, "Install\n=======\n\nRun make.\n", readFile(t, filepath.Join(out, "INSTALL.rst")))
}

func TestClassifyCaps_MarkdownIsLiteralWithHeading(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	writeFiles(t, src, map[string]string{"CHANGES.md": "# Release history\n\n* one\n"})

	files, err := newClassifier(t).ClassifyCaps(context.Background(), src, out)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, files[0].Literal)
	assert.Equal(t, CategoryAbout, files[0].Category)
	assert.Equal(t, "CHANGES", files[0].Base)
	assert.Equal(t, "CHANGES.rst", files[0].Output)

	page := readFile(t, filepath.Join(out, "CHANGES.rst"))
	assert.Contains(t, page, "Release history\n===============\n")
	assert.Contains(t, page, "    # Release history")
}

func TestClassifyCaps_MarkdownReadmeIsIncluded(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	writeFiles(t, src, map[string]string{"README.md": "# Example\n\nHello.\n"})

	files, err := newClassifier(t).ClassifyCaps(context.Background(), src, out)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "README", files[0].Base)
	assert.Equal(t, "README.inc", files[0].Output)
	assert.Equal(t, "README.inc", files[0].Ref())
	assert.Equal(t, CategoryIncluded, files[0].Category)
	assert.Contains(t, readFile(t, filepath.Join(out, "README.inc")), "Example\n=======\n")
	assert.NoFileExists(t, filepath.Join(out, "README.md.inc"))
}

func TestClassifyCaps_SamePageNameKeepsFirst(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	writeFiles(t, src, map[string]string{
		"INSTALL":     "plain\n",
		"INSTALL.rst": "markup\n",
		"INSTALL.md":  "# markdown\n",
	})

	files, err := newClassifier(t).ClassifyCaps(context.Background(), src, out)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(src, "INSTALL"), files[0].Source)
	assert.Equal(t, []string{"INSTALL"}, Group(files).Topic)
	assert.Contains(t, readFile(t, filepath.Join(out, "INSTALL.rst")), "plain")
}

func TestClassifyCaps_Unclassified(t *testing.T) {
	src := t.TempDir()
	writeFiles(t, src, map[string]string{"MAKEFILE": "all:\n"})

	c := newClassifier(t)
	files, err := c.ClassifyCaps(context.Background(), src, t.TempDir())
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, CategoryUnclassified, files[0].Category)
	assert.Equal(t, []string{"MAKEFILE"}, Group(files).Unclassified)

	c.Policy = PolicyDrop
	files, err = c.ClassifyCaps(context.Background(), src, t.TempDir())
	require.NoError(t, err)
	require.Len(t, files, 1, "dropped files are still rendered")
	assert.Empty(t, files[0].Category)
	assert.Zero(t, Group(files).Len())
}

func TestClassifyCaps_SkipIncluded(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	writeFiles(t, src, map[string]string{"README": "hello\n", "COPYING": "text\n"})
	c := newClassifier(t)
	c.SkipIncluded = true

	files, err := c.ClassifyCaps(context.Background(), src, out)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "COPYING", files[0].Base)
	assert.NoFileExists(t, filepath.Join(out, "README.inc"))
}

func TestClassifyCaps_Idempotent(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	writeFiles(t, src, map[string]string{"COPYING": "v1\n", "AUTHORS": "me\n"})
	c := newClassifier(t)

	_, err := c.ClassifyCaps(context.Background(), src, out)
	require.NoError(t, err)
	first := readFile(t, filepath.Join(out, "COPYING.rst"))

	writeFiles(t, src, map[string]string{"COPYING": "v2\n"})
	files, err := c.ClassifyCaps(context.Background(), src, out)
	require.NoError(t, err)
	for _, f := range files {
		assert.False(t, f.Written, f.Base)
	}
	assert.Equal(t, first, readFile(t, filepath.Join(out, "COPYING.rst")))
}

func TestClassifyCaps_Overwrite(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	writeFiles(t, src, map[string]string{"COPYING": "v1\n"})
	c := newClassifier(t)
	c.Overwrite = true

	_, err := c.ClassifyCaps(context.Background(), src, out)
	require.NoError(t, err)
	files, err := c.ClassifyCaps(context.Background(), src, out)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, files[0].Written)

	writeFiles(t, src, map[string]string{"COPYING": "v2\n"})
	_, err = c.ClassifyCaps(context.Background(), src, out)
	require.NoError(t, err)
	assert.Contains(t, readFile(t, filepath.Join(out, "COPYING.rst")), "    v2")
}

func TestClassifyCaps_DryRun(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	writeFiles(t, src, map[string]string{"README": "hi\n"})
	c := newClassifier(t)
	c.DryRun = true

	files, err := c.ClassifyCaps(context.Background(), src, out)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, files[0].Written)
	assert.NoFileExists(t, filepath.Join(out, "README.inc"))
}

func TestClassifyCaps_MissingSource(t *testing.T) {
	_, err := newClassifier(t).ClassifyCaps(context.Background(), filepath.Join(t.TempDir(), "nope"), t.TempDir())
	require.ErrorIs(t, err, ErrListSource)
}

func TestClassifyCaps_RequiresEnvironment(t *testing.T) {
	_, err := (&Classifier{}).ClassifyCaps(context.Background(), t.TempDir(), t.TempDir())
	require.ErrorIs(t, err, ErrNoEnvironment)
}

func TestMarkdownTitle(t *testing.T) {
	assert.Equal(t, "Hello world", markdownTitle([]byte("intro\n\n## Hello *world*\n\n# Later\n")))
	assert.Equal(t, "Setext", markdownTitle([]byte("Setext\n======\n")))
	assert.Empty(t, markdownTitle([]byte("no heading here\n")))
}
