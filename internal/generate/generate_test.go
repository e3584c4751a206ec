package generate

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sphinkydoc/internal/caps"
	"git.home.luguber.info/inful/sphinkydoc/internal/pysource"
	"git.home.luguber.info/inful/sphinkydoc/internal/templating"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}
}

func read(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path) // #nosec G304 -- test helper
	require.NoError(t, err)
	return string(b)
}

// newTestGenerator returns a generator over a source tree holding pkg
// (submodules a, b with a syntax error, and _private) plus the output dir.
func newTestGenerator(t *testing.T, opts Options) (*Generator, string, *bytes.Buffer) {
	t.Helper()
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"pkg/__init__.py": `"""Example package."""

class PkgError(Exception):
    pass
`,
		"pkg/a.py": `"""Module a."""

VALUE = 1


def helper():
    pass


class Thing(object):
    pass
`,
		"pkg/b.py":        "def broken(:\n",
		"pkg/_private.py": "X = 1\n",
		"pkg/c/__init__.py": `from .d import run

__all__ = ["run"]
`,
		"pkg/c/d.py": "def run():\n    pass\n",
	})

	env, err := templating.New(nil)
	require.NoError(t, err)
	var logs bytes.Buffer
	out := t.TempDir()
	g := New(env, pysource.NewResolver([]string{src}, nil), out, opts)
	g.Logger = slog.New(slog.NewTextHandler(&logs, nil))
	return g, out, &logs
}

func TestModuleDoc(t *testing.T) {
	g, out, _ := newTestGenerator(t, Options{})

	path, err := g.ModuleDoc(context.Background(), "pkg.a")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "pkg.a.rst"), path)

	page := read(t, path)
	assert.Contains(t, page, ".. automodule:: pkg.a")
	assert.Contains(t, page, ".. autoclass:: Thing")
	assert.Contains(t, page, ".. autofunction:: helper")
	assert.Contains(t, page, ".. autodata:: VALUE")
	assert.Contains(t, page, ":mod:`pkg<pkg>`. :mod:`a<pkg.a>`")
}

func TestModuleDocUnresolvable(t *testing.T) {
	g, _, _ := newTestGenerator(t, Options{})

	_, err := g.ModuleDoc(context.Background(), "nosuch")
	require.Error(t, err)

	var ge *GenerationError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, "nosuch", ge.Subject)
	assert.Equal(t, KindModule, ge.Kind)
	assert.ErrorIs(t, err, pysource.ErrModuleNotFound)
}

func TestRecursiveModuleDocContinuesPastBrokenSubmodule(t *testing.T) {
	g, out, logs := newTestGenerator(t, Options{})

	paths, err := g.RecursiveModuleDoc(context.Background(), "pkg")
	require.NoError(t, err)

	var names []string
	for _, p := range paths {
		names = append(names, filepath.Base(p))
	}
	assert.Equal(t, []string{"pkg.rst", "pkg.a.rst", "pkg.c.rst"}, names)
	assert.NoFileExists(t, filepath.Join(out, "pkg.c.d.rst"), "d is not listed in pkg.c.__all__")
	assert.NoFileExists(t, filepath.Join(out, "pkg.b.rst"))
	assert.NoFileExists(t, filepath.Join(out, "pkg._private.rst"))
	assert.Contains(t, logs.String(), "module=pkg.b")

	root := read(t, filepath.Join(out, "pkg.rst"))
	assert.Contains(t, root, "   pkg.a")
	assert.Contains(t, root, ".. autoexception:: PkgError")
}

func TestRecursiveModuleDocRootFailure(t *testing.T) {
	g, _, _ := newTestGenerator(t, Options{})
	paths, err := g.RecursiveModuleDoc(context.Background(), "pkg.b")
	require.Error(t, err)
	assert.Empty(t, paths)
	assert.ErrorIs(t, err, pysource.ErrSyntax)
}

func TestModuleDocIdempotentWithoutOverwrite(t *testing.T) {
	g, out, _ := newTestGenerator(t, Options{})
	ctx := context.Background()

	path, err := g.ModuleDoc(ctx, "pkg.a")
	require.NoError(t, err)
	first := read(t, path)

	require.NoError(t, os.WriteFile(path, []byte("hand edited\n"), 0o600))
	_, err = g.ModuleDoc(ctx, "pkg.a")
	require.NoError(t, err)
	assert.Equal(t, "hand edited\n", read(t, filepath.Join(out, "pkg.a.rst")))

	g.Options.Overwrite = true
	_, err = g.ModuleDoc(ctx, "pkg.a")
	require.NoError(t, err)
	assert.Equal(t, first, read(t, path))
}

func TestModuleDocDryRun(t *testing.T) {
	g, out, _ := newTestGenerator(t, Options{DryRun: true})
	_, err := g.ModuleDoc(context.Background(), "pkg.a")
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(out, "pkg.a.rst"))
}

func TestIndexDoc(t *testing.T) {
	g, out, _ := newTestGenerator(t, Options{})
	cats := caps.Categories{
		Included: []string{"README.inc"},
		About:    []string{"COPYING"},
		Topic:    []string{"INSTALL"},
	}

	path, err := g.IndexDoc(context.Background(), "Example", cats, []string{"pkg"}, []string{"bin/tool.py"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "index.rst"), path)

	page := read(t, path)
	assert.Contains(t, page, "=======\nExample\n=======")
	assert.Contains(t, page, ".. include:: README.inc")
	assert.Contains(t, page, "   INSTALL")
	assert.Contains(t, page, "   pkg")
	assert.Contains(t, page, "   tool.py")
	assert.Contains(t, page, "About\n-----")
	assert.NotContains(t, page, "Other\n-----")
}

func TestConfigDoc(t *testing.T) {
	g, _, _ := newTestGenerator(t, Options{})

	path, err := g.ConfigDoc(context.Background(), Conf{
		Project:   "Example",
		Copyright: "2026, Jane",
		Version:   "1.2",
		Release:   "1.2.3",
		SysPath:   []string{"/src/example"},
	})
	require.NoError(t, err)

	conf := read(t, path)
	assert.Contains(t, conf, "project = 'Example'")
	assert.Contains(t, conf, "release = '1.2.3'")
	assert.Contains(t, conf, "sys.path.insert(0, '/src/example')")
	assert.Contains(t, conf, "master_doc = 'index'")
	assert.Contains(t, conf, "'sphinx.ext.autodoc'")

	require.NoError(t, pysource.CheckConf(context.Background(), path, pysource.RequiredConfSettings))
}
