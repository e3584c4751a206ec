package templating

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	RegisterExtension(ExtensionFunc{ExtensionName: "test-greet-a", Fn: func(env *Environment) error {
		return env.DefineHelper("greet", func(who string) string { return "hello " + who })
	}})
	RegisterExtension(ExtensionFunc{ExtensionName: "test-greet-b", Fn: func(env *Environment) error {
		return env.DefineHelper("greet", func(who string) string { return "hi " + who })
	}})
	RegisterExtension(ExtensionFunc{ExtensionName: "test-counter", Fn: func(env *Environment) error {
		n, _ := env.global("counter")
		count, _ := n.(int)
		env.SetGlobal("counter", count+1)
		return nil
	}})
	RegisterExtension(ExtensionFunc{ExtensionName: "test-broken", Fn: func(*Environment) error {
		return errors.New("boom")
	}})
}

func TestRenderFromDefaults(t *testing.T) {
	env, err := New(nil)
	require.NoError(t, err)

	out, err := env.Render("sphinkydoc/script.rst", Context{
		"script_name": "run.py",
		"script_path": "/src/run.py",
		"help":        "Usage: run.py [options]\n\n  -h  show help",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "run.py\n======\n")
	assert.Contains(t, out, "::\n\n    Usage: run.py [options]\n\n      -h  show help")
}

func TestFirstFoundWins(t *testing.T) {
	first := fstest.MapFS{"page.rst": {Data: []byte("first")}}
	second := fstest.MapFS{
		"page.rst":  {Data: []byte("second")},
		"other.rst": {Data: []byte("only second")},
	}

	env, err := New(nil, WithoutDefaults(), WithSourceFS("a", first), WithSourceFS("b", second))
	require.NoError(t, err)

	out, err := env.Render("page.rst", nil)
	require.NoError(t, err)
	assert.Equal(t, "first", out)

	out, err = env.Render("other.rst", nil)
	require.NoError(t, err)
	assert.Equal(t, "only second", out)
}

func TestDirectoryOverrideComesAfterDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sphinkydoc"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sphinkydoc", "extra.rst"), []byte("{{ upper .name }}"), 0o600))

	env, err := New([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, []string{BuiltinSource, dir}, env.Sources())

	out, err := env.Render("sphinkydoc/extra.rst", Context{"name": "pkg"})
	require.NoError(t, err)
	assert.Equal(t, "PKG", out)
}

func TestMissingTemplate(t *testing.T) {
	env, err := New(nil)
	require.NoError(t, err)

	_, err = env.Render("sphinkydoc/nope.rst", nil)
	require.ErrorIs(t, err, ErrTemplateNotFound)
	assert.False(t, env.Has("sphinkydoc/nope.rst"))
	assert.True(t, env.Has("sphinkydoc/module.rst"))
}

func TestMissingContextKeyIsRenderError(t *testing.T) {
	env, err := New(nil)
	require.NoError(t, err)

	_, err = env.Render("sphinkydoc/script.rst", Context{"script_name": "x"})
	require.Error(t, err)

	var rerr *RenderError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "sphinkydoc/script.rst", rerr.Template)
}

func TestSyntaxErrorIsRenderError(t *testing.T) {
	src := fstest.MapFS{"bad.rst": {Data: []byte("{{ if }")}}
	env, err := New(nil, WithoutDefaults(), WithSourceFS("bad", src))
	require.NoError(t, err)

	_, err = env.Render("bad.rst", nil)
	var rerr *RenderError
	require.ErrorAs(t, err, &rerr)
}

func TestManifestExtensionsAndGlobals(t *testing.T) {
	a := fstest.MapFS{
		ManifestName: {Data: []byte("extensions: [test-greet-a, test-counter, test-counter]\nglobals:\n  owner: a\n")},
		"greet.txt":  {Data: []byte("{{ greet .who }} from {{ .owner }}")},
		"fan.txt":    {Data: []byte(`{{ join "; " (invoke "greet" .who) }}`)},
	}
	b := fstest.MapFS{
		ManifestName: {Data: []byte("extensions: [test-greet-b, test-counter]\nglobals:\n  owner: b\n")},
	}

	env, err := New(nil, WithoutDefaults(), WithSourceFS("a", a), WithSourceFS("b", b))
	require.NoError(t, err)

	counter, ok := env.global("counter")
	require.True(t, ok)
	assert.Equal(t, 2, counter, "extension registers once per source")

	out, err := env.Render("greet.txt", Context{"who": "bob"})
	require.NoError(t, err)
	assert.Equal(t, "hi bob from b", out, "latest definition and global win")

	results := env.Invoke("greet", "ann")
	require.Len(t, results, 2)
	assert.Equal(t, HookResult{Source: "a", Value: "hello ann"}, results[0])
	assert.Equal(t, HookResult{Source: "b", Value: "hi ann"}, results[1])

	out, err = env.Render("fan.txt", Context{"who": "cy"})
	require.NoError(t, err)
	assert.Equal(t, "hello cy; hi cy", out)
}

func TestContextOverridesGlobals(t *testing.T) {
	src := fstest.MapFS{
		ManifestName: {Data: []byte("globals:\n  owner: manifest\n")},
		"t.txt":      {Data: []byte("{{ .owner }}")},
	}
	env, err := New(nil, WithoutDefaults(), WithSourceFS("s", src))
	require.NoError(t, err)

	out, err := env.Render("t.txt", Context{"owner": "ctx"})
	require.NoError(t, err)
	assert.Equal(t, "ctx", out)
}

func TestUnknownExtensionFailsCreation(t *testing.T) {
	src := fstest.MapFS{ManifestName: {Data: []byte("extensions: [does-not-exist]\n")}}
	_, err := New(nil, WithoutDefaults(), WithSourceFS("s", src))
	require.ErrorIs(t, err, ErrUnknownExtension)
}

func TestBrokenExtensionFailsCreation(t *testing.T) {
	src := fstest.MapFS{ManifestName: {Data: []byte("extensions: [test-broken]\n")}}
	_, err := New(nil, WithoutDefaults(), WithSourceFS("s", src))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestInvalidManifest(t *testing.T) {
	src := fstest.MapFS{ManifestName: {Data: []byte("extensions: {")}}
	_, err := New(nil, WithoutDefaults(), WithSourceFS("s", src))
	require.ErrorIs(t, err, ErrInvalidManifest)
}

func TestMissingTemplateDir(t *testing.T) {
	_, err := New([]string{filepath.Join(t.TempDir(), "missing")})
	require.Error(t, err)
}

func TestDefineHelperValidation(t *testing.T) {
	env, err := New(nil, WithoutDefaults())
	require.NoError(t, err)

	require.Error(t, env.DefineHelper("include", func() string { return "" }))
	require.Error(t, env.DefineHelper("bad", "not a func"))
	require.Error(t, env.DefineHelper("noresult", func() {}))
	require.NoError(t, env.DefineHelper("ok", func() (string, error) { return "", nil }))
}

func TestDefineHelperInvalidatesCache(t *testing.T) {
	src := fstest.MapFS{"t.txt": {Data: []byte("{{ shout }}")}}
	env, err := New(nil, WithoutDefaults(), WithSourceFS("s", src))
	require.NoError(t, err)
	require.NoError(t, env.DefineHelper("shout", func() string { return "one" }))

	out, err := env.Render("t.txt", nil)
	require.NoError(t, err)
	assert.Equal(t, "one", out)

	require.NoError(t, env.DefineHelper("shout", func() string { return "two" }))
	out, err = env.Render("t.txt", nil)
	require.NoError(t, err)
	assert.Equal(t, "two", out)
}

func TestIncludeHelper(t *testing.T) {
	src := fstest.MapFS{
		"outer.txt":   {Data: []byte(`[{{ include "inner.txt" . }}]`)},
		"inner.txt":   {Data: []byte(`{{ .name }}`)},
		"missing.txt": {Data: []byte(`{{ include "nope.txt" }}`)},
	}
	env, err := New(nil, WithoutDefaults(), WithSourceFS("s", src))
	require.NoError(t, err)

	out, err := env.Render("outer.txt", Context{"name": "x"})
	require.NoError(t, err)
	assert.Equal(t, "[x]", out)

	_, err = env.Render("missing.txt", nil)
	require.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestRenderFile(t *testing.T) {
	env, err := New(nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "run.py.rst.template")
	require.NoError(t, os.WriteFile(path, []byte("custom {{ .script_name }}"), 0o600))

	out, err := env.RenderFile(path, Context{"script_name": "run.py"})
	require.NoError(t, err)
	assert.Equal(t, "custom run.py", out)

	_, err = env.RenderFile(path+".missing", nil)
	require.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestConcurrentRender(t *testing.T) {
	env, err := New(nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.Render("sphinkydoc/module.rst", Context{
				"module": "pkg", "fullname": "pkg", "doc": "",
				"modules": []string{"a"}, "exceptions": nil, "classes": nil,
				"functions": []string{"f"}, "datas": nil,
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestInvokeArgumentConversion(t *testing.T) {
	env, err := New(nil, WithoutDefaults())
	require.NoError(t, err)
	require.NoError(t, env.DefineHelper("double", func(n int64) int64 { return n * 2 }))
	require.NoError(t, env.DefineHelper("explode", func() (string, error) { panic("kaboom") }))

	res := env.Invoke("double", 21)
	require.Len(t, res, 1)
	require.NoError(t, res[0].Err)
	assert.Equal(t, int64(42), res[0].Value)

	res = env.Invoke("double", "x")
	require.Error(t, res[0].Err)

	res = env.Invoke("explode")
	require.Error(t, res[0].Err)
	assert.Contains(t, res[0].Err.Error(), "kaboom")

	assert.Empty(t, env.Invoke("undefined"))
}
