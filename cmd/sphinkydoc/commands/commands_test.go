package commands

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sphinkydoc/internal/config"
	dberrors "git.home.luguber.info/inful/sphinkydoc/internal/foundation/errors"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}
}

// newProject creates a project in a temp dir and makes it the working
// directory.
func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"pkg/__init__.py": "\"\"\"Example package.\"\"\"\n\n__version__ = \"0.3.0\"\n",
		"pkg/core.py":     "def run():\n    pass\n",
		"tool.sh":         "#!/bin/sh\nwhile getopts \"v\" opt; do\n  case $opt in\n    v) VERBOSE=1 ;;\n  esac\ndone\n",
		"README.md":       "# Example\n\nHello.\n",
		"COPYING":         "All rights reserved.\n",
		"INSTALL":         "pip install .\n",
	})
	t.Chdir(root)
	return root
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestExecute_Version(t *testing.T) {
	code, stdout, _ := run(t, "--version")
	assert.Equal(t, dberrors.ExitOK, code)
	assert.Contains(t, stdout, "sphinkydoc")
}

func TestExecute_UsageErrors(t *testing.T) {
	tests := [][]string{
		{},
		{"frobnicate"},
		{"build", "--no-such-flag"},
		{"build", "--jobs", "many"},
	}
	for _, args := range tests {
		code, _, stderr := run(t, args...)
		assert.Equal(t, dberrors.ExitUsage, code, "args %v", args)
		assert.NotEmpty(t, stderr)
	}
}

func TestExecute_InvalidOverride(t *testing.T) {
	newProject(t)
	code, _, _ := run(t, "build", "--dry-run", "--jobs", "1000", "pkg")
	assert.Equal(t, dberrors.ExitUsage, code)

	code, _, _ = run(t, "build", "--dry-run", "not-a-module!")
	assert.Equal(t, dberrors.ExitUsage, code)
}

func TestExecute_Init(t *testing.T) {
	root := newProject(t)

	code, stdout, _ := run(t, "init")
	require.Equal(t, dberrors.ExitOK, code)
	assert.Contains(t, stdout, "sphinkydoc.yaml")
	assert.FileExists(t, filepath.Join(root, "sphinkydoc.yaml"))

	code, _, stderr := run(t, "init")
	assert.Equal(t, dberrors.ExitConfig, code)
	assert.Contains(t, stderr, "already exists")

	code, _, _ = run(t, "init", "--force")
	assert.Equal(t, dberrors.ExitOK, code)
}

func TestExecute_MissingExplicitConfig(t *testing.T) {
	newProject(t)
	code, _, _ := run(t, "-c", "other.yaml", "build", "--dry-run")
	assert.Equal(t, dberrors.ExitConfig, code)
}

func TestExecute_BrokenConfig(t *testing.T) {
	root := newProject(t)
	writeTree(t, root, map[string]string{"sphinkydoc.yaml": "modules: [pkg\n"})
	code, _, _ := run(t, "build", "--dry-run")
	assert.Equal(t, dberrors.ExitConfig, code)
}

func TestExecute_BuildDryRun(t *testing.T) {
	root := newProject(t)
	code, stdout, stderr := run(t, "build", "--dry-run", "pkg", "-s", "tool.sh")
	require.Equal(t, dberrors.ExitOK, code, stderr)
	assert.Contains(t, stdout, "outcome=success")
	assert.NoDirExists(t, filepath.Join(root, "docs", "_temp"))
}

func TestExecute_BuildToolMissing(t *testing.T) {
	root := newProject(t)
	code, stdout, stderr := run(t, "build", "pkg", "-b", "sphinkydoc-no-such-build-tool")
	assert.Equal(t, dberrors.ExitSubprocess, code, stderr)
	assert.Contains(t, stdout, "outcome=failed")

	temp := filepath.Join(root, "docs", "_temp")
	assert.FileExists(t, filepath.Join(temp, "conf.py"))
	assert.FileExists(t, filepath.Join(temp, "index.rst"))
	assert.FileExists(t, filepath.Join(temp, "pkg.rst"))
	assert.FileExists(t, filepath.Join(temp, "COPYING.rst"))
}

func TestExecute_BuildWritesMetrics(t *testing.T) {
	root := newProject(t)
	metricsFile := filepath.Join(root, "out", "sphinkydoc.prom")
	code, _, stderr := run(t, "build", "--dry-run", "pkg", "--metrics-file", metricsFile)
	require.Equal(t, dberrors.ExitOK, code, stderr)

	data, err := os.ReadFile(metricsFile) // #nosec G304 -- test file
	require.NoError(t, err)
	assert.Contains(t, string(data), "build_outcomes_total")
	assert.Contains(t, string(data), `outcome="success"`)
}

func TestExecute_BuildWithConfigFile(t *testing.T) {
	root := newProject(t)
	writeTree(t, root, map[string]string{
		"sphinkydoc.yaml": "version: \"1\"\nmodules: [pkg]\noutput_dir: site-docs\nproject:\n  name: Example\n",
	})
	code, _, stderr := run(t, "build", "-b", "sphinkydoc-no-such-build-tool")
	require.Equal(t, dberrors.ExitSubprocess, code, stderr)

	conf, err := os.ReadFile(filepath.Join(root, "site-docs", "_temp", "conf.py")) // #nosec G304 -- test file
	require.NoError(t, err)
	assert.Contains(t, string(conf), "project = 'Example'")
}

func TestExecute_Generate(t *testing.T) {
	root := newProject(t)
	out := filepath.Join(root, "source")
	code, _, stderr := run(t, "generate", "pkg", "--source-dir", out, "-s", "tool.sh")
	require.Equal(t, dberrors.ExitOK, code, stderr)

	for _, name := range []string{"index.rst", "pkg.rst", "pkg.core.rst", "tool.sh.rst", "COPYING.rst", "INSTALL.rst", "README.inc"} {
		assert.FileExists(t, filepath.Join(out, name))
	}
	assert.NoFileExists(t, filepath.Join(out, "conf.py"))
}

func TestExecute_GenerateNoIndexNoReadme(t *testing.T) {
	root := newProject(t)
	out := filepath.Join(root, "source")
	code, _, stderr := run(t, "generate", "pkg", "--source-dir", out, "--no-index", "--no-readme")
	require.Equal(t, dberrors.ExitOK, code, stderr)

	assert.FileExists(t, filepath.Join(out, "pkg.rst"))
	assert.NoFileExists(t, filepath.Join(out, "index.rst"))
	assert.NoFileExists(t, filepath.Join(out, "README.inc"))
}

func TestExecute_GenerateMissingCapsDir(t *testing.T) {
	root := newProject(t)
	out := filepath.Join(root, "source")
	code, _, stderr := run(t, "generate", "pkg", "--source-dir", out, "--caps-dir", filepath.Join(root, "absent"))
	assert.Equal(t, dberrors.ExitFileSystem, code, stderr)
	assert.NoFileExists(t, filepath.Join(out, "pkg.rst"))
}

func TestExecute_Discover(t *testing.T) {
	newProject(t)
	code, stdout, stderr := run(t, "discover")
	require.Equal(t, dberrors.ExitOK, code, stderr)

	assert.Regexp(t, `README\.md\s+included\s+markdown`, stdout)
	assert.Regexp(t, `COPYING\s+about\s+literal`, stdout)
	assert.Regexp(t, `INSTALL\s+topic\s+prose`, stdout)
	assert.Contains(t, stdout, "Modules (found)")
	assert.Regexp(t, `pkg\s+package`, stdout)
	assert.Regexp(t, `Template sources \(lookup order\):\n  builtin\n`, stdout)
}

func TestWatchRoots(t *testing.T) {
	root := newProject(t)
	writeTree(t, root, map[string]string{"sphinkydoc.yaml": "modules: [pkg]\n"})

	cfg := config.Default()
	cfg.PythonPath = []string{".", "src"}
	cfg.Scripts = []string{"tool.sh"}

	roots := watchRoots(cfg, filepath.Join(root, "sphinkydoc.yaml"))
	assert.Contains(t, roots, root)
	assert.Contains(t, roots, filepath.Join(root, "src"))
	assert.Contains(t, roots, filepath.Join(root, "docs"))
	assert.Contains(t, roots, filepath.Join(root, "tool.sh"))
	assert.Contains(t, roots, filepath.Join(root, "sphinkydoc.yaml"))

	seen := map[string]bool{}
	for _, r := range roots {
		assert.False(t, seen[r], "duplicate root %s", r)
		seen[r] = true
	}
}

func TestLoadConfig_LogLevel(t *testing.T) {
	root := newProject(t)
	writeTree(t, root, map[string]string{"sphinkydoc.yaml": "logging:\n  level: warn\n"})

	level := new(slog.LevelVar)
	g := &Global{Logger: slog.New(slog.DiscardHandler), Level: level}
	_, err := loadConfig(g, &CLI{Config: config.DefaultPath})
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level.Level())

	g.Verbose = true
	level.Set(slog.LevelDebug)
	_, err = loadConfig(g, &CLI{Config: config.DefaultPath})
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level.Level())
}
