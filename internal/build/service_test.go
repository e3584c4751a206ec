package build

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sphinkydoc/internal/config"
	dberrors "git.home.luguber.info/inful/sphinkydoc/internal/foundation/errors"
	"git.home.luguber.info/inful/sphinkydoc/internal/projectmeta"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
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

// newProject lays out a project with one package and a few caps files and
// returns a configuration building it into <root>/docs.
func newProject(t *testing.T) (*config.Config, string) {
	t.Helper()
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"pkg/__init__.py": "\"\"\"Example package.\"\"\"\n\n__version__ = \"1.4.2\"\n",
		"pkg/util.py":     "\"\"\"Utilities.\"\"\"\n\n\ndef helper():\n    pass\n",
		"README.md":       "# Example\n\nAn example project.\n",
		"COPYING":         "Permission is granted.\n",
		"INSTALL":         "Run make.\n",
		"docs/usage.rst":  "Usage\n=====\n\nHand-written.\n",
	})

	cfg := config.Default()
	cfg.Modules = []string{"pkg"}
	cfg.PythonPath = []string{root}
	cfg.OutputDir = filepath.Join(root, "docs")
	cfg.Caps.Dir = root
	return cfg, root
}

func noGit(string, *slog.Logger) (*projectmeta.GitInfo, error) {
	return nil, projectmeta.ErrNoRepository
}

func newTestService(t *testing.T, r Renderer) (*DefaultService, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewService(logger).WithRenderer(r).WithGitReader(noGit), &logs
}

// siteRenderer fakes the build tool by writing a small site next to the
// working directory.
type siteRenderer struct {
	calls int
}

func (s *siteRenderer) Execute(_ context.Context, workDir string) error {
	s.calls++
	htmlDir := filepath.Join(workDir, "..", "html")
	if err := os.MkdirAll(filepath.Join(htmlDir, "_static"), 0o750); err != nil {
		return err
	}
	pages := map[string]string{
		"index.html":         "<html><head><title>pkg  documentation</title></head><body></body></html>",
		"pkg.html":           "<html></html>",
		"_static/extra.html": "<html></html>",
	}
	for name, content := range pages {
		if err := os.WriteFile(filepath.Join(htmlDir, filepath.FromSlash(name)), []byte(content), 0o600); err != nil {
			return err
		}
	}
	return nil
}

type failingRenderer struct{}

func (failingRenderer) Execute(context.Context, string) error {
	return errors.Join(ErrBuildToolFailed, errors.New("exit status 2"))
}

type noopRenderer struct{}

func (noopRenderer) Execute(context.Context, string) error { return nil }

func TestRun_FullBuild(t *testing.T) {
	cfg, root := newProject(t)
	r := &siteRenderer{}
	svc, _ := newTestService(t, r)

	report, err := svc.Run(context.Background(), Request{Config: cfg})
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, OutcomeSuccess, report.Outcome)
	assert.NotEmpty(t, report.BuildID)
	assert.Equal(t, 1, r.calls)
	for _, st := range stageOrder {
		assert.Equal(t, StageResultSuccess, report.StageResults[st], "stage %s", st)
	}

	temp := filepath.Join(root, "docs", "_temp")
	conf := readFile(t, filepath.Join(temp, "conf.py"))
	assert.Contains(t, conf, "project = 'pkg'")
	assert.Contains(t, conf, "release = '1.4.2'")
	assert.Contains(t, conf, "master_doc = 'index'")
	assert.Contains(t, conf, "'*.inc'")
	assert.Equal(t, filepath.Join(temp, "conf.py"), report.Config)

	index := readFile(t, filepath.Join(temp, "index.rst"))
	assert.Contains(t, index, "COPYING")
	assert.Contains(t, index, "INSTALL")
	assert.Contains(t, index, "pkg")

	assert.FileExists(t, filepath.Join(temp, "README.inc"))
	assert.FileExists(t, filepath.Join(temp, "pkg.rst"))
	assert.FileExists(t, filepath.Join(temp, "pkg.util.rst"))
	assert.FileExists(t, filepath.Join(temp, "usage.rst"))
	assert.FileExists(t, filepath.Join(temp, "_templates", "layout.html"))

	assert.Equal(t, projectmeta.SourceModule, report.Meta.Sources["release"])
	assert.Equal(t, projectmeta.SourceDefault, report.Meta.Sources["project"])

	require.NotNil(t, report.HTML)
	assert.Equal(t, "pkg documentation", report.HTML.Title)
	assert.Equal(t, 2, report.HTML.Pages)
	assert.NoError(t, report.BuildErr)
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	cfg, root := newProject(t)
	r := &siteRenderer{}
	svc, logs := newTestService(t, r)

	report, err := svc.Run(context.Background(), Request{Config: cfg, DryRun: true})
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, StageResultSkipped, report.StageResults[StageValidate])
	assert.Equal(t, StageResultSkipped, report.StageResults[StageBuild])
	assert.Zero(t, r.calls)
	assert.NoDirExists(t, filepath.Join(root, "docs", "_temp"))
	assert.Contains(t, logs.String(), "Dry run")
}

func TestRun_HandWrittenDocsWin(t *testing.T) {
	cfg, root := newProject(t)
	writeTree(t, root, map[string]string{
		"docs/index.rst":   "Custom index\n============\n",
		"docs/COPYING.rst": "Custom copying page.\n",
	})
	svc, _ := newTestService(t, noopRenderer{})

	report, err := svc.Run(context.Background(), Request{Config: cfg})
	require.NoError(t, err)

	assert.Contains(t, report.Categories.Topic, "usage")
	assert.NotContains(t, report.Categories.Topic, "COPYING")
	assert.Contains(t, report.Categories.About, "COPYING")
	assert.NotContains(t, report.Categories.Topic, "index")

	temp := filepath.Join(root, "docs", "_temp")
	assert.Equal(t, "Custom index\n============\n", readFile(t, filepath.Join(temp, "index.rst")))
	assert.Equal(t, "Custom copying page.\n", readFile(t, filepath.Join(temp, "COPYING.rst")))
}

func TestRun_SkeletonTemplateReplacesConf(t *testing.T) {
	cfg, root := newProject(t)
	skeleton := fstest.MapFS{
		"conf.py.template": {Data: []byte("project = {{ repr .project }}\nmaster_doc = 'index'\nextensions = {{ repr .extensions }}\n")},
	}
	svc, _ := newTestService(t, noopRenderer{})
	svc.WithSkeleton(skeleton)

	report, err := svc.Run(context.Background(), Request{Config: cfg})
	require.NoError(t, err)

	temp := filepath.Join(root, "docs", "_temp")
	assert.Contains(t, report.Templates, "conf.py")
	assert.Equal(t, "project = 'pkg'\nmaster_doc = 'index'\nextensions = ['sphinx.ext.autodoc', 'sphinx.ext.autosummary', 'sphinx.ext.viewcode', 'sphinx.ext.todo']\n",
		readFile(t, filepath.Join(temp, "conf.py")))
	assert.NoFileExists(t, filepath.Join(temp, "conf.py.template"))
}

func TestRun_ValidationFailureAborts(t *testing.T) {
	cfg, _ := newProject(t)
	r := &siteRenderer{}
	svc, _ := newTestService(t, r)
	svc.WithSkeleton(fstest.MapFS{
		"conf.py.template": {Data: []byte("project = {{ repr .project }}\n")},
	})

	report, err := svc.Run(context.Background(), Request{Config: cfg})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailed)

	classified, ok := dberrors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, dberrors.CategoryValidation, classified.Category())

	assert.Equal(t, StageResultFatal, report.StageResults[StageValidate])
	assert.NotContains(t, report.StageResults, StageBuild)
	assert.Equal(t, OutcomeFailed, report.Outcome)
	assert.Zero(t, r.calls)
}

func TestRun_ValidationDisabled(t *testing.T) {
	cfg, _ := newProject(t)
	disabled := false
	cfg.Validation.Enabled = &disabled
	svc, _ := newTestService(t, noopRenderer{})
	svc.WithSkeleton(fstest.MapFS{
		"conf.py.template": {Data: []byte("project = {{ repr .project }}\n")},
	})

	report, err := svc.Run(context.Background(), Request{Config: cfg})
	require.NoError(t, err)
	assert.Equal(t, StageResultSkipped, report.StageResults[StageValidate])
	assert.Equal(t, StageResultSuccess, report.StageResults[StageBuild])
}

func TestRun_BuildToolFailureIsReported(t *testing.T) {
	cfg, _ := newProject(t)
	svc, _ := newTestService(t, failingRenderer{})

	report, err := svc.Run(context.Background(), Request{Config: cfg})
	require.NoError(t, err)

	require.Error(t, report.BuildErr)
	assert.ErrorIs(t, report.BuildErr, ErrBuildToolFailed)
	assert.Equal(t, StageResultWarning, report.StageResults[StageBuild])
	assert.Equal(t, OutcomeFailed, report.Outcome)
	assert.Nil(t, report.HTML)
}

func TestRun_GenerationFailureIsWarning(t *testing.T) {
	cfg, _ := newProject(t)
	cfg.Modules = []string{"pkg", "missing_module"}
	svc, _ := newTestService(t, noopRenderer{})

	report, err := svc.Run(context.Background(), Request{Config: cfg})
	require.NoError(t, err)

	assert.Equal(t, StageResultWarning, report.StageResults[StageGenerate])
	assert.Len(t, report.Failures, 1)
	assert.Equal(t, OutcomeWarning, report.Outcome)
	assert.Equal(t, StageResultSuccess, report.StageResults[StageBuild])
}

func TestRun_ReadmeDisabled(t *testing.T) {
	cfg, root := newProject(t)
	disabled := false
	cfg.Caps.Readme = &disabled
	svc, _ := newTestService(t, noopRenderer{})

	report, err := svc.Run(context.Background(), Request{Config: cfg})
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(root, "docs", "_temp", "README.inc"))
	assert.Empty(t, report.Categories.Included)
}

func TestRun_MissingCapsDirIsFatal(t *testing.T) {
	cfg, root := newProject(t)
	cfg.Caps.Dir = filepath.Join(root, "nope")
	svc, _ := newTestService(t, noopRenderer{})

	report, err := svc.Run(context.Background(), Request{Config: cfg})
	require.Error(t, err)

	classified, ok := dberrors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, dberrors.CategoryFileSystem, classified.Category())
	assert.Equal(t, StageResultFatal, report.StageResults[StageClassify])
	assert.NotContains(t, report.StageResults, StageGenerate)
}

func TestRun_Canceled(t *testing.T) {
	cfg, _ := newProject(t)
	svc, _ := newTestService(t, noopRenderer{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := svc.Run(ctx, Request{Config: cfg})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, OutcomeCanceled, report.Outcome)
	assert.Equal(t, StageResultCanceled, report.StageResults[StagePrepareDirs])
}

func TestRun_NilConfig(t *testing.T) {
	svc, _ := newTestService(t, noopRenderer{})
	report, err := svc.Run(context.Background(), Request{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoConfig)
	assert.Equal(t, OutcomeFailed, report.Outcome)
}

func TestRun_GitMetadata(t *testing.T) {
	cfg, _ := newProject(t)
	cfg.Modules = nil
	svc, _ := newTestService(t, noopRenderer{})
	svc.WithGitReader(func(string, *slog.Logger) (*projectmeta.GitInfo, error) {
		return &projectmeta.GitInfo{Tag: "v2.3.1", Year: 2024, Author: "Example Author"}, nil
	})

	report, err := svc.Run(context.Background(), Request{Config: cfg})
	require.NoError(t, err)

	assert.Equal(t, "2.3.1", report.Meta.Release)
	assert.Equal(t, "2.3", report.Meta.Version)
	assert.Equal(t, "2024, Example Author", report.Meta.Copyright)
	assert.Equal(t, StageResultSkipped, report.StageResults[StageGenerate])
}

func TestRun_CleanTempAfterSuccess(t *testing.T) {
	cfg, root := newProject(t)
	cfg.Sphinx.CleanTemp = true
	svc, _ := newTestService(t, &siteRenderer{})

	report, err := svc.Run(context.Background(), Request{Config: cfg})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, report.Outcome)
	assert.NoDirExists(t, filepath.Join(root, "docs", "_temp"))
	assert.FileExists(t, filepath.Join(root, "docs", "html", "index.html"))
}

func TestRun_CleanTempKeepsFailedBuild(t *testing.T) {
	cfg, root := newProject(t)
	cfg.Sphinx.CleanTemp = true
	svc, _ := newTestService(t, failingRenderer{})

	report, err := svc.Run(context.Background(), Request{Config: cfg})
	require.NoError(t, err)
	require.Error(t, report.BuildErr)
	assert.FileExists(t, filepath.Join(root, "docs", "_temp", "conf.py"))
}
