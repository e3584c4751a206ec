package workspace

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/sphinkydoc/internal/logfields"
	"git.home.luguber.info/inful/sphinkydoc/internal/templating"
)

// Directory names below the output directory.
const (
	TempDirName = "_temp"
	HTMLDirName = "html"
)

//go:embed all:skeleton
var skeletonFS embed.FS

// DefaultSkeleton returns the embedded skeleton.
func DefaultSkeleton() fs.FS {
	sub, err := fs.Sub(skeletonFS, "skeleton")
	if err != nil {
		panic(err)
	}
	return sub
}

// ErrNoOutputDir indicates a manager without an output directory.
var ErrNoOutputDir = errors.New("output directory is required")

// Manager owns the output, temp and HTML directories of one build.
type Manager struct {
	outputDir string
	tempDir   string
	htmlDir   string
	dryRun    bool
	logger    *slog.Logger
}

// NewManager returns a manager rooted at outputDir. In dry-run mode
// nothing is deleted or created.
func NewManager(outputDir string, dryRun bool, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if outputDir != "" {
		outputDir = filepath.Clean(outputDir)
	}
	return &Manager{
		outputDir: outputDir,
		tempDir:   filepath.Join(outputDir, TempDirName),
		htmlDir:   filepath.Join(outputDir, HTMLDirName),
		dryRun:    dryRun,
		logger:    logger,
	}
}

// OutputDir is the documentation directory holding _temp and html.
func (m *Manager) OutputDir() string { return m.outputDir }

// TempDir is the Sphinx source directory of the build.
func (m *Manager) TempDir() string { return m.tempDir }

// HTMLDir is where Sphinx writes the site.
func (m *Manager) HTMLDir() string { return m.htmlDir }

// Prepare deletes the temp directory and creates the temp and HTML
// directories.
func (m *Manager) Prepare() error {
	if m.outputDir == "" {
		return ErrNoOutputDir
	}
	if m.dryRun {
		m.logger.Info("Dry run: would recreate working directory", logfields.Path(m.tempDir))
		return nil
	}
	if err := os.RemoveAll(m.tempDir); err != nil {
		return fmt.Errorf("failed to remove working directory: %w", err)
	}
	for _, dir := range []string{m.tempDir, m.htmlDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	m.logger.Info("Prepared working directory", logfields.Path(m.tempDir))
	return nil
}

// Cleanup removes the temp directory. The HTML output is kept.
func (m *Manager) Cleanup() error {
	if m.dryRun {
		return nil
	}
	if err := os.RemoveAll(m.tempDir); err != nil {
		return fmt.Errorf("failed to cleanup working directory: %w", err)
	}
	m.logger.Debug("Cleaned up working directory", logfields.Path(m.tempDir))
	return nil
}

// CopySkeleton copies every file of skeleton into the temp directory,
// keeping files that already exist. It returns the relative paths copied.
func (m *Manager) CopySkeleton(skeleton fs.FS) ([]string, error) {
	if skeleton == nil {
		skeleton = DefaultSkeleton()
	}
	var copied []string
	err := fs.WalkDir(skeleton, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		data, err := fs.ReadFile(skeleton, path)
		if err != nil {
			return err
		}
		res, err := templating.WriteGeneratedFile(m.tempDir, filepath.FromSlash(path), string(data), templating.WriteOptions{
			DryRun: m.dryRun,
		})
		if err != nil {
			return err
		}
		if res.Written {
			copied = append(copied, path)
		}
		return nil
	})
	if err != nil {
		return copied, fmt.Errorf("copy skeleton: %w", err)
	}
	m.logger.Debug("Copied skeleton", logfields.Count(len(copied)), logfields.Path(m.tempDir))
	return copied, nil
}

// TemplateSuffix marks skeleton files rendered by RenderTemplates.
const TemplateSuffix = ".template"

// IsTemplateName reports whether a file name takes part in the template
// pass. Names ending in ".<docExt>.template" are per-document overrides
// used by the generators and are left alone.
func IsTemplateName(name, docExt string) bool {
	if !strings.Contains(name, TemplateSuffix) || len(name) <= len(TemplateSuffix) {
		return false
	}
	return !strings.HasSuffix(name, "."+docExt+TemplateSuffix)
}

// RenderTemplates renders every template file below the temp directory
// with base merged with perFile[<relative output path>], writes the
// result under the name with ".template" removed and deletes the
// template. It returns the relative output paths.
func (m *Manager) RenderTemplates(env *templating.Environment, docExt string, base templating.Context, perFile map[string]templating.Context) ([]string, error) {
	var rendered []string
	err := filepath.WalkDir(m.tempDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if m.dryRun && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() || !IsTemplateName(d.Name(), docExt) {
			return nil
		}
		rel, err := filepath.Rel(m.tempDir, path)
		if err != nil {
			return err
		}
		outRel := strings.Replace(filepath.ToSlash(rel), TemplateSuffix, "", 1)

		ctx := templating.Context{}
		for k, v := range base {
			ctx[k] = v
		}
		for k, v := range perFile[outRel] {
			ctx[k] = v
		}
		content, err := env.RenderFile(path, ctx)
		if err != nil {
			return err
		}
		if _, err := templating.WriteGeneratedFile(m.tempDir, filepath.FromSlash(outRel), content, templating.WriteOptions{
			Overwrite: true,
			DryRun:    m.dryRun,
		}); err != nil {
			return err
		}
		if !m.dryRun {
			if err := os.Remove(path); err != nil {
				return err
			}
		}
		m.logger.Debug("Rendered skeleton template", logfields.Template(filepath.ToSlash(rel)), logfields.File(outRel))
		rendered = append(rendered, outRel)
		return nil
	})
	if err != nil {
		return rendered, fmt.Errorf("render skeleton templates: %w", err)
	}
	return rendered, nil
}
