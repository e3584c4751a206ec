package commands

import (
	"context"
	"errors"

	"git.home.luguber.info/inful/sphinkydoc/internal/caps"
	"git.home.luguber.info/inful/sphinkydoc/internal/config"
	dberrors "git.home.luguber.info/inful/sphinkydoc/internal/foundation/errors"
	"git.home.luguber.info/inful/sphinkydoc/internal/ext"
	"git.home.luguber.info/inful/sphinkydoc/internal/pysource"
	"git.home.luguber.info/inful/sphinkydoc/internal/templating"
)

// GenerateCmd implements the 'generate' command: the builder-inited hook
// run in-process, writing sources for an existing doc tool setup.
type GenerateCmd struct {
	Modules      []string `arg:"" optional:"" name:"module" help:"Python modules to document (replaces the configured list)"`
	SourceDir    string   `name:"source-dir" help:"Directory the pages are written to (default: the output dir)"`
	PythonPath   []string `short:"p" name:"python-path" help:"Directory searched for modules (repeatable)"`
	TemplateDirs []string `short:"t" name:"template-dir" help:"Directory with template overrides (repeatable)"`
	Scripts      []string `short:"s" name:"script" help:"Script to document (repeatable)"`
	CapsDir      []string `name:"caps-dir" help:"Directory holding caps files (repeatable)"`
	NoIndex      bool     `name:"no-index" help:"Do not write the index page"`
	NoReadme     bool     `name:"no-readme" help:"Skip README-style included files"`
}

func (c *GenerateCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	if len(c.Modules) > 0 {
		cfg.Modules = c.Modules
	}
	if len(c.PythonPath) > 0 {
		cfg.PythonPath = c.PythonPath
	}
	if len(c.TemplateDirs) > 0 {
		cfg.Templates.Dirs = c.TemplateDirs
	}
	if len(c.Scripts) > 0 {
		cfg.Scripts = c.Scripts
	}
	sourceDir := c.SourceDir
	if sourceDir == "" {
		sourceDir = cfg.OutputDir
	}
	capsDirs := c.CapsDir
	if len(capsDirs) == 0 {
		capsDirs = []string{cfg.Caps.Dir}
	}

	env, err := templating.New(cfg.Templates.Dirs, templating.WithLogger(g.Logger))
	if err != nil {
		return dberrors.WrapError(err, dberrors.CategoryTemplate, "failed to create template environment").Fatal().Build()
	}
	host := ext.NewLocalHost(sourceDir, env, pysource.NewResolver(cfg.PythonPath, g.Logger), g.Logger)
	configureHost(host, cfg, capsDirs, !c.NoIndex && cfg.IndexEnabled(), !c.NoReadme && cfg.ReadmeEnabled())
	ext.Setup(host)

	if err := host.Emit(g.Ctx, ext.EventBuilderInited); err != nil {
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return dberrors.WrapError(err, dberrors.CategoryInternal, "generation canceled").Build()
		case errors.Is(err, ext.ErrInvalidValue):
			return dberrors.WrapError(err, dberrors.CategoryConfig, "invalid extension configuration").Fatal().Build()
		case errors.Is(err, caps.ErrListSource):
			return dberrors.WrapError(err, dberrors.CategoryFileSystem, "failed to list caps directory").Fatal().Build()
		default:
			return dberrors.WrapError(err, dberrors.CategoryTemplate, "failed to generate documentation sources").Fatal().Build()
		}
	}
	return nil
}

// configureHost sets the extension values from the configuration file, the
// way a user would in the doc tool's own configuration.
func configureHost(h *ext.LocalHost, cfg *config.Config, capsDirs []string, index, readme bool) {
	project := cfg.Project.Name
	if project == "" && len(cfg.Modules) > 0 {
		project = cfg.Modules[0]
	}
	h.Set(ext.KeyProject, project)
	h.Set(ext.KeySourceDirs, capsDirs)
	h.Set(ext.KeyModules, cfg.Modules)
	h.Set(ext.KeyScripts, cfg.Scripts)
	h.Set(ext.KeyCapsLiterals, cfg.Caps.Literals)
	h.Set(ext.KeyIncluded, cfg.Caps.Included)
	h.Set(ext.KeyAbout, cfg.Caps.About)
	h.Set(ext.KeyTopics, cfg.Caps.Topics)
	h.Set(ext.KeyUnclassified, cfg.Caps.Unclassified)
	h.Set(ext.KeyGenerateIndex, index)
	h.Set(ext.KeyGenerateReadme, readme)
}
