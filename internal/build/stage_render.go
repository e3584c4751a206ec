package build

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"git.home.luguber.info/inful/sphinkydoc/internal/build/validation"
	dberrors "git.home.luguber.info/inful/sphinkydoc/internal/foundation/errors"
	"git.home.luguber.info/inful/sphinkydoc/internal/generate"
	"git.home.luguber.info/inful/sphinkydoc/internal/logfields"
	"git.home.luguber.info/inful/sphinkydoc/internal/projectmeta"
)

// stageRenderIndexConfig resolves project metadata, runs the skeleton
// template pass and renders conf.py and the index unless the skeleton or
// the hand-written docs already provide them. Template failures here are
// fatal.
func stageRenderIndexConfig(ctx context.Context, bs *buildState) error {
	cfg := bs.cfg
	docExt := strings.TrimPrefix(cfg.Generate.DocExt, ".")

	meta := resolveMeta(ctx, bs)
	bs.report.Meta = meta

	conf := generate.Conf{
		Project:         meta.Project,
		Copyright:       meta.Copyright,
		Version:         meta.Version,
		Release:         meta.Release,
		Extensions:      cfg.Sphinx.Extensions,
		SysPath:         absPaths(cfg.PythonPath),
		HTMLTheme:       cfg.Sphinx.HTMLTheme,
		ExcludePatterns: []string{"_build", "html", "*." + cfg.Caps.IncludedExt},
	}

	base := conf.Context(docExt)
	for k, v := range bs.report.Categories.Context() {
		base[k] = v
	}
	base["modules"] = nonNilStrings(cfg.Modules)
	base["scripts"] = scriptNames(cfg.Scripts)

	rendered, err := bs.ws.RenderTemplates(bs.env, docExt, base, nil)
	bs.report.Templates = rendered
	if err != nil {
		return newFatalStageError(StageRenderIndexConfig, templateFailure(err, "skeleton template pass failed"))
	}

	if !slices.Contains(rendered, generate.ConfigName) {
		path, err := bs.gen.ConfigDoc(ctx, conf)
		if err != nil {
			return newFatalStageError(StageRenderIndexConfig, templateFailure(err, "failed to render conf.py"))
		}
		bs.report.Config = path
	} else {
		bs.report.Config = filepath.Join(bs.ws.TempDir(), generate.ConfigName)
	}

	indexName := generate.IndexName + "." + docExt
	switch {
	case !cfg.IndexEnabled():
		bs.logger.Debug("Index generation disabled")
	case slices.Contains(rendered, indexName):
		bs.report.Index = filepath.Join(bs.ws.TempDir(), indexName)
	default:
		path, err := bs.gen.IndexDoc(ctx, meta.Project, bs.report.Categories, cfg.Modules, cfg.Scripts)
		if err != nil {
			return newFatalStageError(StageRenderIndexConfig, templateFailure(err, "failed to render index"))
		}
		bs.report.Index = path
	}

	bs.logger.Info("Rendered index and configuration",
		logfields.Name(meta.Project),
		logfields.Count(len(rendered)))
	return nil
}

func resolveMeta(ctx context.Context, bs *buildState) projectmeta.Resolved {
	cfg := bs.cfg
	in := projectmeta.Inputs{
		Config: projectmeta.Meta{
			Project:   cfg.Project.Name,
			Copyright: cfg.Project.Copyright,
			Version:   cfg.Project.Version,
			Release:   cfg.Project.Release,
		},
	}
	if len(cfg.Modules) > 0 {
		in.RootModule = cfg.Modules[0]
		if sum, err := bs.resolver.Summarize(ctx, in.RootModule); err == nil {
			in.Dunders = sum.Dunders
		} else {
			bs.logger.Debug("Root module metadata unavailable", logfields.Module(in.RootModule), logfields.Error(err))
		}
	}
	if bs.gitReader != nil {
		info, err := bs.gitReader(cfg.Caps.Dir, bs.logger)
		switch {
		case err == nil:
			in.Git = info
		case errors.Is(err, projectmeta.ErrNoRepository):
			bs.logger.Debug("No git repository for project metadata", logfields.Path(cfg.Caps.Dir))
		default:
			bs.logger.Warn("Failed to read git metadata", logfields.Error(err))
		}
	}
	return projectmeta.Resolve(in)
}

func templateFailure(err error, msg string) error {
	category := dberrors.CategoryFileSystem
	if isTemplateError(err) {
		category = dberrors.CategoryTemplate
	}
	return dberrors.WrapError(err, category, msg).Fatal().Build()
}

func absPaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		out = append(out, filepath.ToSlash(p))
	}
	return out
}

func scriptNames(scripts []string) []string {
	out := make([]string, 0, len(scripts))
	for _, s := range scripts {
		out = append(out, filepath.Base(s))
	}
	return out
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// stageValidate checks conf.py before the build tool sees it. A failure
// aborts the build.
func stageValidate(ctx context.Context, bs *buildState) error {
	cfg := bs.cfg
	if !cfg.ValidationEnabled() {
		bs.logger.Info("Configuration validation disabled")
		return errSkipStage
	}
	if bs.dryRun {
		bs.logger.Info("Dry run: skipping configuration validation")
		return errSkipStage
	}

	start := time.Now()
	chain := validation.DefaultChain(cfg.Validation.WithPython)
	res := chain.Validate(ctx, validation.Context{
		ConfPath: filepath.Join(bs.ws.TempDir(), generate.ConfigName),
		Python:   cfg.Generate.Python,
		Timeout:  cfg.Validation.Timeout,
		Logger:   bs.logger,
	})
	if !res.Passed {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return newFatalStageError(StageValidate,
			dberrors.WrapError(errors.Join(ErrValidationFailed, res.Err), dberrors.CategoryValidation, "generated configuration failed validation").
				WithContext("rule", res.Rule).
				WithContext("reason", res.Reason).
				Fatal().Build())
	}
	bs.logger.Info("Configuration validated",
		logfields.Count(len(chain.Names())),
		elapsedMS(start))
	return nil
}

// stageBuild runs the build tool. Its failure is recorded in the report
// and as a warning; it never aborts with an error.
func stageBuild(ctx context.Context, bs *buildState) error {
	if bs.dryRun {
		bs.logger.Info("Dry run: skipping build tool")
		return errSkipStage
	}
	if err := bs.renderer.Execute(ctx, bs.ws.TempDir()); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		bs.report.BuildErr = err
		bs.logger.Error("Build tool failed", logfields.Error(err))
		return newWarnStageError(StageBuild, err)
	}

	sum, err := InspectHTML(bs.ws.HTMLDir())
	bs.report.HTML = sum
	if err != nil {
		bs.logger.Warn("Could not inspect built site", logfields.Error(err))
	} else {
		bs.logger.Info("Built HTML site",
			logfields.Path(bs.ws.HTMLDir()),
			slog.String("title", sum.Title),
			logfields.Count(sum.Pages))
	}

	if bs.cfg.Sphinx.CleanTemp {
		if err := bs.ws.Cleanup(); err != nil {
			bs.logger.Warn("Keeping working directory", logfields.Error(err))
		}
	}
	return nil
}
