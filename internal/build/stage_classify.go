package build

import (
	"context"
	"errors"
	"fmt"
	"os"

	"git.home.luguber.info/inful/sphinkydoc/internal/caps"
	dberrors "git.home.luguber.info/inful/sphinkydoc/internal/foundation/errors"
	"git.home.luguber.info/inful/sphinkydoc/internal/logfields"
	"git.home.luguber.info/inful/sphinkydoc/internal/templating"
)

// stageClassify copies the hand-written docs (the output dir itself, then
// docs_dir) into the working dir and renders the caps files. Hand-written
// files replace skeleton files and win over caps pages of the same name.
// Directory listing failures are fatal.
func stageClassify(ctx context.Context, bs *buildState) error {
	cfg := bs.cfg
	opts := templating.WriteOptions{Overwrite: true, DryRun: bs.dryRun}

	var docsDirs []string
	// the output dir is missing on a first dry run
	if _, err := os.Stat(cfg.OutputDir); err == nil {
		docsDirs = append(docsDirs, cfg.OutputDir)
	}
	if cfg.DocsDir != "" {
		docsDirs = append(docsDirs, cfg.DocsDir)
	}
	for _, dir := range docsDirs {
		files, err := caps.CopyDocsTree(ctx, dir, bs.ws.TempDir(), cfg.Generate.DocExt, nil, opts)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return newFatalStageError(StageClassify,
				dberrors.WrapError(err, dberrors.CategoryFileSystem, "failed to copy documentation directory").
					WithContext("path", dir).Fatal().Build())
		}
		bs.report.DocsFiles = append(bs.report.DocsFiles, files...)
	}

	classifier, err := newClassifier(bs)
	if err != nil {
		return newFatalStageError(StageClassify,
			dberrors.WrapError(err, dberrors.CategoryConfig, "invalid caps configuration").Fatal().Build())
	}
	files, err := classifier.ClassifyCaps(ctx, cfg.Caps.Dir, bs.ws.TempDir())
	bs.report.CapsFiles = files
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return newFatalStageError(StageClassify,
			dberrors.WrapError(err, dberrors.CategoryFileSystem, "failed to list caps directory").
				WithContext("path", cfg.Caps.Dir).Fatal().Build())
	}

	all := indexedFiles(bs.report.DocsFiles, files)
	bs.report.Categories = caps.Group(all)
	bs.logger.Info("Classified documentation files",
		logfields.Count(len(all)),
		logfields.Path(cfg.Caps.Dir))
	return nil
}

// indexedFiles lists docs pages then caps pages. A hand-written page that
// replaces a caps page is indexed under the caps category only.
func indexedFiles(docs, capsFiles []caps.File) []caps.File {
	capsOutputs := make(map[string]bool, len(capsFiles))
	for _, f := range capsFiles {
		capsOutputs[f.Output] = true
	}
	out := make([]caps.File, 0, len(docs)+len(capsFiles))
	for _, f := range docs {
		if !capsOutputs[f.Output] {
			out = append(out, f)
		}
	}
	return append(out, capsFiles...)
}

func newClassifier(bs *buildState) (*caps.Classifier, error) {
	c := bs.cfg.Caps
	matchers, err := c.Matchers()
	if err != nil {
		return nil, err
	}
	literals, err := c.LiteralSet()
	if err != nil {
		return nil, err
	}
	policy, err := c.Policy()
	if err != nil {
		return nil, err
	}
	if bs.env == nil {
		return nil, errors.New("no template environment")
	}
	return &caps.Classifier{
		Env:          bs.env,
		Matchers:     matchers,
		Literals:     literals,
		Policy:       policy,
		DocExt:       bs.cfg.Generate.DocExt,
		IncludedExt:  c.IncludedExt,
		SkipIncluded: !bs.cfg.ReadmeEnabled(),
		Overwrite:    bs.cfg.Generate.Overwrite,
		DryRun:       bs.dryRun,
		Logger:       bs.logger,
	}, nil
}

// stageGenerate documents every module tree and script. Per-item failures
// become warnings.
func stageGenerate(ctx context.Context, bs *buildState) error {
	cfg := bs.cfg
	if len(cfg.Modules) == 0 && len(cfg.Scripts) == 0 {
		bs.logger.Info("No modules or scripts configured")
		return errSkipStage
	}
	res, err := bs.gen.AllDoc(ctx, cfg.Modules, cfg.Scripts)
	if res != nil {
		bs.report.Generated = res.Paths
		bs.report.Failures = res.Failures
	}
	if err != nil {
		return err
	}
	bs.logger.Info("Generated documents",
		logfields.Count(len(res.Paths)),
		logfields.Kind("module,script"))
	if len(res.Failures) > 0 {
		errs := make([]error, len(res.Failures))
		for i, f := range res.Failures {
			errs[i] = f
		}
		return newWarnStageError(StageGenerate,
			fmt.Errorf("%d of %d subjects failed: %w", len(res.Failures), len(cfg.Modules)+len(cfg.Scripts), errors.Join(errs...)))
	}
	return nil
}
