package commands

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/sphinkydoc/internal/config"
	dberrors "git.home.luguber.info/inful/sphinkydoc/internal/foundation/errors"
	"git.home.luguber.info/inful/sphinkydoc/internal/logfields"
	"git.home.luguber.info/inful/sphinkydoc/internal/watch"
	"git.home.luguber.info/inful/sphinkydoc/internal/workspace"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Overrides `embed:""`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	if err := w.apply(cfg); err != nil {
		return err
	}

	// a failed first build is reported and watching continues
	if err := RunBuild(g, cfg, false, newService); err != nil {
		if g.Ctx.Err() != nil {
			return nil
		}
		g.Logger.Error("Initial build failed", logfields.Error(err))
	}

	cfgPath, _ := filepath.Abs(root.Config)
	current := cfg
	rebuild := func(ctx context.Context, t watch.Trigger) error {
		if t.LastPath == cfgPath {
			reloaded, err := loadConfig(g, root)
			if err != nil {
				g.Logger.Error("Keeping previous configuration", logfields.Error(err))
			} else if err := w.apply(reloaded); err != nil {
				g.Logger.Error("Keeping previous configuration", logfields.Error(err))
			} else {
				g.Logger.Info("Reloaded configuration", logfields.Path(cfgPath))
				current = reloaded
			}
		}
		return RunBuild(&Global{Ctx: ctx, Logger: g.Logger, Level: g.Level, Stdout: g.Stdout, Verbose: g.Verbose}, current, false, newService)
	}

	watcher, err := watch.New(watch.Config{
		Roots:    watchRoots(cfg, cfgPath),
		Exclude:  []string{filepath.Join(cfg.OutputDir, workspace.TempDirName), filepath.Join(cfg.OutputDir, workspace.HTMLDirName)},
		Debounce: cfg.Watch.Debounce,
	}, rebuild, g.Logger)
	if err != nil {
		return dberrors.WrapError(err, dberrors.CategoryInternal, "failed to create watcher").Build()
	}
	if err := watcher.Run(g.Ctx); err != nil {
		if errors.Is(err, watch.ErrNothingToWatch) {
			return dberrors.WrapError(err, dberrors.CategoryFileSystem, "no watchable paths").Fatal().Build()
		}
		return dberrors.WrapError(err, dberrors.CategoryFileSystem, "file watcher failed").Fatal().Build()
	}
	return nil
}

// watchRoots are the inputs of a build: python path, caps and docs
// directories, templates, scripts and the configuration file.
func watchRoots(cfg *config.Config, cfgPath string) []string {
	roots := append([]string(nil), cfg.PythonPath...)
	roots = append(roots, cfg.Caps.Dir, cfg.OutputDir)
	if cfg.DocsDir != "" {
		roots = append(roots, cfg.DocsDir)
	}
	roots = append(roots, cfg.Templates.Dirs...)
	if cfg.Templates.Skeleton != "" {
		roots = append(roots, cfg.Templates.Skeleton)
	}
	roots = append(roots, cfg.Scripts...)
	if _, err := os.Stat(cfgPath); err == nil {
		roots = append(roots, cfgPath)
	}

	seen := make(map[string]bool, len(roots))
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			abs = filepath.Clean(r)
		}
		if !seen[abs] {
			seen[abs] = true
			out = append(out, abs)
		}
	}
	return out
}
