package commands

import (
	"fmt"
	"io"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/sphinkydoc/internal/build"
	"git.home.luguber.info/inful/sphinkydoc/internal/config"
	dberrors "git.home.luguber.info/inful/sphinkydoc/internal/foundation/errors"
	"git.home.luguber.info/inful/sphinkydoc/internal/logfields"
	"git.home.luguber.info/inful/sphinkydoc/internal/metrics"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Overrides `embed:""`

	DryRun      bool   `short:"n" name:"dry-run" help:"Log what would be written without touching the disk or running the build tool"`
	MetricsFile string `name:"metrics-file" help:"Write Prometheus metrics to this file after the build"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	if err := b.apply(cfg); err != nil {
		return err
	}
	if b.MetricsFile != "" {
		cfg.Metrics.File = b.MetricsFile
	}
	return RunBuild(g, cfg, b.DryRun, newService)
}

// serviceFactory creates the build service; tests substitute the renderer.
type serviceFactory func(g *Global, recorder metrics.Recorder) build.Service

func newService(g *Global, recorder metrics.Recorder) build.Service {
	return build.NewService(g.Logger).WithRecorder(recorder)
}

// RunBuild runs one build and reports it on stdout. A failing build tool
// is returned as a subprocess error.
func RunBuild(g *Global, cfg *config.Config, dryRun bool, factory serviceFactory) error {
	var (
		reg      *prom.Registry
		recorder metrics.Recorder = metrics.NoopRecorder{}
	)
	if cfg.Metrics.File != "" {
		reg = prom.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(reg)
	}

	report, err := factory(g, recorder).Run(g.Ctx, build.Request{Config: cfg, DryRun: dryRun})
	if reg != nil {
		if werr := metrics.WriteTextfile(cfg.Metrics.File, reg); werr != nil {
			g.Logger.Warn("Failed to write metrics", logfields.Path(cfg.Metrics.File), logfields.Error(werr))
		} else {
			g.Logger.Debug("Wrote metrics", logfields.Path(cfg.Metrics.File))
		}
	}
	if report != nil {
		printReport(g.Stdout, report)
	}
	if err != nil {
		return err
	}
	if report.BuildErr != nil {
		return dberrors.WrapError(report.BuildErr, dberrors.CategorySubprocess, "documentation build failed").
			WithContext("tool", cfg.Sphinx.Build).Fatal().Build()
	}
	return nil
}

func printReport(w io.Writer, r *build.Report) {
	_, _ = fmt.Fprintln(w, r.Summary())
	for _, f := range r.Failures {
		_, _ = fmt.Fprintf(w, "  failed: %v\n", f)
	}
	if r.HTML != nil && r.HTML.Title != "" {
		_, _ = fmt.Fprintf(w, "Built %q with %d pages\n", r.HTML.Title, r.HTML.Pages)
	}
}
