// Package commands implements the sphinkydoc command line.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/sphinkydoc/internal/config"
	dberrors "git.home.luguber.info/inful/sphinkydoc/internal/foundation/errors"
	"git.home.luguber.info/inful/sphinkydoc/internal/logfields"
	"git.home.luguber.info/inful/sphinkydoc/internal/version"
)

// Global is passed to every command.
type Global struct {
	Ctx     context.Context
	Logger  *slog.Logger
	Level   *slog.LevelVar
	Stdout  io.Writer
	Verbose bool
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"sphinkydoc.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build    BuildCmd    `cmd:"" help:"Generate sources and build the HTML documentation"`
	Generate GenerateCmd `cmd:"" help:"Generate documentation sources without building"`
	Discover DiscoverCmd `cmd:"" help:"Show how project files, modules and scripts would be documented"`
	Watch    WatchCmd    `cmd:"" help:"Build, then rebuild whenever project files change"`
	Init     InitCmd     `cmd:"" help:"Initialize a new configuration file"`
}

// Execute parses args, runs the selected command and returns the process
// exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var (
		cli      CLI
		exitCode = -1
	)
	parser, err := kong.New(&cli,
		kong.Name("sphinkydoc"),
		kong.Description("Generate a Sphinx documentation site for Python modules, scripts and project files."),
		kong.Writers(stdout, stderr),
		kong.Vars{"version": version.String()},
		kong.Exit(func(code int) {
			if exitCode < 0 {
				exitCode = code
			}
		}),
	)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "sphinkydoc: %v\n", err)
		return dberrors.ExitInternal
	}

	kctx, err := parser.Parse(args)
	if exitCode >= 0 {
		// --help or --version
		return exitCode
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "sphinkydoc: %v\n", err)
		return dberrors.ExitUsage
	}

	level := new(slog.LevelVar)
	if cli.Verbose {
		level.Set(slog.LevelDebug)
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	g := &Global{
		Ctx:     ctx,
		Logger:  logger,
		Level:   level,
		Stdout:  stdout,
		Verbose: cli.Verbose,
	}
	code := dberrors.ExitOK
	adapter := dberrors.NewCLIErrorAdapter(cli.Verbose, logger).
		WithWriter(stderr).
		WithExit(func(c int) { code = c })
	adapter.HandleError(kctx.Run(g, &cli))
	return code
}

// loadConfig reads the configuration file. A missing file at the default
// path yields the defaults; any other failure is a configuration error.
func loadConfig(g *Global, root *CLI) (*config.Config, error) {
	cfg, err := config.Load(root.Config)
	switch {
	case err == nil:
		g.Logger.Debug("Loaded configuration", logfields.Path(root.Config))
	case errors.Is(err, config.ErrNotFound) && root.Config == config.DefaultPath:
		g.Logger.Debug("No configuration file, using defaults", logfields.Path(root.Config))
		cfg = config.Default()
	default:
		return nil, dberrors.WrapError(err, dberrors.CategoryConfig, "failed to load configuration").
			WithContext("path", root.Config).Fatal().Build()
	}
	if !g.Verbose {
		g.Level.Set(cfg.Logging.SlogLevel())
	}
	return cfg, nil
}

// Overrides are the flags shared by build and watch. Set values replace
// the configured ones.
type Overrides struct {
	Modules      []string `arg:"" optional:"" name:"module" help:"Python modules to document (replaces the configured list)"`
	OutputDir    string   `short:"o" name:"output-dir" help:"Documentation directory holding _temp and html"`
	SphinxBuild  string   `short:"b" name:"sphinx-build" help:"Build tool binary"`
	PythonPath   []string `short:"p" name:"python-path" help:"Directory searched for modules (repeatable)"`
	TemplateDirs []string `short:"t" name:"template-dir" help:"Directory with template overrides (repeatable)"`
	Scripts      []string `short:"s" name:"script" help:"Script to document (repeatable)"`
	NoValidation bool     `name:"no-validation" help:"Do not validate the generated conf.py"`
	CapsDir      string   `name:"caps-dir" help:"Directory holding caps files such as README and COPYING"`
	CapsLiterals []string `short:"l" name:"caps-literal" help:"Caps file rendered as a literal block (repeatable)"`
	Overwrite    bool     `help:"Replace existing generated files"`
	Jobs         int      `help:"Module trees and scripts generated in parallel"`
	CleanTemp    bool     `name:"clean-temp" help:"Remove the working directory after a successful build"`
}

// apply writes the set flags into cfg and validates the result.
func (o *Overrides) apply(cfg *config.Config) error {
	if len(o.Modules) > 0 {
		cfg.Modules = o.Modules
	}
	if o.OutputDir != "" {
		cfg.OutputDir = o.OutputDir
	}
	if o.SphinxBuild != "" {
		cfg.Sphinx.Build = o.SphinxBuild
	}
	if len(o.PythonPath) > 0 {
		cfg.PythonPath = o.PythonPath
	}
	if len(o.TemplateDirs) > 0 {
		cfg.Templates.Dirs = o.TemplateDirs
	}
	if len(o.Scripts) > 0 {
		cfg.Scripts = o.Scripts
	}
	if o.NoValidation {
		disabled := false
		cfg.Validation.Enabled = &disabled
	}
	if o.CapsDir != "" {
		cfg.Caps.Dir = o.CapsDir
	}
	if len(o.CapsLiterals) > 0 {
		cfg.Caps.Literals = o.CapsLiterals
	}
	if o.Overwrite {
		cfg.Generate.Overwrite = true
	}
	if o.Jobs > 0 {
		cfg.Generate.Jobs = o.Jobs
	}
	if o.CleanTemp {
		cfg.Sphinx.CleanTemp = true
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return dberrors.WrapError(err, dberrors.CategoryUsage, "invalid command line option").Fatal().Build()
	}
	return nil
}
