package generate

import (
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/sphinkydoc/internal/logfields"
	"git.home.luguber.info/inful/sphinkydoc/internal/metrics"
	"git.home.luguber.info/inful/sphinkydoc/internal/pysource"
	"git.home.luguber.info/inful/sphinkydoc/internal/shscript"
	"git.home.luguber.info/inful/sphinkydoc/internal/templating"
)

// Template names looked up in the environment.
const (
	ModuleTemplate        = "sphinkydoc/module.rst"
	ScriptTemplate        = "sphinkydoc/script.rst"
	ScriptOptionsTemplate = "sphinkydoc/script_options.rst"
	IndexTemplate         = "sphinkydoc/index.rst"
	ConfigTemplate        = "sphinkydoc/conf.py"
)

const (
	DefaultDocExt      = "rst"
	DefaultHelpTimeout = 10 * time.Second
	DefaultPython      = "python3"
)

// Options tunes generation.
type Options struct {
	Overwrite bool
	DryRun    bool
	// DocExt is the documentation source extension, without dot.
	DocExt string
	// HelpTimeout bounds each script --help run.
	HelpTimeout time.Duration
	// Python is the interpreter used for Python script help runs.
	Python string
	// Jobs bounds parallel generation in AllDoc. Values below 1 mean 1.
	Jobs int
}

func (o Options) withDefaults() Options {
	if o.DocExt == "" {
		o.DocExt = DefaultDocExt
	}
	o.DocExt = strings.TrimPrefix(o.DocExt, ".")
	if o.HelpTimeout <= 0 {
		o.HelpTimeout = DefaultHelpTimeout
	}
	if o.Python == "" {
		o.Python = DefaultPython
	}
	if o.Jobs < 1 {
		o.Jobs = 1
	}
	return o
}

// Generator renders documents into OutputDir.
type Generator struct {
	Env       *templating.Environment
	Resolver  *pysource.Resolver
	OutputDir string
	Options   Options
	Sandbox   *shscript.Sandbox
	Recorder  metrics.Recorder
	Logger    *slog.Logger
}

// New returns a generator with defaulted options, the default shell
// sandbox and no metrics.
func New(env *templating.Environment, resolver *pysource.Resolver, outputDir string, opts Options) *Generator {
	return &Generator{
		Env:       env,
		Resolver:  resolver,
		OutputDir: filepath.Clean(outputDir),
		Options:   opts.withDefaults(),
		Sandbox:   shscript.NewSandbox(),
		Recorder:  metrics.NoopRecorder{},
		Logger:    slog.Default(),
	}
}

func (g *Generator) logger() *slog.Logger {
	if g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}

func (g *Generator) opts() Options { return g.Options.withDefaults() }

// docName is the output file name of a document subject.
func (g *Generator) docName(subject string) string {
	return subject + "." + g.opts().DocExt
}

// write stores content at rel and records the outcome.
func (g *Generator) write(kind Kind, rel, content string) (string, error) {
	opts := g.opts()
	res, err := templating.WriteGeneratedFile(g.OutputDir, rel, content, templating.WriteOptions{
		Overwrite: opts.Overwrite,
		DryRun:    opts.DryRun,
	})
	rec := metrics.OrNoop(g.Recorder)
	switch {
	case err != nil:
		rec.IncDocument(string(kind), metrics.DocumentFailed)
		return "", err
	case res.Written:
		rec.IncDocument(string(kind), metrics.DocumentWritten)
		g.logger().Debug("Wrote document", logfields.Kind(string(kind)), logfields.Path(res.Path))
	default:
		rec.IncDocument(string(kind), metrics.DocumentSkipped)
		g.logger().Debug("Kept existing document", logfields.Kind(string(kind)), logfields.Path(res.Path))
	}
	return res.Path, nil
}

func (g *Generator) fail(kind Kind, subject string, err error) error {
	metrics.OrNoop(g.Recorder).IncDocument(string(kind), metrics.DocumentFailed)
	return generationError(kind, subject, err)
}
