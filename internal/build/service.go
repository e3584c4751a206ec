package build

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/sphinkydoc/internal/config"
	dberrors "git.home.luguber.info/inful/sphinkydoc/internal/foundation/errors"
	"git.home.luguber.info/inful/sphinkydoc/internal/generate"
	"git.home.luguber.info/inful/sphinkydoc/internal/logfields"
	"git.home.luguber.info/inful/sphinkydoc/internal/metrics"
	"git.home.luguber.info/inful/sphinkydoc/internal/projectmeta"
	"git.home.luguber.info/inful/sphinkydoc/internal/pysource"
	"git.home.luguber.info/inful/sphinkydoc/internal/templating"
	"git.home.luguber.info/inful/sphinkydoc/internal/workspace"
)

// Service executes documentation builds. The CLI build and watch commands
// both route through it.
type Service interface {
	Run(ctx context.Context, req Request) (*Report, error)
}

// Request contains all inputs of one build.
type Request struct {
	Config *config.Config
	// DryRun logs what would be written and skips the build tool.
	DryRun bool
}

// GitReader reads repository metadata for a directory.
type GitReader func(dir string, logger *slog.Logger) (*projectmeta.GitInfo, error)

// DefaultService is the standard Service.
type DefaultService struct {
	renderer  Renderer
	recorder  metrics.Recorder
	logger    *slog.Logger
	gitReader GitReader
	skeleton  fs.FS
}

var _ Service = (*DefaultService)(nil)

// NewService returns a service building with sphinx-build as configured
// per request, no metrics and the built-in skeleton.
func NewService(logger *slog.Logger) *DefaultService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultService{
		recorder:  metrics.NoopRecorder{},
		logger:    logger,
		gitReader: projectmeta.ReadGit,
	}
}

// WithRenderer replaces the configured build tool (used by tests).
func (s *DefaultService) WithRenderer(r Renderer) *DefaultService {
	s.renderer = r
	return s
}

// WithRecorder sets the metrics recorder.
func (s *DefaultService) WithRecorder(r metrics.Recorder) *DefaultService {
	s.recorder = metrics.OrNoop(r)
	return s
}

// WithGitReader replaces repository metadata lookup.
func (s *DefaultService) WithGitReader(g GitReader) *DefaultService {
	s.gitReader = g
	return s
}

// WithSkeleton replaces the skeleton copied into the working directory.
func (s *DefaultService) WithSkeleton(skeleton fs.FS) *DefaultService {
	s.skeleton = skeleton
	return s
}

// stageOrder is the fixed pipeline.
var stageOrder = []StageName{
	StagePrepareDirs,
	StageClassify,
	StageGenerate,
	StageRenderIndexConfig,
	StageValidate,
	StageBuild,
}

func pipeline() []StageDef {
	fns := map[StageName]Stage{
		StagePrepareDirs:       stagePrepareDirs,
		StageClassify:          stageClassify,
		StageGenerate:          stageGenerate,
		StageRenderIndexConfig: stageRenderIndexConfig,
		StageValidate:          stageValidate,
		StageBuild:             stageBuild,
	}
	defs := make([]StageDef, 0, len(stageOrder))
	for _, name := range stageOrder {
		defs = append(defs, StageDef{Name: name, Fn: fns[name]})
	}
	return defs
}

// buildState is shared by the stages of one build.
type buildState struct {
	cfg       *config.Config
	dryRun    bool
	ws        *workspace.Manager
	env       *templating.Environment
	resolver  *pysource.Resolver
	gen       *generate.Generator
	renderer  Renderer
	recorder  metrics.Recorder
	logger    *slog.Logger
	gitReader GitReader
	skeleton  fs.FS
	report    *Report
}

// Run executes the pipeline. Fatal stage errors are returned as classified
// errors together with the report; a failing build tool is only recorded
// in Report.BuildErr.
func (s *DefaultService) Run(ctx context.Context, req Request) (*Report, error) {
	buildID := uuid.NewString()
	report := newReport(buildID, req.DryRun)
	logger := s.logger.With(logfields.BuildID(buildID))

	if req.Config == nil {
		report.Errors = append(report.Errors, ErrNoConfig)
		report.finish()
		s.recorder.IncBuildOutcome(report.Outcome.label())
		return report, dberrors.ConfigError("config required").WithCause(ErrNoConfig).Build()
	}
	cfg := req.Config

	env, err := templating.New(cfg.Templates.Dirs, templating.WithLogger(logger))
	if err != nil {
		report.Errors = append(report.Errors, err)
		report.finish()
		s.recorder.IncBuildOutcome(report.Outcome.label())
		return report, dberrors.WrapError(err, dberrors.CategoryTemplate, "failed to create template environment").Build()
	}

	resolver := pysource.NewResolver(cfg.PythonPath, logger)
	ws := workspace.NewManager(cfg.OutputDir, req.DryRun, logger)

	gen := generate.New(env, resolver, ws.TempDir(), generate.Options{
		Overwrite:   cfg.Generate.Overwrite,
		DryRun:      req.DryRun,
		DocExt:      cfg.Generate.DocExt,
		HelpTimeout: cfg.Generate.HelpTimeout,
		Python:      cfg.Generate.Python,
		Jobs:        cfg.Generate.Jobs,
	})
	gen.Recorder = s.recorder
	gen.Logger = logger

	renderer := s.renderer
	if renderer == nil {
		renderer = &BinaryRenderer{
			Binary:   cfg.Sphinx.Build,
			Args:     cfg.Sphinx.Args,
			Timeout:  cfg.Sphinx.Timeout,
			Recorder: s.recorder,
			Logger:   logger,
		}
	}

	skeleton := s.skeleton
	if skeleton == nil && cfg.Templates.Skeleton != "" {
		skeleton = os.DirFS(cfg.Templates.Skeleton)
	}

	bs := &buildState{
		cfg:       cfg,
		dryRun:    req.DryRun,
		ws:        ws,
		env:       env,
		resolver:  resolver,
		gen:       gen,
		renderer:  renderer,
		recorder:  s.recorder,
		logger:    logger,
		gitReader: s.gitReader,
		skeleton:  skeleton,
		report:    report,
	}

	logger.Info("Starting build",
		slog.String("output_dir", cfg.OutputDir),
		logfields.Count(len(cfg.Modules)),
		slog.Bool("dry_run", req.DryRun))

	runErr := runStages(ctx, bs, pipeline())
	report.finish()
	s.recorder.ObserveBuildDuration(report.Duration())
	s.recorder.IncBuildOutcome(report.Outcome.label())

	logger.Info("Build finished",
		slog.String("outcome", string(report.Outcome)),
		logfields.DurationMS(float64(report.Duration().Milliseconds())))

	if runErr != nil {
		return report, classifyRunError(runErr)
	}
	return report, nil
}

// classifyRunError attaches the error category used for the exit code.
func classifyRunError(err error) error {
	if dberrors.IsClassified(err) {
		return err
	}
	var se *StageError
	stage := ""
	if errors.As(err, &se) {
		stage = string(se.Stage)
		if dberrors.IsClassified(se.Err) {
			return err
		}
	}
	var b *dberrors.ErrorBuilder
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		b = dberrors.WrapError(err, dberrors.CategoryInternal, "build canceled")
	case errors.Is(err, ErrValidationFailed):
		b = dberrors.WrapError(err, dberrors.CategoryValidation, "generated configuration failed validation")
	case isTemplateError(err):
		b = dberrors.WrapError(err, dberrors.CategoryTemplate, "template rendering failed")
	default:
		b = dberrors.WrapError(err, dberrors.CategoryFileSystem, "build stage failed")
	}
	return b.WithContext("stage", stage).Fatal().Build()
}

func isTemplateError(err error) bool {
	var re *templating.RenderError
	return errors.As(err, &re) || errors.Is(err, templating.ErrTemplateNotFound)
}

// elapsedMS is a log helper.
func elapsedMS(start time.Time) slog.Attr {
	return logfields.DurationMS(float64(time.Since(start).Microseconds()) / 1000)
}
