package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/sphinkydoc/internal/logfields"
	"git.home.luguber.info/inful/sphinkydoc/internal/metrics"
)

// StageName identifies a pipeline stage.
type StageName string

// Canonical stage names, in execution order.
const (
	StagePrepareDirs       StageName = "prepare_dirs"
	StageClassify          StageName = "classify"
	StageGenerate          StageName = "generate"
	StageRenderIndexConfig StageName = "render_index_config"
	StageValidate          StageName = "validate"
	StageBuild             StageName = "build"
)

// Stage executes one step against the shared build state.
type Stage func(ctx context.Context, bs *buildState) error

// StageDef pairs a stage name with its function.
type StageDef struct {
	Name StageName
	Fn   Stage
}

// StageResult is the classified outcome of a stage.
type StageResult string

const (
	StageResultSuccess  StageResult = "success"
	StageResultWarning  StageResult = "warning"
	StageResultFatal    StageResult = "fatal"
	StageResultCanceled StageResult = "canceled"
	StageResultSkipped  StageResult = "skipped"
)

func (r StageResult) label() metrics.ResultLabel {
	switch r {
	case StageResultWarning:
		return metrics.ResultWarning
	case StageResultFatal:
		return metrics.ResultFatal
	case StageResultCanceled:
		return metrics.ResultCanceled
	case StageResultSkipped:
		return metrics.ResultSkipped
	default:
		return metrics.ResultSuccess
	}
}

// StageErrorKind says whether a stage error aborts the pipeline.
type StageErrorKind string

const (
	StageErrorFatal    StageErrorKind = "fatal"
	StageErrorWarning  StageErrorKind = "warning"
	StageErrorCanceled StageErrorKind = "canceled"
)

// StageError wraps a stage failure with its kind.
type StageError struct {
	Stage StageName
	Kind  StageErrorKind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func newFatalStageError(stage StageName, err error) *StageError {
	return &StageError{Stage: stage, Kind: StageErrorFatal, Err: err}
}

func newWarnStageError(stage StageName, err error) *StageError {
	return &StageError{Stage: stage, Kind: StageErrorWarning, Err: err}
}

func newCanceledStageError(stage StageName, err error) *StageError {
	return &StageError{Stage: stage, Kind: StageErrorCanceled, Err: err}
}

// errSkipStage marks a stage that had nothing to do.
var errSkipStage = errors.New("stage skipped")

// classifyStageResult maps a stage's return value to its outcome. Errors
// that are not StageErrors are fatal.
func classifyStageResult(stage StageName, err error) (StageResult, *StageError) {
	if err == nil {
		return StageResultSuccess, nil
	}
	if errors.Is(err, errSkipStage) {
		return StageResultSkipped, nil
	}
	var se *StageError
	if !errors.As(err, &se) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			se = newCanceledStageError(stage, err)
		} else {
			se = newFatalStageError(stage, err)
		}
	}
	switch se.Kind {
	case StageErrorWarning:
		return StageResultWarning, se
	case StageErrorCanceled:
		return StageResultCanceled, se
	default:
		return StageResultFatal, se
	}
}

// runStages executes stages in order, recording timing and results and
// stopping at the first fatal or canceled stage.
func runStages(ctx context.Context, bs *buildState, stages []StageDef) error {
	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			se := newCanceledStageError(st.Name, err)
			bs.report.recordStage(st.Name, 0, StageResultCanceled, se, bs.recorder)
			return se
		}

		log := bs.logger.With(logfields.Stage(string(st.Name)))
		log.Debug("Stage started")
		t0 := time.Now()
		err := st.Fn(ctx, bs)
		dur := time.Since(t0)

		res, se := classifyStageResult(st.Name, err)
		bs.report.recordStage(st.Name, dur, res, se, bs.recorder)
		log.Debug("Stage finished",
			slog.String("result", string(res)),
			logfields.DurationMS(float64(dur.Microseconds())/1000))

		switch res {
		case StageResultFatal, StageResultCanceled:
			return se
		case StageResultWarning:
			log.Warn("Stage completed with warnings", logfields.Error(se.Err))
		}
	}
	return nil
}
