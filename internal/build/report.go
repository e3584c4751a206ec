package build

import (
	"fmt"
	"time"

	"git.home.luguber.info/inful/sphinkydoc/internal/caps"
	"git.home.luguber.info/inful/sphinkydoc/internal/generate"
	"git.home.luguber.info/inful/sphinkydoc/internal/metrics"
	"git.home.luguber.info/inful/sphinkydoc/internal/projectmeta"
)

// Outcome is the final state of a build.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeWarning  Outcome = "warning"
	OutcomeFailed   Outcome = "failed"
	OutcomeCanceled Outcome = "canceled"
)

func (o Outcome) label() metrics.BuildOutcomeLabel {
	switch o {
	case OutcomeWarning:
		return metrics.BuildOutcomeWarning
	case OutcomeFailed:
		return metrics.BuildOutcomeFailed
	case OutcomeCanceled:
		return metrics.BuildOutcomeCanceled
	default:
		return metrics.BuildOutcomeSuccess
	}
}

// Report captures what a build did.
type Report struct {
	BuildID string
	Start   time.Time
	End     time.Time
	DryRun  bool

	StageDurations map[StageName]time.Duration
	StageResults   map[StageName]StageResult
	// Errors are fatal stage errors (at most one).
	Errors []error
	// Warnings are non-fatal problems, one per failed item or stage.
	Warnings []error

	// DocsFiles are the hand-written pages copied into the working dir.
	DocsFiles []caps.File
	// CapsFiles are the rendered caps pages.
	CapsFiles  []caps.File
	Categories caps.Categories
	// Generated are module and script pages.
	Generated []string
	Failures  []*generate.GenerationError
	// Templates are skeleton files rendered by the template pass.
	Templates []string
	Index     string
	Config    string
	Meta      projectmeta.Resolved

	// BuildErr is the build tool failure, if any. It does not make Run
	// return an error.
	BuildErr error
	// HTML describes the built site after a successful build.
	HTML *HTMLSummary

	Outcome Outcome
}

func newReport(buildID string, dryRun bool) *Report {
	return &Report{
		BuildID:        buildID,
		Start:          time.Now(),
		DryRun:         dryRun,
		StageDurations: make(map[StageName]time.Duration),
		StageResults:   make(map[StageName]StageResult),
	}
}

func (r *Report) recordStage(stage StageName, d time.Duration, res StageResult, se *StageError, recorder metrics.Recorder) {
	r.StageDurations[stage] = d
	r.StageResults[stage] = res
	if se != nil {
		switch se.Kind {
		case StageErrorWarning:
			r.Warnings = append(r.Warnings, se)
		default:
			r.Errors = append(r.Errors, se)
		}
	}
	recorder.ObserveStageDuration(string(stage), d)
	recorder.IncStageResult(string(stage), res.label())
}

// finish stamps the end time and derives the outcome.
func (r *Report) finish() {
	r.End = time.Now()
	switch {
	case r.StageResults[lastStageRun(r)] == StageResultCanceled:
		r.Outcome = OutcomeCanceled
	case len(r.Errors) > 0 || r.BuildErr != nil:
		r.Outcome = OutcomeFailed
	case len(r.Warnings) > 0:
		r.Outcome = OutcomeWarning
	default:
		r.Outcome = OutcomeSuccess
	}
}

func lastStageRun(r *Report) StageName {
	var last StageName
	for _, st := range stageOrder {
		if _, ok := r.StageResults[st]; ok {
			last = st
		}
	}
	return last
}

// Duration is the wall time of the build.
func (r *Report) Duration() time.Duration {
	if r.End.IsZero() {
		return time.Since(r.Start)
	}
	return r.End.Sub(r.Start)
}

// Summary returns a human-readable single-line summary.
func (r *Report) Summary() string {
	pages := 0
	if r.HTML != nil {
		pages = r.HTML.Pages
	}
	return fmt.Sprintf("build=%s outcome=%s duration=%s caps=%d docs=%d generated=%d failures=%d warnings=%d html_pages=%d",
		r.BuildID, r.Outcome, r.Duration().Truncate(time.Millisecond),
		len(r.CapsFiles), len(r.DocsFiles), len(r.Generated), len(r.Failures), len(r.Warnings), pages)
}
