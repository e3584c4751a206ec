package generate

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/sphinkydoc/internal/logfields"
	"git.home.luguber.info/inful/sphinkydoc/internal/metrics"
)

// Result collects the outcome of AllDoc.
type Result struct {
	// Paths are the documents produced, module trees first in root order,
	// then scripts in the given order.
	Paths []string
	// Failures are the roots and scripts that could not be documented.
	Failures []*GenerationError
}

// AllDoc documents every module tree and then every script. Roots and
// scripts run with at most Options.Jobs in flight since their outputs are
// disjoint. Per-subject failures are logged and collected; only
// cancellation is returned as an error.
func (g *Generator) AllDoc(ctx context.Context, modules, scripts []string) (*Result, error) {
	jobs := g.opts().Jobs
	metrics.OrNoop(g.Recorder).SetGenerateJobs(jobs)

	modulePaths := make([][]string, len(modules))
	scriptPaths := make([]string, len(scripts))
	var (
		mu       sync.Mutex
		failures []*GenerationError
	)
	record := func(err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		var ge *GenerationError
		if !errors.As(err, &ge) {
			ge = &GenerationError{Err: err}
		}
		g.logger().Warn("Document generation failed",
			logfields.Name(ge.Subject),
			logfields.Kind(string(ge.Kind)),
			logfields.Error(ge.Err))
		mu.Lock()
		failures = append(failures, ge)
		mu.Unlock()
		return nil
	}

	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(jobs)
	for i, m := range modules {
		eg.Go(func() error {
			paths, err := g.RecursiveModuleDoc(ectx, m)
			modulePaths[i] = paths
			if err != nil {
				return record(err)
			}
			return nil
		})
	}
	for i, s := range scripts {
		eg.Go(func() error {
			path, err := g.ScriptDoc(ectx, s)
			if err != nil {
				return record(err)
			}
			scriptPaths[i] = path
			return nil
		})
	}
	err := eg.Wait()

	res := &Result{Failures: failures}
	for _, paths := range modulePaths {
		res.Paths = append(res.Paths, paths...)
	}
	for _, p := range scriptPaths {
		if p != "" {
			res.Paths = append(res.Paths, p)
		}
	}
	return res, err
}
