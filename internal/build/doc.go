// Package build runs the documentation build pipeline.
//
// A build moves through fixed stages: prepare_dirs, classify, generate,
// render_index_config, validate and build. Failures inside classify and
// generate are recorded per item as warnings; prepare_dirs, validate and
// failures of the top-level templates abort the run. The external build
// tool is invoked last and its failure is recorded in the Report rather
// than returned, so callers decide how to surface it.
package build
