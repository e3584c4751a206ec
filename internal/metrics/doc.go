// Package metrics records build, stage and document metrics for sphinkydoc.
//
// Components receive a Recorder and default to NoopRecorder, so callers
// never check for nil:
//
//	g := generate.New(env, resolver, out, opts)
//	g.Recorder = metrics.NewPrometheusRecorder(reg)
//
// PrometheusRecorder registers its collectors on a caller supplied
// registry. A CLI run exports that registry once at exit with
// WriteTextfile, for pickup by the node exporter textfile collector.
package metrics
