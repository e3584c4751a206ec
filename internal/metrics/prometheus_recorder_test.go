package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStageDuration("generate", 150*time.Millisecond)
	pr.ObserveBuildDuration(500 * time.Millisecond)
	pr.IncStageResult("generate", ResultSuccess)
	pr.IncBuildOutcome(BuildOutcomeSuccess)
	pr.IncDocument("module", DocumentWritten)
	pr.ObserveSubprocess("sphinx-build", time.Second, true)
	pr.SetGenerateJobs(4)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(mfs))
	for _, mf := range mfs {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "sphinkydoc_documents_total")
	assert.Contains(t, names, "sphinkydoc_stage_duration_seconds")
	assert.Contains(t, names, "sphinkydoc_generate_jobs")
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	assert.NotPanics(t, func() {
		pr.IncDocument("script", DocumentFailed)
		pr.ObserveBuildDuration(time.Second)
	})
}

func TestOrNoop(t *testing.T) {
	assert.Equal(t, NoopRecorder{}, OrNoop(nil))
	rec := newTestRecorder()
	assert.Same(t, rec, OrNoop(rec))
}

func TestWriteTextfile(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncBuildOutcome(BuildOutcomeWarning)

	path := filepath.Join(t.TempDir(), "out", "sphinkydoc.prom")
	require.NoError(t, WriteTextfile(path, reg))

	data, err := os.ReadFile(path) // #nosec G304 -- test temp file
	require.NoError(t, err)
	assert.Contains(t, string(data), `sphinkydoc_build_outcomes_total{outcome="warning"} 1`)
}

func TestWriteTextfileRequiresRegistry(t *testing.T) {
	require.Error(t, WriteTextfile(filepath.Join(t.TempDir(), "x.prom"), nil))
}
