package observability

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveScore(t *testing.T) {
	m := NewMetrics()
	m.ObserveScore("dunn", 2*time.Millisecond)
	m.ObserveScore("dunn", time.Millisecond)
	m.ObserveScore("pbm", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ScoringTasks.WithLabelValues("dunn")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScoringTasks.WithLabelValues("pbm")))
}

func TestMemberDone(t *testing.T) {
	m := NewMetrics()
	m.MemberDone("ward-euclidean", nil)
	m.MemberDone("ward-cosine", errors.New("unsupported"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.EnsembleMembers.WithLabelValues("ward-euclidean", StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EnsembleMembers.WithLabelValues("ward-cosine", StatusFailed)))
}

func TestGauges(t *testing.T) {
	m := NewMetrics()
	m.SetAchievedWeight(0.5)
	m.SetBlocks(3, 7)

	assert.Equal(t, 0.5, testutil.ToFloat64(m.AchievedWeight))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ConsensusBlocks.WithLabelValues("true")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.ConsensusBlocks.WithLabelValues("false")))
}

func TestWriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.ObserveRun("ensemble", time.Second)
	m.SetAchievedWeight(1)

	path := filepath.Join(t.TempDir(), "ecco.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ecco_ensemble_achieved_weight 1")
	assert.Contains(t, string(data), `ecco_run_duration_seconds_count{kind="ensemble"} 1`)

	assert.NoError(t, m.WriteTextfile(""))
}
