// Package observability exposes run metrics as Prometheus collectors that
// can be written to a node-exporter textfile at the end of a batch run.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Member outcome labels.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Metrics contains every collector of a run, registered on a private
// registry.
type Metrics struct {
	registry *prometheus.Registry

	ScoringTasks    *prometheus.CounterVec
	ScoringDuration *prometheus.HistogramVec
	EnsembleMembers *prometheus.CounterVec
	AchievedWeight  prometheus.Gauge
	ConsensusBlocks *prometheus.GaugeVec
	RunDuration     *prometheus.HistogramVec
}

// NewMetrics creates and registers all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		ScoringTasks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ecco",
				Subsystem: "validation",
				Name:      "scoring_tasks_total",
				Help:      "Total number of partitions scored",
			},
			[]string{"metric"},
		),

		ScoringDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "ecco",
				Subsystem: "validation",
				Name:      "scoring_duration_seconds",
				Help:      "Time spent scoring one partition",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"metric"},
		),

		EnsembleMembers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ecco",
				Subsystem: "ensemble",
				Name:      "members_total",
				Help:      "Ensemble members processed by outcome",
			},
			[]string{"pair", "status"},
		),

		AchievedWeight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "ecco",
				Subsystem: "ensemble",
				Name:      "achieved_weight",
				Help:      "Total weight accumulated into the co-occurrence matrix (1 when every member succeeded)",
			},
		),

		ConsensusBlocks: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "ecco",
				Subsystem: "consensus",
				Name:      "blocks",
				Help:      "Consensus blocks found, split by whether they meet the minimum size",
			},
			[]string{"qualifying"},
		),

		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "ecco",
				Subsystem: "run",
				Name:      "duration_seconds",
				Help:      "Wall time of a validation or ensemble run",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
	}

	m.registry.MustRegister(
		m.ScoringTasks,
		m.ScoringDuration,
		m.EnsembleMembers,
		m.AchievedWeight,
		m.ConsensusBlocks,
		m.RunDuration,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveScore records one scored partition.
func (m *Metrics) ObserveScore(metric string, elapsed time.Duration) {
	m.ScoringTasks.WithLabelValues(metric).Inc()
	m.ScoringDuration.WithLabelValues(metric).Observe(elapsed.Seconds())
}

// MemberDone records the outcome of one ensemble member.
func (m *Metrics) MemberDone(pair string, err error) {
	status := StatusOK
	if err != nil {
		status = StatusFailed
	}
	m.EnsembleMembers.WithLabelValues(pair, status).Inc()
}

// SetAchievedWeight records the accumulated weight of an ensemble.
func (m *Metrics) SetAchievedWeight(w float64) {
	m.AchievedWeight.Set(w)
}

// SetBlocks records how many blocks were found.
func (m *Metrics) SetBlocks(qualifying, other int) {
	m.ConsensusBlocks.WithLabelValues("true").Set(float64(qualifying))
	m.ConsensusBlocks.WithLabelValues("false").Set(float64(other))
}

// ObserveRun records the duration of a run.
func (m *Metrics) ObserveRun(kind string, elapsed time.Duration) {
	m.RunDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// WriteTextfile writes the current values in the text exposition format.
// An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
