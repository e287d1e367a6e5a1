package pipeline

import (
	"time"

	"ecco/internal/core"
)

// RunStore persists run summaries and their results
type RunStore interface {
	SaveRun(run core.Run) error
	SaveScores(runID, metric string, scores []core.ValidationScore) error
	SaveBlocks(runID string, blocks []core.ConsensusBlock) error
	SaveCoOccurrence(runID string, rows [][]float64, totalWeight float64) error
}

// Recorder receives run level measurements
type Recorder interface {
	// ObserveScore records one scored partition
	ObserveScore(metric string, elapsed time.Duration)

	// MemberDone records the outcome of one ensemble member
	MemberDone(name string, err error)

	// SetAchievedWeight records the weight accumulated by an ensemble
	SetAchievedWeight(w float64)

	// SetBlocks records how many consensus blocks met the minimum size
	SetBlocks(qualifying, other int)

	// ObserveRun records the wall time of a run
	ObserveRun(kind string, elapsed time.Duration)
}
