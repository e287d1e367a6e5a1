package core

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedTree is returned when a merge tree does not describe a
	// valid sequence of merges over its declared items.
	ErrMalformedTree = errors.New("malformed merge tree")

	// ErrDegenerateCluster is returned when a dataset is too small for any
	// validity index to be meaningful.
	ErrDegenerateCluster = errors.New("degenerate clustering")

	// ErrUnsupportedPair is returned for linkage/metric combinations that
	// cannot be computed, such as ward with a non-euclidean metric.
	ErrUnsupportedPair = errors.New("unsupported linkage/metric pair")

	// ErrUnknownMetric is returned for unrecognised metric names.
	ErrUnknownMetric = errors.New("unknown metric")
)

// MalformedTreeError describes why a merge tree was rejected.
type MalformedTreeError struct {
	Step   int // event index, -1 when the tree shape itself is wrong
	NodeID int
	Reason string
}

func (e *MalformedTreeError) Error() string {
	if e.Step < 0 {
		return fmt.Sprintf("malformed merge tree: %s", e.Reason)
	}
	return fmt.Sprintf("malformed merge tree at event %d (node %d): %s", e.Step, e.NodeID, e.Reason)
}

func (e *MalformedTreeError) Unwrap() error {
	return ErrMalformedTree
}

// NewMalformedTreeError builds a MalformedTreeError for an event.
func NewMalformedTreeError(step, nodeID int, reason string) error {
	return &MalformedTreeError{Step: step, NodeID: nodeID, Reason: reason}
}
