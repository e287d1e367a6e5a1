package pipeline

import (
	"fmt"
	"runtime"

	"ecco/internal/config"
	"ecco/internal/logger"
	"ecco/internal/mergetree"
	"ecco/internal/validation"
)

// Builder helps construct a fully configured Pipeline
type Builder struct {
	config   *config.Config
	store    RunStore
	recorder Recorder
}

// NewBuilder creates a new pipeline builder with default settings
func NewBuilder() *Builder {
	return &Builder{}
}

// WithConfig sets the configuration used for the engine and worker pool
func (b *Builder) WithConfig(cfg *config.Config) *Builder {
	b.config = cfg
	return b
}

// WithStore enables run persistence
func (b *Builder) WithStore(store RunStore) *Builder {
	b.store = store
	return b
}

// WithRecorder attaches a metrics recorder
func (b *Builder) WithRecorder(recorder Recorder) *Builder {
	b.recorder = recorder
	return b
}

// Build constructs a fully configured Pipeline
func (b *Builder) Build() (*Pipeline, error) {
	engine := validation.NewEngine()
	workers := runtime.NumCPU()
	eps := mergetree.DefaultTieEpsilon

	if cfg := b.config; cfg != nil {
		if cfg.Ensemble.TieEpsilon < 0 {
			return nil, fmt.Errorf("tie epsilon must not be negative, got %v", cfg.Ensemble.TieEpsilon)
		}
		engine = engine.
			WithWorkers(cfg.Validation.Workers).
			WithRange(cfg.Validation.MinK, cfg.Validation.MaxK).
			WithMaxCandidates(cfg.Validation.MaxCandidates)
		workers = engine.Workers()
		if cfg.Ensemble.TieEpsilon > 0 {
			eps = cfg.Ensemble.TieEpsilon
		}
	}
	if b.recorder != nil {
		engine = engine.WithRecorder(b.recorder)
	}

	return &Pipeline{
		engine:     engine,
		workers:    workers,
		tieEpsilon: eps,
		store:      b.store,
		recorder:   b.recorder,
		log:        logger.Component("pipeline"),
	}, nil
}
