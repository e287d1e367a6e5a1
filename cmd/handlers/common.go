package handlers

import (
	"fmt"
	"os"
	"path/filepath"

	"ecco/internal/config"
	"ecco/internal/dataset"
	"ecco/internal/logger"
	"ecco/internal/observability"
	"ecco/internal/pipeline"
	"ecco/internal/store"
)

// runEnv bundles what a run command needs.
type runEnv struct {
	cfg      *config.Config
	store    *store.Store
	metrics  *observability.Metrics
	pipeline *pipeline.Pipeline
}

// newRunEnv opens the optional store and builds the pipeline.
func newRunEnv(cfg *config.Config, persist bool) (*runEnv, error) {
	env := &runEnv{cfg: cfg, metrics: observability.NewMetrics()}

	b := pipeline.NewBuilder().WithConfig(cfg).WithRecorder(env.metrics)
	if persist && cfg.Store.Enabled {
		st, err := store.NewStore(cfg.App.DataDir)
		if err != nil {
			// Non-fatal: results are still printed and exported
			logger.Warn(fmt.Sprintf("run store unavailable: %v", err))
		} else {
			env.store = st
			b = b.WithStore(st)
		}
	}

	p, err := b.Build()
	if err != nil {
		env.close()
		return nil, err
	}
	env.pipeline = p
	return env, nil
}

// close flushes metrics and closes the store.
func (e *runEnv) close() {
	if err := e.metrics.WriteTextfile(e.cfg.Metrics.TextfilePath); err != nil {
		logger.Error("failed to write metrics textfile", err)
	}
	if e.store != nil {
		_ = e.store.Close()
	}
}

func loadTable(path string, dropTrailing int, noHeader bool) (*dataset.Table, error) {
	opts := dataset.DefaultOptions()
	opts.DropTrailing = dropTrailing
	opts.Header = !noHeader
	return dataset.LoadFile(path, opts)
}

// createOutput creates a file under the output directory.
func createOutput(dir, name string) (*os.File, string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, "", fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, path, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
