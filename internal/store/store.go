package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"ecco/internal/core"
)

// Store persists validation and ensemble runs in SQLite
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new store instance with SQLite database
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "ecco.db")
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{
		db:   db,
		path: dbPath,
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// initialize creates the necessary tables
func (s *Store) initialize() error {
	runsTable := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		source TEXT,
		items INTEGER,
		clusters INTEGER,
		achieved_weight REAL,
		created_at DATETIME
	);`

	scoresTable := `
	CREATE TABLE IF NOT EXISTS validation_scores (
		run_id TEXT NOT NULL,
		metric TEXT NOT NULL,
		k INTEGER NOT NULL,
		score REAL,
		PRIMARY KEY (run_id, metric, k),
		FOREIGN KEY (run_id) REFERENCES runs (id) ON DELETE CASCADE
	);`

	blocksTable := `
	CREATE TABLE IF NOT EXISTS consensus_blocks (
		run_id TEXT NOT NULL,
		block_index INTEGER NOT NULL,
		start_pos INTEGER,
		end_pos INTEGER,
		members TEXT,
		meets_min_size BOOLEAN,
		PRIMARY KEY (run_id, block_index),
		FOREIGN KEY (run_id) REFERENCES runs (id) ON DELETE CASCADE
	);`

	matrixTable := `
	CREATE TABLE IF NOT EXISTS cooccurrence (
		run_id TEXT PRIMARY KEY,
		size INTEGER,
		total_weight REAL,
		rows TEXT,
		FOREIGN KEY (run_id) REFERENCES runs (id) ON DELETE CASCADE
	);`

	tables := []string{runsTable, scoresTable, blocksTable, matrixTable}
	for _, table := range tables {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores or replaces a run summary
func (s *Store) SaveRun(run core.Run) error {
	query := `
	INSERT OR REPLACE INTO runs
	(id, kind, source, items, clusters, achieved_weight, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.Exec(query,
		run.ID,
		string(run.Kind),
		run.Source,
		run.Items,
		run.Clusters,
		run.AchievedWeight,
		run.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun retrieves a run by id. A missing run returns nil, nil.
func (s *Store) GetRun(id string) (*core.Run, error) {
	query := `
	SELECT id, kind, source, items, clusters, achieved_weight, created_at
	FROM runs WHERE id = ?`

	run, err := scanRun(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	return run, nil
}

// FindRunByPartialID resolves a unique id prefix, as printed by runs list
func (s *Store) FindRunByPartialID(prefix string) (*core.Run, error) {
	query := `
	SELECT id, kind, source, items, clusters, achieved_weight, created_at
	FROM runs WHERE id LIKE ? ORDER BY created_at DESC LIMIT 2`

	rows, err := s.db.Query(query, prefix+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var found []*core.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("run id prefix %q is ambiguous", prefix)
	}
}

// ListRuns returns the most recent runs, newest first
func (s *Store) ListRuns(limit int) ([]core.Run, error) {
	query := `
	SELECT id, kind, source, items, clusters, achieved_weight, created_at
	FROM runs ORDER BY created_at DESC LIMIT ?`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []core.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and everything recorded for it
func (s *Store) DeleteRun(id string) error {
	if _, err := s.db.Exec("DELETE FROM runs WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*core.Run, error) {
	var run core.Run
	var kind string
	err := row.Scan(
		&run.ID,
		&kind,
		&run.Source,
		&run.Items,
		&run.Clusters,
		&run.AchievedWeight,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Kind = core.RunKind(kind)
	return &run, nil
}

// SaveScores stores one metric's validation series for a run
func (s *Store) SaveScores(runID, metric string, scores []core.ValidationScore) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO validation_scores (run_id, metric, k, score) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, sc := range scores {
		if _, err := stmt.Exec(runID, metric, sc.K, sc.Score); err != nil {
			return fmt.Errorf("failed to save score for K=%d: %w", sc.K, err)
		}
	}
	return tx.Commit()
}

// GetScores returns every stored series for a run keyed by metric, each
// ordered by K
func (s *Store) GetScores(runID string) (map[string][]core.ValidationScore, error) {
	rows, err := s.db.Query(`SELECT metric, k, score FROM validation_scores WHERE run_id = ? ORDER BY metric, k`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scores: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]core.ValidationScore)
	for rows.Next() {
		var metric string
		var sc core.ValidationScore
		if err := rows.Scan(&metric, &sc.K, &sc.Score); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		out[metric] = append(out[metric], sc)
	}
	return out, rows.Err()
}

// SaveBlocks replaces the consensus blocks of a run
func (s *Store) SaveBlocks(runID string, blocks []core.ConsensusBlock) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM consensus_blocks WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to clear blocks: %w", err)
	}

	stmt, err := tx.Prepare(`
	INSERT INTO consensus_blocks (run_id, block_index, start_pos, end_pos, members, meets_min_size)
	VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, b := range blocks {
		members, err := json.Marshal(b.Members)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(runID, i, b.Start, b.End, string(members), b.MeetsMinSize); err != nil {
			return fmt.Errorf("failed to save block %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// GetBlocks returns the consensus blocks of a run in scan order
func (s *Store) GetBlocks(runID string) ([]core.ConsensusBlock, error) {
	rows, err := s.db.Query(`
	SELECT start_pos, end_pos, members, meets_min_size
	FROM consensus_blocks WHERE run_id = ? ORDER BY block_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query blocks: %w", err)
	}
	defer rows.Close()

	var blocks []core.ConsensusBlock
	for rows.Next() {
		var b core.ConsensusBlock
		var members string
		if err := rows.Scan(&b.Start, &b.End, &members, &b.MeetsMinSize); err != nil {
			return nil, fmt.Errorf("failed to scan block: %w", err)
		}
		if err := json.Unmarshal([]byte(members), &b.Members); err != nil {
			return nil, fmt.Errorf("failed to decode block members: %w", err)
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

// SaveCoOccurrence stores the co-occurrence matrix of an ensemble run
func (s *Store) SaveCoOccurrence(runID string, rows [][]float64, totalWeight float64) error {
	data, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to encode matrix: %w", err)
	}
	_, err = s.db.Exec(`
	INSERT OR REPLACE INTO cooccurrence (run_id, size, total_weight, rows)
	VALUES (?, ?, ?, ?)`, runID, len(rows), totalWeight, string(data))
	if err != nil {
		return fmt.Errorf("failed to save matrix: %w", err)
	}
	return nil
}

// GetCoOccurrence returns the stored matrix rows and total weight. A
// missing matrix returns nil rows and no error.
func (s *Store) GetCoOccurrence(runID string) ([][]float64, float64, error) {
	var data string
	var weight float64
	err := s.db.QueryRow(`SELECT rows, total_weight FROM cooccurrence WHERE run_id = ?`, runID).Scan(&data, &weight)
	if err == sql.ErrNoRows {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to scan matrix: %w", err)
	}

	var rows [][]float64
	if err := json.Unmarshal([]byte(data), &rows); err != nil {
		return nil, 0, fmt.Errorf("failed to decode matrix: %w", err)
	}
	return rows, weight, nil
}

// Stats represents store statistics
type Stats struct {
	RunCount    int
	ScoreCount  int
	BlockCount  int
	Size        int64
	LastUpdated time.Time
}

// GetStats returns statistics about the store
func (s *Store) GetStats() (*Stats, error) {
	stats := &Stats{}

	queries := map[string]*int{
		"SELECT COUNT(*) FROM runs":              &stats.RunCount,
		"SELECT COUNT(*) FROM validation_scores": &stats.ScoreCount,
		"SELECT COUNT(*) FROM consensus_blocks":  &stats.BlockCount,
	}

	for query, target := range queries {
		if err := s.db.QueryRow(query).Scan(target); err != nil {
			return nil, fmt.Errorf("failed to get count: %w", err)
		}
	}

	if fileInfo, err := os.Stat(s.path); err == nil {
		stats.Size = fileInfo.Size()
		stats.LastUpdated = fileInfo.ModTime()
	}

	return stats, nil
}

// CleanupOldRuns removes runs older than maxAge
func (s *Store) CleanupOldRuns(maxAge time.Duration) (int64, error) {
	res, err := s.db.Exec("DELETE FROM runs WHERE created_at < ?", time.Now().UTC().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("failed to clean old runs: %w", err)
	}
	return res.RowsAffected()
}
