package render

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"ecco/internal/core"
	"ecco/internal/validation"
)

// BlockFilePrefix names the membership files written by WriteBlocks.
const BlockFilePrefix = "EnsembleCluster"

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteValidationCSV writes one row per metric and K with the raw and
// normalized score.
func WriteValidationCSV(w io.Writer, series []validation.Series) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"metric", "k", "score", "normalized"}); err != nil {
		return err
	}
	for _, s := range series {
		norm := s.Normalized()
		for i, v := range s.Scores {
			rec := []string{s.Metric, strconv.Itoa(v.K), formatFloat(v.Score), formatFloat(norm[i].Score)}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCoOccurrenceCSV writes the matrix with a header of item identifiers.
func WriteCoOccurrenceCSV(w io.Writer, rows [][]float64, ids []string) error {
	cw := csv.NewWriter(w)
	header := make([]string, len(rows)+1)
	header[0] = "id"
	for i := range rows {
		header[i+1] = identifier(ids, i)
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, row := range rows {
		rec := make([]string, len(row)+1)
		rec[0] = identifier(ids, i)
		for j, v := range row {
			rec[j+1] = formatFloat(v)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteBlocks writes one membership file per block meeting the minimum size
// into dir: the identifier of each member followed by its coordinates.
// Files are numbered after any membership files already in dir. data and
// columns may be nil.
func WriteBlocks(dir string, blocks []core.ConsensusBlock, ids []string, data *mat.Dense, columns []string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	next, err := nextBlockNumber(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, b := range blocks {
		if !b.MeetsMinSize {
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("%s%02d.csv", BlockFilePrefix, next))
		if err := writeBlockFile(path, b, ids, data, columns); err != nil {
			return paths, err
		}
		paths = append(paths, path)
		next++
	}
	return paths, nil
}

func writeBlockFile(path string, b core.ConsensusBlock, ids []string, data *mat.Dense, columns []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	dim := 0
	if data != nil {
		_, dim = data.Dims()
	}
	header := []string{"id", "item"}
	for j := 0; j < dim; j++ {
		if j < len(columns) {
			header = append(header, columns[j])
		} else {
			header = append(header, fmt.Sprintf("M%d", j+1))
		}
	}

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, item := range b.Members {
		rec := []string{identifier(ids, item), strconv.Itoa(item)}
		for j := 0; j < dim; j++ {
			rec = append(rec, formatFloat(data.At(item, j)))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func nextBlockNumber(dir string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, BlockFilePrefix+"*.csv"))
	if err != nil {
		return 0, err
	}
	used := 0
	for _, m := range matches {
		base := filepath.Base(m)
		n, err := strconv.Atoi(base[len(BlockFilePrefix) : len(base)-len(".csv")])
		if err == nil && n > used {
			used = n
		}
	}
	return used + 1, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
