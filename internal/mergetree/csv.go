package mergetree

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"ecco/internal/core"
)

var treeHeader = []string{"left", "right", "height"}
var edgeHeader = []string{"u", "v", "weight"}

// ReadTreeCSV reads a merge tree written as left,right,height rows. A header
// row is optional. The item count is the row count plus one.
func ReadTreeCSV(r io.Reader) (core.MergeTree, error) {
	rows, err := readTriples(r, treeHeader)
	if err != nil {
		return core.MergeTree{}, err
	}
	tree := core.MergeTree{Items: len(rows) + 1, Events: make([]core.MergeEvent, len(rows))}
	for i, row := range rows {
		left, right, err := nodeIDs(i, row)
		if err != nil {
			return core.MergeTree{}, err
		}
		tree.Events[i] = core.MergeEvent{Left: left, Right: right, Height: row[2]}
	}
	return tree, nil
}

// WriteTreeCSV writes the tree with a header row.
func WriteTreeCSV(w io.Writer, tree core.MergeTree) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(treeHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, e := range tree.Events {
		record := []string{
			strconv.Itoa(e.Left),
			strconv.Itoa(e.Right),
			strconv.FormatFloat(e.Height, 'g', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write event: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadEdgesCSV reads an edge list written as u,v,weight rows.
func ReadEdgesCSV(r io.Reader) ([]core.Edge, error) {
	rows, err := readTriples(r, edgeHeader)
	if err != nil {
		return nil, err
	}
	edges := make([]core.Edge, len(rows))
	for i, row := range rows {
		u, v, err := nodeIDs(i, row)
		if err != nil {
			return nil, err
		}
		edges[i] = core.Edge{U: u, V: v, Weight: row[2]}
	}
	return edges, nil
}

// WriteEdgesCSV writes an edge list with a header row.
func WriteEdgesCSV(w io.Writer, edges []core.Edge) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(edgeHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, e := range edges {
		record := []string{
			strconv.Itoa(e.U),
			strconv.Itoa(e.V),
			strconv.FormatFloat(e.Weight, 'g', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write edge: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// nodeIDs converts the first two columns of a row to node ids.
func nodeIDs(step int, row [3]float64) (int, int, error) {
	var ids [2]int
	for j, v := range row[:2] {
		if v != math.Trunc(v) || math.Abs(v) > math.MaxInt32 {
			return 0, 0, core.NewMalformedTreeError(step, -1, fmt.Sprintf("node id %v is not an integer", v))
		}
		ids[j] = int(v)
	}
	return ids[0], ids[1], nil
}

func readTriples(r io.Reader, header []string) ([][3]float64, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	if len(records) > 0 && strings.EqualFold(strings.TrimSpace(records[0][0]), header[0]) {
		records = records[1:]
	}

	rows := make([][3]float64, len(records))
	for i, rec := range records {
		for j := 0; j < 3; j++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[j]), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", i+1, header[j], err)
			}
			rows[i][j] = v
		}
	}
	return rows, nil
}
