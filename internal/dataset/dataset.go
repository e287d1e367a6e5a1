// Package dataset loads coordinate tables: one row per item, an identifier in
// the first column and numeric coordinates in the remaining columns.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// ErrEmpty is returned when a table holds no data rows.
var ErrEmpty = errors.New("dataset has no rows")

// Options controls how a table is read.
type Options struct {
	// Header marks the first record as column names.
	Header bool
	// DropTrailing skips that many columns at the end of every record,
	// for exports that append a non-numeric annotation column.
	DropTrailing int
}

// DefaultOptions reads a headed table and keeps every column.
func DefaultOptions() Options {
	return Options{Header: true}
}

// Table is a loaded coordinate table.
type Table struct {
	IDs     []string
	Columns []string
	Data    *mat.Dense
}

// Items returns the number of rows.
func (t *Table) Items() int {
	return len(t.IDs)
}

// ID returns the identifier of item i, or its index when the table has none.
func (t *Table) ID(i int) string {
	if i >= 0 && i < len(t.IDs) && t.IDs[i] != "" {
		return t.IDs[i]
	}
	return strconv.Itoa(i)
}

// LoadFile reads a CSV table from path.
func LoadFile(path string, opts Options) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	t, err := Load(f, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset %s: %w", path, err)
	}
	return t, nil
}

// Load reads a CSV table from r.
func Load(r io.Reader, opts Options) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}

	t := &Table{}
	if opts.Header && len(records) > 0 {
		header := records[0]
		records = records[1:]
		if len(header) > 1 {
			t.Columns = header[1:trimmed(len(header), opts.DropTrailing)]
		}
	}
	if len(records) == 0 {
		return nil, ErrEmpty
	}

	width := trimmed(len(records[0]), opts.DropTrailing) - 1
	if width < 1 {
		return nil, fmt.Errorf("row 1 has no numeric columns")
	}

	t.Data = mat.NewDense(len(records), width, nil)
	t.IDs = make([]string, len(records))
	for i, rec := range records {
		end := trimmed(len(rec), opts.DropTrailing)
		if end-1 != width {
			return nil, fmt.Errorf("row %d has %d numeric columns, expected %d", i+1, end-1, width)
		}
		t.IDs[i] = strings.TrimSpace(rec[0])
		for j := 1; j < end; j++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[j]), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", i+1, j+1, err)
			}
			t.Data.Set(i, j-1, v)
		}
	}
	return t, nil
}

func trimmed(n, drop int) int {
	if drop <= 0 || drop >= n {
		return n
	}
	return n - drop
}
