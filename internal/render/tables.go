package render

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"ecco/internal/core"
	"ecco/internal/validation"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	bestStyle   = cellStyle.Foreground(lipgloss.Color("10")).Bold(true)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...)
}

// SeriesTable renders raw scores with one row per K and one column per
// metric. The recommended K of each metric is highlighted.
func SeriesTable(series []validation.Series) string {
	headers := []string{"K"}
	best := make([]int, len(series))
	index := make([]map[int]float64, len(series))
	seen := make(map[int]bool)
	for i, s := range series {
		headers = append(headers, s.Metric)
		best[i], _, _ = s.Recommend()
		index[i] = make(map[int]float64, len(s.Scores))
		for _, v := range s.Scores {
			index[i][v.K] = v.Score
			seen[v.K] = true
		}
	}
	ks := make([]int, 0, len(seen))
	for k := range seen {
		ks = append(ks, k)
	}
	sort.Ints(ks)

	rows := make([][]string, len(ks))
	for r, k := range ks {
		row := []string{strconv.Itoa(k)}
		for i := range series {
			if v, ok := index[i][k]; ok {
				row = append(row, fmt.Sprintf("%.6g", v))
			} else {
				row = append(row, "")
			}
		}
		rows[r] = row
	}

	return newTable(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col > 0 && row >= 0 && row < len(ks) && ks[row] == best[col-1] {
				return bestStyle
			}
			return cellStyle
		}).
		String()
}

// RunsTable renders stored run summaries.
func RunsTable(runs []core.Run) string {
	rows := make([][]string, len(runs))
	for i, r := range runs {
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		rows[i] = []string{
			id,
			string(r.Kind),
			r.Source,
			strconv.Itoa(r.Items),
			strconv.Itoa(r.Clusters),
			fmt.Sprintf("%.3f", r.AchievedWeight),
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
		}
	}
	return newTable("ID", "Kind", "Source", "Items", "K", "Weight", "Created").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		String()
}

// BlocksTable renders the blocks meeting the minimum size with their
// member identifiers.
func BlocksTable(blocks []core.ConsensusBlock, ids []string) string {
	var rows [][]string
	for _, b := range blocks {
		if !b.MeetsMinSize {
			continue
		}
		names := ""
		for i, item := range b.Members {
			if i > 0 {
				names += ", "
			}
			names += identifier(ids, item)
		}
		rows = append(rows, []string{
			strconv.Itoa(len(rows) + 1),
			fmt.Sprintf("%d-%d", b.Start, b.End-1),
			strconv.Itoa(b.Size()),
			names,
		})
	}
	return newTable("Block", "Positions", "Size", "Members").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		String()
}
