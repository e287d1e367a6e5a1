package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ecco/internal/core"
	"ecco/internal/validation"
)

// Report combines everything needed to write a run report.
type Report struct {
	Run    core.Run
	Series []validation.Series   // validation runs
	Blocks []core.ConsensusBlock // ensemble runs
	IDs    []string              // item identifiers, indexed by item

	// Failures maps a failed ensemble member to its error message
	Failures map[string]string
	Members  int
}

// RenderMarkdownReport writes a markdown summary of a run to outputDir and
// returns the file path.
func RenderMarkdownReport(report Report, outputDir string) (string, error) {
	dateStr := report.Run.CreatedAt.UTC().Format("2006-01-02")
	if report.Run.CreatedAt.IsZero() {
		dateStr = time.Now().UTC().Format("2006-01-02")
	}
	short := report.Run.ID
	if len(short) > 8 {
		short = short[:8]
	}
	filename := fmt.Sprintf("%s_%s_%s.md", report.Run.Kind, dateStr, short)

	var md strings.Builder

	md.WriteString(fmt.Sprintf("# %s run - %s\n\n", titleCase(string(report.Run.Kind)), dateStr))
	md.WriteString(fmt.Sprintf("- **Run:** `%s`\n", report.Run.ID))
	if report.Run.Source != "" {
		md.WriteString(fmt.Sprintf("- **Source:** %s\n", report.Run.Source))
	}
	md.WriteString(fmt.Sprintf("- **Items:** %d\n", report.Run.Items))

	switch report.Run.Kind {
	case core.RunKindValidation:
		writeValidationMarkdown(&md, report)
	case core.RunKindEnsemble:
		writeEnsembleMarkdown(&md, report)
	}

	return WriteToFile(md.String(), outputDir, filename)
}

func writeValidationMarkdown(md *strings.Builder, report Report) {
	md.WriteString("\n## Recommended cluster counts\n\n")
	if len(report.Series) == 0 {
		md.WriteString("No metrics were scored.\n")
		return
	}
	md.WriteString("| Metric | K | Score |\n|---|---|---|\n")
	for _, s := range report.Series {
		best, ok := s.Best()
		if !ok {
			md.WriteString(fmt.Sprintf("| %s | - | - |\n", s.Metric))
			continue
		}
		md.WriteString(fmt.Sprintf("| %s | %d | %.6g |\n", s.Metric, best.K, best.Score))
	}
}

func writeEnsembleMarkdown(md *strings.Builder, report Report) {
	md.WriteString(fmt.Sprintf("- **Clusters per member:** %d\n", report.Run.Clusters))
	md.WriteString(fmt.Sprintf("- **Achieved weight:** %.4f\n", report.Run.AchievedWeight))
	if report.Members > 0 {
		md.WriteString(fmt.Sprintf("- **Members:** %d of %d succeeded\n", report.Members-len(report.Failures), report.Members))
	}

	if len(report.Failures) > 0 {
		md.WriteString("\n## Failed members\n\n")
		for _, name := range sortedKeys(report.Failures) {
			md.WriteString(fmt.Sprintf("- `%s`: %s\n", name, report.Failures[name]))
		}
	}

	md.WriteString("\n## Consensus blocks\n\n")
	count := 0
	for _, b := range report.Blocks {
		if !b.MeetsMinSize {
			continue
		}
		count++
		md.WriteString(fmt.Sprintf("### Block %d (%d items)\n\n", count, b.Size()))
		for _, item := range b.Members {
			md.WriteString(fmt.Sprintf("- %s\n", identifier(report.IDs, item)))
		}
		md.WriteString("\n")
	}
	if count == 0 {
		md.WriteString("No block met the minimum size.\n")
	}
}

// WriteToFile writes content to a file in the specified directory
func WriteToFile(content, outputDir, filename string) (string, error) {
	if outputDir == "" {
		outputDir = "ecco-output"
	}

	err := os.MkdirAll(outputDir, 0755)
	if err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	filePath := filepath.Join(outputDir, filename)

	err = os.WriteFile(filePath, []byte(content), 0644)
	if err != nil {
		return "", fmt.Errorf("failed to write file %s: %w", filePath, err)
	}

	return filePath, nil
}

func identifier(ids []string, item int) string {
	if item >= 0 && item < len(ids) && ids[item] != "" {
		return ids[item]
	}
	return fmt.Sprintf("%d", item)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
