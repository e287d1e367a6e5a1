package handlers

import (
	"fmt"

	"ecco/internal/config"
	"ecco/internal/mergetree"
	"ecco/internal/pipeline"
	"ecco/internal/render"
	"ecco/internal/validation"
	"github.com/spf13/cobra"
)

// NewValidateCmd creates the validate command
func NewValidateCmd() *cobra.Command {
	var (
		tree         string
		distance     string
		metrics      []string
		workers      int
		minK, maxK   int
		dropTrailing int
		noHeader     bool
		outputDir    string
		noStore      bool
	)

	cmd := &cobra.Command{
		Use:   "validate <data.csv>",
		Short: "Score the partitions of one tree with cluster validity indices",
		Long: `Builds a hierarchical tree over the rows of a coordinate table, cuts
it at every candidate cluster count and scores each partition.

The first column holds item identifiers, the remaining columns coordinates.
The tree is the minimum spanning tree by default, or any linkage-metric
pair such as average-cityblock.

Metrics: ` + fmt.Sprint(validation.Names()),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Get()
			if cmd.Flags().Changed("workers") {
				cfg.Validation.Workers = workers
			}
			if cmd.Flags().Changed("min-k") {
				cfg.Validation.MinK = minK
			}
			if cmd.Flags().Changed("max-k") {
				cfg.Validation.MaxK = maxK
			}
			if !cmd.Flags().Changed("tree") {
				tree = cfg.Validation.Tree
			}
			if !cmd.Flags().Changed("distance") {
				distance = cfg.Validation.Distance
			}
			if !cmd.Flags().Changed("metrics") {
				metrics = cfg.Validation.Metrics
			}
			if outputDir == "" {
				outputDir = cfg.Output.Directory
			}

			tbl, err := loadTable(args[0], dropTrailing, noHeader)
			if err != nil {
				return err
			}

			env, err := newRunEnv(cfg, !noStore)
			if err != nil {
				return err
			}
			defer env.close()

			result, err := env.pipeline.Validate(cmd.Context(), tbl.Data, pipeline.ValidationOptions{
				Source:   args[0],
				Tree:     tree,
				Distance: distance,
				Metrics:  metrics,
			})
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, render.SeriesTable(result.Series))
			fmt.Fprintln(out)
			for _, rec := range result.Recommendations() {
				line := fmt.Sprintf("%-10s K=%d (score %.6g)", rec.Metric, rec.K, rec.Raw)
				if rec.Metric == validation.MetricSilhouette {
					line += " " + validation.InterpretSilhouette(rec.Raw) + " structure"
				}
				fmt.Fprintln(out, line)
			}

			return writeValidationOutputs(cmd, result, outputDir)
		},
	}

	cmd.Flags().StringVar(&tree, "tree", "mst", "tree producer: mst or a linkage-metric pair")
	cmd.Flags().StringVar(&distance, "distance", "euclidean", "distance metric for the mst tree")
	cmd.Flags().StringSliceVar(&metrics, "metrics", nil, "validity indices to compute (default all)")
	cmd.Flags().IntVar(&workers, "workers", 0, "scoring workers (default and maximum: CPU count)")
	cmd.Flags().IntVar(&minK, "min-k", 0, "smallest cluster count scored (default ceil(N/2))")
	cmd.Flags().IntVar(&maxK, "max-k", 0, "largest cluster count scored (default N-1)")
	cmd.Flags().IntVar(&dropTrailing, "drop-trailing", 0, "ignore this many trailing columns")
	cmd.Flags().BoolVar(&noHeader, "no-header", false, "the table has no header row")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (default from config)")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "do not persist the run")

	return cmd
}

func writeValidationOutputs(cmd *cobra.Command, result *pipeline.ValidationResult, outputDir string) error {
	id := shortID(result.Run.ID)

	f, scoresPath, err := createOutput(outputDir, fmt.Sprintf("validation-%s.csv", id))
	if err != nil {
		return err
	}
	if err := render.WriteValidationCSV(f, result.Series); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write scores: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	f, treePath, err := createOutput(outputDir, fmt.Sprintf("tree-%s.csv", id))
	if err != nil {
		return err
	}
	if err := mergetree.WriteTreeCSV(f, result.Tree); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write tree: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	reportPath, err := render.RenderMarkdownReport(render.Report{Run: result.Run, Series: result.Series}, outputDir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nRun %s\n", result.Run.ID)
	fmt.Fprintf(out, "Scores: %s\nTree:   %s\nReport: %s\n", scoresPath, treePath, reportPath)
	return nil
}
