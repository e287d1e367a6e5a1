package handlers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ecco/internal/config"
	"ecco/internal/core"
	"ecco/internal/dataset"
	"ecco/internal/mergetree"
	"ecco/internal/pipeline"
	"ecco/internal/render"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
)

// NewEnsembleCmd creates the ensemble command
func NewEnsembleCmd() *cobra.Command {
	var (
		pairs        []string
		trees        []string
		clusters     int
		minBlockSize int
		reference    string
		dropTrailing int
		noHeader     bool
		outputDir    string
		noStore      bool
	)

	cmd := &cobra.Command{
		Use:   "ensemble [data.csv]",
		Short: "Find the clusters every linkage/metric pair agrees on",
		Long: `Clusters a coordinate table once per linkage-metric pair, cuts every
tree at the same cluster count and accumulates how often each pair of items
ends up together. Items that every member groups together form consensus
blocks; blocks with at least --min-block-size items are exported as
EnsembleClusterNN.csv membership files.

Instead of a table, precomputed trees (left,right,height CSV) can be passed
with --tree. A table may still be given for identifiers and coordinates.

Members that fail are reported and skipped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Get()
			if !cmd.Flags().Changed("pairs") {
				pairs = cfg.Ensemble.Pairs
			}
			if !cmd.Flags().Changed("clusters") {
				clusters = cfg.Ensemble.Clusters
			}
			if !cmd.Flags().Changed("min-block-size") {
				minBlockSize = cfg.Ensemble.MinBlockSize
			}
			if !cmd.Flags().Changed("reference") {
				reference = cfg.Ensemble.Reference
			}
			if outputDir == "" {
				outputDir = cfg.Output.Directory
			}
			if len(args) == 0 && len(trees) == 0 {
				return fmt.Errorf("a data table or at least one --tree is required")
			}

			opts := pipeline.EnsembleOptions{Clusters: clusters, MinBlockSize: minBlockSize}
			var err error
			if opts.Reference, err = core.ParseLinkagePair(reference); err != nil {
				return err
			}

			var tbl *dataset.Table
			if len(args) == 1 {
				opts.Source = args[0]
				if tbl, err = loadTable(args[0], dropTrailing, noHeader); err != nil {
					return err
				}
			}

			env, err := newRunEnv(cfg, !noStore)
			if err != nil {
				return err
			}
			defer env.close()

			var result *pipeline.EnsembleResult
			if len(trees) > 0 {
				named, err := readTrees(trees)
				if err != nil {
					return err
				}
				if opts.Source == "" {
					opts.Source = strings.Join(trees, ",")
				}
				items := named[0].Tree.Items
				if tbl != nil {
					items = tbl.Items()
				}
				result, err = env.pipeline.EnsembleTrees(cmd.Context(), items, named, opts)
				if err != nil {
					return fmt.Errorf("ensemble failed: %w", err)
				}
			} else {
				for _, s := range pairs {
					p, err := core.ParseLinkagePair(s)
					if err != nil {
						return err
					}
					opts.Pairs = append(opts.Pairs, p)
				}
				result, err = env.pipeline.Ensemble(cmd.Context(), tbl.Data, opts)
				if err != nil {
					return fmt.Errorf("ensemble failed: %w", err)
				}
			}

			return writeEnsembleOutputs(cmd, result, tbl, outputDir)
		},
	}

	cmd.Flags().StringSliceVar(&pairs, "pairs", nil, "linkage-metric pairs to ensemble (default from config)")
	cmd.Flags().StringArrayVar(&trees, "tree", nil, "precomputed tree CSV; repeat for every member")
	cmd.Flags().IntVarP(&clusters, "clusters", "k", 13, "cluster count every member is cut at")
	cmd.Flags().IntVar(&minBlockSize, "min-block-size", 2, "smallest block exported as a cluster")
	cmd.Flags().StringVar(&reference, "reference", "ward-euclidean", "linkage-metric pair ordering the co-occurrence matrix")
	cmd.Flags().IntVar(&dropTrailing, "drop-trailing", 0, "ignore this many trailing columns")
	cmd.Flags().BoolVar(&noHeader, "no-header", false, "the table has no header row")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (default from config)")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "do not persist the run")

	return cmd
}

func readTrees(paths []string) ([]pipeline.NamedTree, error) {
	out := make([]pipeline.NamedTree, 0, len(paths))
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open tree %s: %w", path, err)
		}
		tree, err := mergetree.ReadTreeCSV(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read tree %s: %w", path, err)
		}
		out = append(out, pipeline.NamedTree{Name: filepath.Base(path), Tree: tree})
	}
	return out, nil
}

func writeEnsembleOutputs(cmd *cobra.Command, result *pipeline.EnsembleResult, tbl *dataset.Table, outputDir string) error {
	out := cmd.OutOrStdout()

	var (
		ids, columns []string
		data         *mat.Dense
	)
	if tbl != nil {
		ids, columns, data = tbl.IDs, tbl.Columns, tbl.Data
	}

	fmt.Fprintln(out, render.BlocksTable(result.Blocks, ids))
	fmt.Fprintf(out, "\n%d of %d members succeeded, achieved weight %.4f\n", result.Succeeded, result.Members, result.AchievedWeight())
	failures := make(map[string]string, len(result.Failures))
	for _, f := range result.Failures {
		fmt.Fprintf(out, "  skipped %s: %v\n", f.Name, f.Err)
		failures[f.Name] = f.Err.Error()
	}

	dir := filepath.Join(outputDir, "ensemble-"+shortID(result.Run.ID))
	f, matrixPath, err := createOutput(dir, "EnsembleCoOcc.csv")
	if err != nil {
		return err
	}
	if err := render.WriteCoOccurrenceCSV(f, result.Matrix.Rows(), ids); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write co-occurrence matrix: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	blockPaths, err := render.WriteBlocks(dir, result.Blocks, ids, data, columns)
	if err != nil {
		return err
	}

	reportPath, err := render.RenderMarkdownReport(render.Report{
		Run:      result.Run,
		Blocks:   result.Blocks,
		IDs:      ids,
		Failures: failures,
		Members:  result.Members,
	}, dir)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\nRun %s\n", result.Run.ID)
	fmt.Fprintf(out, "Co-occurrence: %s\n", matrixPath)
	fmt.Fprintf(out, "Clusters:      %d files in %s\n", len(blockPaths), dir)
	fmt.Fprintf(out, "Report:        %s\n", reportPath)
	return nil
}
