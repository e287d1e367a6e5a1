package handlers

import (
	"fmt"
	"sort"
	"time"

	"ecco/internal/config"
	"ecco/internal/core"
	"ecco/internal/render"
	"ecco/internal/store"
	"ecco/internal/validation"
	"github.com/spf13/cobra"
)

// NewRunsCmd creates the runs command and its subcommands
func NewRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect stored validation and ensemble runs",
	}

	cmd.AddCommand(newRunsListCmd())
	cmd.AddCommand(newRunsShowCmd())
	cmd.AddCommand(newRunsStatsCmd())
	cmd.AddCommand(newRunsCleanCmd())

	return cmd
}

func openRunStore() (*store.Store, error) {
	cfg := config.Get()
	st, err := store.NewStore(cfg.App.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	return st, nil
}

func newRunsListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openRunStore()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			runs, err := st.ListRuns(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs stored yet.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), render.RunsTable(runs))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "maximum number of runs to list")
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the results of a run (a unique id prefix is enough)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openRunStore()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			run, err := st.FindRunByPartialID(args[0])
			if err != nil {
				return err
			}
			if run == nil {
				return fmt.Errorf("no run matches %q", args[0])
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, render.RunsTable([]core.Run{*run}))

			switch run.Kind {
			case core.RunKindValidation:
				scores, err := st.GetScores(run.ID)
				if err != nil {
					return err
				}
				names := make([]string, 0, len(scores))
				for name := range scores {
					names = append(names, name)
				}
				sort.Strings(names)
				series := make([]validation.Series, len(names))
				for i, name := range names {
					series[i] = validation.Series{Metric: name, Scores: scores[name]}
				}
				fmt.Fprintln(out, render.SeriesTable(series))
			case core.RunKindEnsemble:
				blocks, err := st.GetBlocks(run.ID)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, render.BlocksTable(blocks, nil))
			}
			return nil
		},
	}
}

func newRunsStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show run store statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openRunStore()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			stats, err := st.GetStats()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Runs:          %d\n", stats.RunCount)
			fmt.Fprintf(out, "Scores:        %d\n", stats.ScoreCount)
			fmt.Fprintf(out, "Blocks:        %d\n", stats.BlockCount)
			fmt.Fprintf(out, "Database size: %.1f KB\n", float64(stats.Size)/1024)
			if !stats.LastUpdated.IsZero() {
				fmt.Fprintf(out, "Last run:      %s\n", stats.LastUpdated.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func newRunsCleanCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Delete runs older than a given age",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openRunStore()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			removed, err := st.CleanupOldRuns(olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d runs\n", removed)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "minimum age of deleted runs")
	return cmd
}
