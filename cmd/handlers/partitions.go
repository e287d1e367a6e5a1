package handlers

import (
	"fmt"
	"os"

	"ecco/internal/core"
	"ecco/internal/mergetree"
	"ecco/internal/partition"
	"github.com/spf13/cobra"
)

// NewPartitionsCmd creates the partitions command
func NewPartitionsCmd() *cobra.Command {
	var (
		k     int
		edges bool
	)

	cmd := &cobra.Command{
		Use:   "partitions <tree.csv>",
		Short: "Print the flat partitions a merge tree implies",
		Long: `Reads a merge tree (left,right,height) or, with --edges, a minimum
spanning tree edge list (u,v,weight) and prints the partition at every cut,
or only the one with --k clusters.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer func() { _ = f.Close() }()

			var seq *partition.Sequence
			if edges {
				list, err := mergetree.ReadEdgesCSV(f)
				if err != nil {
					return err
				}
				seq, err = partition.FromEdges(len(list)+1, list)
				if err != nil {
					return err
				}
			} else {
				tree, err := mergetree.ReadTreeCSV(f)
				if err != nil {
					return err
				}
				seq, err = partition.Build(tree)
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if k > 0 {
				p, ok := seq.ForK(k)
				if !ok {
					return fmt.Errorf("tree over %d items has no partition with %d clusters", seq.Items(), k)
				}
				printPartition(cmd, p)
				return nil
			}
			for i := 0; i < seq.Len(); i++ {
				p := seq.At(i)
				fmt.Fprintf(out, "K=%d height=%g\n", p.K(), seq.Height(i))
				printPartition(cmd, p)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&k, "clusters", "k", 0, "only print the partition with this many clusters")
	cmd.Flags().BoolVar(&edges, "edges", false, "the input is an MST edge list")

	return cmd
}

func printPartition(cmd *cobra.Command, p core.Partition) {
	for _, c := range p.Canonical() {
		fmt.Fprintf(cmd.OutOrStdout(), "  %v\n", c)
	}
}
