/*
Copyright © 2025 Your Name

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package handlers

import (
	"fmt"
	"os"

	"ecco/internal/config"
	"ecco/internal/logger"
	"github.com/spf13/cobra"
)

var cfgFile string

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ecco",
		Short: "Ensemble consensus clustering with cluster count validation",
		Long: `ecco clusters a coordinate table hierarchically and helps pick the
number of clusters.

Core workflows:
  • Validate: build one tree, score its partitions with validity indices
  • Ensemble: cluster with many linkage/metric pairs, keep what all agree on

Examples:
  # Score the partitions of the minimum spanning tree
  ecco validate data/metabolites.csv --metrics silhouette,dunn

  # Consensus blocks over the default 13 linkage/metric pairs
  ecco ensemble data/metabolites.csv --clusters 13

  # Inspect stored runs
  ecco runs list`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	// Add persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.ecco.yaml)")

	// Add subcommands
	rootCmd.AddCommand(NewValidateCmd())
	rootCmd.AddCommand(NewEnsembleCmd())
	rootCmd.AddCommand(NewPartitionsCmd())
	rootCmd.AddCommand(NewRunsCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig reads in config file and ENV variables and configures logging.
func initConfig() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	level := cfg.Logging.Level
	if cfg.App.Debug {
		level = "debug"
	}
	logger.Configure(logger.Options{Level: level, Format: cfg.Logging.Format})
	return nil
}
