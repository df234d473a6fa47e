package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "churn",
	Short: "Churn model operations pipeline",
	Long: `Churn MLOps CLI

Operational lifecycle of the tabular churn-risk model: synthetic data,
feature building, training, drift monitoring, promotion, batch scoring
and online serving.

Usage:
  go run ./cmd/churn [command]

Examples:
  go run ./cmd/churn generate
  go run ./cmd/churn features build
  go run ./cmd/churn train baseline
  go run ./cmd/churn drift
  go run ./cmd/churn promote
  go run ./cmd/churn score --date 2026-03-01
  go run ./cmd/churn api`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "development", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
