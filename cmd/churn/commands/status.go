package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wonny/churn-mlops/internal/drift"
	"github.com/wonny/churn-mlops/internal/model"
	"github.com/wonny/churn-mlops/pkg/config"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current operational snapshots",
	Long: `Prints the production model metrics, the latest drift report and
the latest score-proxy summary, when present.

Example:
  go run ./cmd/churn status`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	printSnapshot("Production model metrics",
		filepath.Join(cfg.Paths.Metrics, model.ProductionMetricsFile))
	printSnapshot("Latest drift report",
		filepath.Join(cfg.Paths.Metrics, drift.ReportFile))
	printSnapshot("Latest score proxy",
		filepath.Join(cfg.Paths.Metrics, "score_proxy_latest.json"))

	return nil
}

func printSnapshot(title, path string) {
	fmt.Printf("=== %s (%s) ===\n", title, path)

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Println("  (not available)")
		fmt.Println()
		return
	}

	fmt.Println(string(data))
	fmt.Println()
}
