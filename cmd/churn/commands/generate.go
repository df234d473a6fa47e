package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/churn-mlops/internal/datagen"
	"github.com/wonny/churn-mlops/pkg/config"
	"github.com/wonny/churn-mlops/pkg/logger"
)

// generateCmd represents the generate command
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the synthetic e-learning dataset",
	Long: `Simulates users and their daily events and writes users.csv /
events.csv under the raw data directory. Deterministic for a fixed seed.

Example:
  go run ./cmd/churn generate
  go run ./cmd/churn generate --users 5000 --days 180`,
	RunE: runGenerate,
}

var (
	genUsers         int
	genDays          int
	genStartDate     string
	genSeed          int64
	genPaidRatio     float64
	genChurnBaseRate float64
	genOutputDir     string
)

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().IntVar(&genUsers, "users", 2000, "number of users to simulate")
	generateCmd.Flags().IntVar(&genDays, "days", 120, "number of days to simulate")
	generateCmd.Flags().StringVar(&genStartDate, "start-date", "2026-01-01", "first event day (YYYY-MM-DD)")
	generateCmd.Flags().Int64Var(&genSeed, "seed", 42, "RNG seed")
	generateCmd.Flags().Float64Var(&genPaidRatio, "paid-ratio", 0.35, "fraction of paid users")
	generateCmd.Flags().Float64Var(&genChurnBaseRate, "churn-base-rate", 0.35, "base churn probability")
	generateCmd.Flags().StringVar(&genOutputDir, "output-dir", "", "output dir (default: DATA_RAW_DIR)")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	outputDir := cfg.Paths.Raw
	if genOutputDir != "" {
		outputDir = genOutputDir
	}

	settings := datagen.Settings{
		NUsers:        genUsers,
		Days:          genDays,
		StartDate:     genStartDate,
		Seed:          genSeed,
		PaidRatio:     genPaidRatio,
		ChurnBaseRate: genChurnBaseRate,
		OutputDir:     outputDir,
	}

	res, err := datagen.New(settings, log).Run()
	if err != nil {
		return err
	}

	fmt.Printf("Users:  %d rows -> %s\n", res.Users, res.UsersPath)
	fmt.Printf("Events: %d rows -> %s\n", res.Events, res.EventsPath)
	return nil
}
