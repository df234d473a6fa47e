package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/churn-mlops/internal/train"
	"github.com/wonny/churn-mlops/pkg/config"
	"github.com/wonny/churn-mlops/pkg/logger"
)

// trainCmd represents the train command
var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train model candidates",
	Long: `Trains a model on the labeled training dataset with the
time-aware split and writes a timestamped artifact pair (.gob model +
.json metrics).

Subcommands:
  baseline   - logistic regression (seeds the production alias if absent)
  candidate  - gradient-boosted stumps

Example:
  go run ./cmd/churn train baseline
  go run ./cmd/churn train candidate`,
}

var trainBaselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Train the logistic-regression baseline",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTrain(func(t *train.Trainer) (*train.Result, error) { return t.TrainBaseline() })
	},
}

var trainCandidateCmd = &cobra.Command{
	Use:   "candidate",
	Short: "Train the boosted-stumps candidate",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTrain(func(t *train.Trainer) (*train.Result, error) { return t.TrainCandidate() })
	},
}

func init() {
	rootCmd.AddCommand(trainCmd)
	trainCmd.AddCommand(trainBaselineCmd)
	trainCmd.AddCommand(trainCandidateCmd)
}

func runTrain(fit func(*train.Trainer) (*train.Result, error)) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	trainer := train.New(train.Settings{
		FeaturesDir:       cfg.Paths.Features,
		ModelsDir:         cfg.Paths.Models,
		MetricsDir:        cfg.Paths.Metrics,
		TestFraction:      cfg.Training.TestFraction,
		Seed:              cfg.Training.Seed,
		ImbalanceStrategy: cfg.Training.ImbalanceStrategy,
	}, log)

	res, err := fit(trainer)
	if err != nil {
		return err
	}

	fmt.Printf("Model:   %s\n", res.ModelPath)
	fmt.Printf("Metrics: %s\n", res.MetricsPath)
	fmt.Printf("PR-AUC=%.4f ROC-AUC=%.4f F1=%.4f Accuracy=%.4f\n",
		res.Record.PRAUC, res.Record.ROCAUC, res.Record.F1, res.Record.Accuracy)
	return nil
}
