package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/churn-mlops/internal/features"
	"github.com/wonny/churn-mlops/pkg/config"
	"github.com/wonny/churn-mlops/pkg/logger"
)

// featuresCmd represents the features command
var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Feature engineering",
}

var featuresBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Aggregate raw events into feature snapshots",
	Long: `Builds user_features_daily.csv (the scoring/drift pool) and
training_dataset.csv (feature rows labeled by the 30-day inactivity rule)
from users.csv / events.csv.

Example:
  go run ./cmd/churn features build
  go run ./cmd/churn features build --snapshot-every 7`,
	RunE: runFeaturesBuild,
}

var featuresSnapshotEvery int

func init() {
	rootCmd.AddCommand(featuresCmd)
	featuresCmd.AddCommand(featuresBuildCmd)

	featuresBuildCmd.Flags().IntVar(&featuresSnapshotEvery, "snapshot-every", 1, "days between as-of snapshots")
}

func runFeaturesBuild(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	res, err := features.New(features.Settings{
		RawDir:        cfg.Paths.Raw,
		FeaturesDir:   cfg.Paths.Features,
		SnapshotEvery: featuresSnapshotEvery,
	}, log).Run()
	if err != nil {
		return err
	}

	fmt.Printf("Feature pool:     %d rows -> %s\n", res.PoolRows, res.PoolPath)
	fmt.Printf("Training dataset: %d rows -> %s\n", res.TrainingRows, res.TrainingPath)
	return nil
}
