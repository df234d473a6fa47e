package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/churn-mlops/internal/alert"
	"github.com/wonny/churn-mlops/internal/drift"
	"github.com/wonny/churn-mlops/internal/features"
	"github.com/wonny/churn-mlops/internal/runlog"
	"github.com/wonny/churn-mlops/internal/train"
	"github.com/wonny/churn-mlops/pkg/config"
	"github.com/wonny/churn-mlops/pkg/httputil"
	"github.com/wonny/churn-mlops/pkg/logger"
)

// driftCmd represents the drift command
var driftCmd = &cobra.Command{
	Use:   "drift",
	Short: "Run the PSI drift check",
	Long: `Compares the training baseline against the current feature pool
feature by feature, writes data_drift_latest.json and prints the report.

Exit codes:
  0 - OK or WARN
  2 - FAIL (for CI / CronJob alerting)

Example:
  go run ./cmd/churn drift`,
	RunE: runDrift,
}

func init() {
	rootCmd.AddCommand(driftCmd)
}

func runDrift(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)
	ctx := context.Background()

	report, err := drift.RunCheck(drift.CheckSettings{
		BaselinePath: filepath.Join(cfg.Paths.Features, train.TrainingDatasetFile),
		CurrentPath:  filepath.Join(cfg.Paths.Features, features.FeaturePoolFile),
		MetricsDir:   cfg.Paths.Metrics,
		FeatureCols:  cfg.Drift.FeatureCols,
		Options: drift.Options{
			WarnPSI: cfg.Drift.WarnPSI,
			FailPSI: cfg.Drift.FailPSI,
			Buckets: cfg.Drift.Buckets,
		},
	})
	if err != nil {
		return err
	}

	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal drift report: %w", err)
	}
	fmt.Println(string(payload))

	// History and alerting are additive; a failure there never masks the
	// drift verdict.
	if repo, rerr := runlog.Connect(ctx, cfg); rerr != nil {
		log.WithError(rerr).Warn("Run history unavailable")
	} else {
		defer repo.Close()
		if serr := repo.SaveDriftReport(ctx, report, time.Now().UTC()); serr != nil {
			log.WithError(serr).Warn("Drift history write failed")
		}
	}

	notifier := alert.New(cfg.AlertWebhookURL, httputil.New(log), log)
	if aerr := notifier.DriftDetected(ctx, report); aerr != nil {
		log.WithError(aerr).Warn("Drift alert delivery failed")
	}

	if report.Status == drift.StatusFail {
		os.Exit(2)
	}
	return nil
}
