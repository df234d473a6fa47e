package jobs

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/wonny/churn-mlops/internal/alert"
	"github.com/wonny/churn-mlops/internal/drift"
	"github.com/wonny/churn-mlops/internal/features"
	"github.com/wonny/churn-mlops/internal/runlog"
	"github.com/wonny/churn-mlops/internal/train"
	"github.com/wonny/churn-mlops/pkg/config"
	"github.com/wonny/churn-mlops/pkg/logger"
)

// DriftCheckJob runs the nightly PSI comparison between the training
// baseline and the current feature pool, alerting on FAIL.
type DriftCheckJob struct {
	cfg      *config.Config
	notifier *alert.Notifier
	repo     *runlog.Repository // nil when history is disabled
	logger   *logger.Logger
}

// NewDriftCheckJob creates the drift check job
func NewDriftCheckJob(cfg *config.Config, notifier *alert.Notifier, repo *runlog.Repository, log *logger.Logger) *DriftCheckJob {
	return &DriftCheckJob{cfg: cfg, notifier: notifier, repo: repo, logger: log}
}

// Name returns the job name
func (j *DriftCheckJob) Name() string {
	return "drift_check"
}

// Schedule runs nightly at 02:00
func (j *DriftCheckJob) Schedule() string {
	return "0 0 2 * * *"
}

// Run executes the drift check
func (j *DriftCheckJob) Run(ctx context.Context) error {
	report, err := drift.RunCheck(drift.CheckSettings{
		BaselinePath: filepath.Join(j.cfg.Paths.Features, train.TrainingDatasetFile),
		CurrentPath:  filepath.Join(j.cfg.Paths.Features, features.FeaturePoolFile),
		MetricsDir:   j.cfg.Paths.Metrics,
		FeatureCols:  j.cfg.Drift.FeatureCols,
		Options: drift.Options{
			WarnPSI: j.cfg.Drift.WarnPSI,
			FailPSI: j.cfg.Drift.FailPSI,
			Buckets: j.cfg.Drift.Buckets,
		},
	})
	if err != nil {
		return err
	}

	j.logger.WithFields(map[string]interface{}{
		"status":  report.Status,
		"max_psi": report.OverallMaxPSI,
	}).Info("Drift check completed")

	// History and alerting are additive; never fail the check over them.
	if err := j.repo.SaveDriftReport(ctx, report, time.Now().UTC()); err != nil {
		j.logger.WithError(err).Warn("Drift history write failed")
	}
	if err := j.notifier.DriftDetected(ctx, report); err != nil {
		j.logger.WithError(err).Warn("Drift alert delivery failed")
	}

	if report.Status == drift.StatusFail {
		return fmt.Errorf("drift status FAIL (max PSI %.4f)", report.OverallMaxPSI)
	}
	return nil
}
