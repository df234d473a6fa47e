package jobs

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/wonny/churn-mlops/internal/dataset"
	"github.com/wonny/churn-mlops/internal/features"
	"github.com/wonny/churn-mlops/internal/model"
	"github.com/wonny/churn-mlops/internal/score"
	"github.com/wonny/churn-mlops/pkg/config"
	"github.com/wonny/churn-mlops/pkg/logger"
)

// BatchScoreJob scores the latest cohort with the production model every
// night and refreshes the score-proxy snapshot.
type BatchScoreJob struct {
	cfg    *config.Config
	logger *logger.Logger
}

// NewBatchScoreJob creates the batch scoring job
func NewBatchScoreJob(cfg *config.Config, log *logger.Logger) *BatchScoreJob {
	return &BatchScoreJob{cfg: cfg, logger: log}
}

// Name returns the job name
func (j *BatchScoreJob) Name() string {
	return "batch_score"
}

// Schedule runs nightly at 03:00, after the drift check
func (j *BatchScoreJob) Schedule() string {
	return "0 0 3 * * *"
}

// Run scores the latest available date
func (j *BatchScoreJob) Run(ctx context.Context) error {
	poolPath := filepath.Join(j.cfg.Paths.Features, features.FeaturePoolFile)
	pool, err := dataset.ReadCSV(poolPath)
	if err != nil {
		return fmt.Errorf("load feature pool (run `churn features build` first): %w", err)
	}

	bundle, _, err := model.LoadProduction(j.cfg.Paths.Models)
	if err != nil {
		return err
	}

	res, err := score.BatchScore(pool, bundle, score.Options{
		TopK:           j.cfg.Scoring.TopK,
		PredictionsDir: j.cfg.Paths.Predictions,
	}, j.logger)
	if err != nil {
		return err
	}

	predictions, err := dataset.ReadCSV(res.OutputPath)
	if err != nil {
		return err
	}
	proxy, err := score.Summarize(predictions, j.cfg.Scoring.HighRiskThreshold)
	if err != nil {
		return err
	}
	if err := proxy.Write(filepath.Join(j.cfg.Paths.Metrics, "score_proxy_latest.json")); err != nil {
		return err
	}

	j.logger.WithFields(map[string]interface{}{
		"date":           res.Date.Format("2006-01-02"),
		"rows":           res.Rows,
		"high_risk_rate": proxy.HighRiskRate,
	}).Info("Nightly batch scoring completed")

	return nil
}
