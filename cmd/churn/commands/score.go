package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wonny/churn-mlops/internal/dataset"
	"github.com/wonny/churn-mlops/internal/features"
	"github.com/wonny/churn-mlops/internal/model"
	"github.com/wonny/churn-mlops/internal/score"
	"github.com/wonny/churn-mlops/pkg/config"
	"github.com/wonny/churn-mlops/pkg/logger"
)

// scoreCmd represents the score command
var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Batch-score a cohort with the production model",
	Long: `Scores every user snapshot at one as-of date, writes the ranked
prediction file (plus a top-k preview) and refreshes the score-proxy
summary.

Example:
  go run ./cmd/churn score
  go run ./cmd/churn score --date 2026-03-01 --top-k 100`,
	RunE: runScore,
}

var (
	scoreDate string
	scoreTopK int
)

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().StringVar(&scoreDate, "date", "", "as-of date YYYY-MM-DD (default: latest)")
	scoreCmd.Flags().IntVar(&scoreTopK, "top-k", -1, "top-k preview size (default: SCORE_TOP_K)")
}

func runScore(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	poolPath := filepath.Join(cfg.Paths.Features, features.FeaturePoolFile)
	pool, err := dataset.ReadCSV(poolPath)
	if err != nil {
		return fmt.Errorf("load feature pool (run `churn features build` first): %w", err)
	}

	bundle, modelPath, err := model.LoadProduction(cfg.Paths.Models)
	if err != nil {
		return err
	}
	log.WithField("model_path", modelPath).Info("Production model loaded")

	topK := cfg.Scoring.TopK
	if scoreTopK >= 0 {
		topK = scoreTopK
	}

	res, err := score.BatchScore(pool, bundle, score.Options{
		AsOfDate:       scoreDate,
		TopK:           topK,
		PredictionsDir: cfg.Paths.Predictions,
	}, log)
	if err != nil {
		return err
	}

	predictions, err := dataset.ReadCSV(res.OutputPath)
	if err != nil {
		return err
	}
	proxy, err := score.Summarize(predictions, cfg.Scoring.HighRiskThreshold)
	if err != nil {
		return err
	}
	proxyPath := filepath.Join(cfg.Paths.Metrics, "score_proxy_latest.json")
	if err := proxy.Write(proxyPath); err != nil {
		return err
	}

	fmt.Printf("Scored %d users at %s\n", res.Rows, res.Date.Format("2006-01-02"))
	fmt.Printf("Predictions: %s\n", res.OutputPath)
	if res.PreviewPath != "" {
		fmt.Printf("Top-%d preview: %s\n", topK, res.PreviewPath)
	}
	fmt.Printf("Score proxy: mean=%.4f p90=%.4f high_risk_rate=%.4f -> %s\n",
		proxy.MeanRisk, proxy.P90, proxy.HighRiskRate, proxyPath)
	return nil
}
