package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/churn-mlops/internal/alert"
	"github.com/wonny/churn-mlops/internal/promote"
	"github.com/wonny/churn-mlops/internal/runlog"
	"github.com/wonny/churn-mlops/pkg/config"
	"github.com/wonny/churn-mlops/pkg/httputil"
	"github.com/wonny/churn-mlops/pkg/logger"
)

// promoteCmd represents the promote command
var promoteCmd = &cobra.Command{
	Use:   "promote",
	Short: "Promote the best candidate to production",
	Long: `Scans the artifact registry, scores every candidate by its best
recognized metric and atomically publishes the winner as
production_latest.gob / production_latest.json.

Example:
  go run ./cmd/churn promote`,
	RunE: runPromote,
}

func init() {
	rootCmd.AddCommand(promoteCmd)
}

func runPromote(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)
	ctx := context.Background()

	record, err := promote.New(cfg.Paths.Models, cfg.Paths.Metrics, log).Promote()
	if err != nil {
		return err
	}

	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal promotion record: %w", err)
	}
	fmt.Println(string(payload))

	if repo, rerr := runlog.Connect(ctx, cfg); rerr != nil {
		log.WithError(rerr).Warn("Run history unavailable")
	} else {
		defer repo.Close()
		if serr := repo.SavePromotion(ctx, record); serr != nil {
			log.WithError(serr).Warn("Promotion history write failed")
		}
	}

	notifier := alert.New(cfg.AlertWebhookURL, httputil.New(log), log)
	if aerr := notifier.ModelPromoted(ctx, record); aerr != nil {
		log.WithError(aerr).Warn("Promotion alert delivery failed")
	}

	return nil
}
