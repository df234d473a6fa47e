package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/churn-mlops/internal/drift"
	"github.com/wonny/churn-mlops/internal/promote"
	"github.com/wonny/churn-mlops/pkg/httputil"
	"github.com/wonny/churn-mlops/pkg/logger"
)

// Notifier posts JSON payloads to a webhook when operational events fire.
// An empty webhook URL makes every notification a no-op.
type Notifier struct {
	webhookURL string
	client     *httputil.Client
	log        *logger.Logger
}

func New(webhookURL string, client *httputil.Client, log *logger.Logger) *Notifier {
	return &Notifier{webhookURL: webhookURL, client: client, log: log}
}

// Enabled reports whether a webhook is configured
func (n *Notifier) Enabled() bool {
	return n.webhookURL != ""
}

// driftPayload is the webhook body for drift alerts
type driftPayload struct {
	Event        string             `json:"event"`
	Status       drift.Status       `json:"status"`
	OverallMax   float64            `json:"overall_max_psi"`
	PSIByFeature map[string]float64 `json:"psi_by_feature"`
	CheckedAt    time.Time          `json:"checked_at"`
}

// promotionPayload is the webhook body for promotion notices
type promotionPayload struct {
	Event      string    `json:"event"`
	RunID      string    `json:"run_id"`
	Model      string    `json:"model"`
	MetricUsed string    `json:"metric_used"`
	Score      float64   `json:"score"`
	PromotedAt time.Time `json:"promoted_at"`
}

// DriftDetected alerts on a FAIL drift report; WARN and OK pass silently
func (n *Notifier) DriftDetected(ctx context.Context, report *drift.Report) error {
	if !n.Enabled() || report.Status != drift.StatusFail {
		return nil
	}

	payload := driftPayload{
		Event:        "drift_fail",
		Status:       report.Status,
		OverallMax:   report.OverallMaxPSI,
		PSIByFeature: report.PSIByFeature,
		CheckedAt:    time.Now().UTC(),
	}

	return n.post(ctx, payload)
}

// ModelPromoted notifies that a new model is serving production traffic
func (n *Notifier) ModelPromoted(ctx context.Context, record *promote.Record) error {
	if !n.Enabled() {
		return nil
	}

	payload := promotionPayload{
		Event:      "model_promoted",
		RunID:      record.RunID,
		Model:      record.PromotedFromModel,
		MetricUsed: record.MetricUsed,
		Score:      record.Score,
		PromotedAt: record.PromotedAt,
	}

	return n.post(ctx, payload)
}

func (n *Notifier) post(ctx context.Context, payload interface{}) error {
	resp, err := n.client.PostJSON(ctx, n.webhookURL, payload)
	if err != nil {
		return fmt.Errorf("post alert webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode)
	}

	n.log.WithField("status_code", resp.StatusCode).Info("Alert webhook delivered")
	return nil
}
