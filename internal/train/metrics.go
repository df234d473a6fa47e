package train

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// MetricsRecord is the JSON metric record paired with a model artifact by
// filename stem. The recognized promotion keys (pr_auc, roc_auc, f1,
// accuracy) sit at the top level; everything else is opaque audit detail.
type MetricsRecord struct {
	PRAUC    float64 `json:"pr_auc"`
	ROCAUC   float64 `json:"roc_auc"`
	F1       float64 `json:"f1"`
	Accuracy float64 `json:"accuracy"`

	ModelType       string    `json:"model_type"`
	Artifact        string    `json:"artifact"`
	RunID           string    `json:"run_id"`
	TrainedAt       time.Time `json:"trained_at"`
	TrainRows       int       `json:"train_rows"`
	TestRows        int       `json:"test_rows"`
	ChurnRateTrain  float64   `json:"churn_rate_train"`
	ChurnRateTest   float64   `json:"churn_rate_test"`
	ConfusionMatrix [2][2]int `json:"confusion_matrix"` // [actual][predicted]
}

// Write persists the record next to its artifact stem
func (m *MetricsRecord) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Evaluate computes the full metric set from scores and true labels at the
// standard 0.5 decision threshold.
func Evaluate(scores []float64, labels []int) MetricsRecord {
	rec := MetricsRecord{
		PRAUC:  AveragePrecision(scores, labels),
		ROCAUC: ROCAUC(scores, labels),
	}

	var tp, fp, tn, fn int
	for i, s := range scores {
		pred := 0
		if s >= 0.5 {
			pred = 1
		}
		switch {
		case pred == 1 && labels[i] == 1:
			tp++
		case pred == 1 && labels[i] == 0:
			fp++
		case pred == 0 && labels[i] == 0:
			tn++
		default:
			fn++
		}
	}

	rec.ConfusionMatrix = [2][2]int{{tn, fp}, {fn, tp}}

	total := len(scores)
	if total > 0 {
		rec.Accuracy = float64(tp+tn) / float64(total)
	}
	if 2*tp+fp+fn > 0 {
		rec.F1 = 2 * float64(tp) / float64(2*tp+fp+fn)
	}

	return rec
}

// AveragePrecision is the area under the precision-recall curve computed
// over the descending-score ranking (PR-AUC). Zero when the evaluation set
// carries no positives at all.
func AveragePrecision(scores []float64, labels []int) float64 {
	totalPos := 0
	for _, l := range labels {
		totalPos += l
	}
	if totalPos == 0 || len(scores) == 0 {
		return 0
	}

	order := rankDescending(scores)

	var ap float64
	tp := 0
	for k, idx := range order {
		if labels[idx] == 1 {
			tp++
			precision := float64(tp) / float64(k+1)
			ap += precision / float64(totalPos)
		}
	}
	return ap
}

// ROCAUC is the Mann-Whitney estimate of the area under the ROC curve,
// with ties contributing one half. Zero when the evaluation set is
// single-class (matching the trainer's degenerate-split convention).
func ROCAUC(scores []float64, labels []int) float64 {
	var pos, neg int
	for _, l := range labels {
		if l == 1 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0
	}

	var u float64
	for i, si := range scores {
		if labels[i] != 1 {
			continue
		}
		for j, sj := range scores {
			if labels[j] == 1 {
				continue
			}
			switch {
			case si > sj:
				u += 1
			case si == sj:
				u += 0.5
			}
		}
	}
	return u / float64(pos*neg)
}

// rankDescending returns row indices ordered by score descending, ties
// kept in original order.
func rankDescending(scores []float64) []int {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	return order
}
