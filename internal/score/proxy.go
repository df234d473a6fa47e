package score

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/wonny/churn-mlops/internal/dataset"
)

// DefaultHighRiskThreshold marks a prediction as actionable for retention
const DefaultHighRiskThreshold = 0.7

// Proxy summarizes one prediction file's risk distribution. It stands in
// for true model quality between label arrivals: labels lag 30 days, the
// distribution does not.
type Proxy struct {
	Predictions  int     `json:"predictions"`
	Threshold    float64 `json:"threshold"`
	MeanRisk     float64 `json:"mean_risk"`
	P50          float64 `json:"p50"`
	P90          float64 `json:"p90"`
	P99          float64 `json:"p99"`
	HighRiskRate float64 `json:"high_risk_rate"`
}

// Summarize computes the score-proxy statistics from a prediction table.
// An empty or all-unparseable churn_risk column yields the zero summary,
// never an error.
func Summarize(predictions *dataset.Table, threshold float64) (*Proxy, error) {
	if !predictions.HasColumn(ColChurnRisk) {
		return nil, &dataset.SchemaError{Column: ColChurnRisk}
	}
	if threshold <= 0 {
		threshold = DefaultHighRiskThreshold
	}

	risks := predictions.Floats(ColChurnRisk)
	p := &Proxy{Predictions: len(risks), Threshold: threshold}
	if len(risks) == 0 {
		return p, nil
	}

	sorted := append([]float64{}, risks...)
	sort.Float64s(sorted)

	sum, high := 0.0, 0
	for _, r := range risks {
		sum += r
		if r >= threshold {
			high++
		}
	}

	p.MeanRisk = sum / float64(len(risks))
	p.P50 = percentile(sorted, 0.50)
	p.P90 = percentile(sorted, 0.90)
	p.P99 = percentile(sorted, 0.99)
	p.HighRiskRate = float64(high) / float64(len(risks))

	return p, nil
}

// Write persists the proxy summary as a JSON snapshot
func (p *Proxy) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal score proxy: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// percentile linearly interpolates over a pre-sorted sample
func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
