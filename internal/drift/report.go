package drift

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wonny/churn-mlops/internal/dataset"
)

// Status is the three-level drift classification
type Status string

const (
	StatusOK   Status = "OK"
	StatusWarn Status = "WARN"
	StatusFail Status = "FAIL"
)

// Default PSI thresholds and bucket count
const (
	DefaultWarnPSI = 0.1
	DefaultFailPSI = 0.25
	DefaultBuckets = 10
)

// Options configures a drift computation
type Options struct {
	WarnPSI float64
	FailPSI float64
	Buckets int
}

// DefaultOptions returns the standard thresholds (warn 0.1, fail 0.25, deciles)
func DefaultOptions() Options {
	return Options{
		WarnPSI: DefaultWarnPSI,
		FailPSI: DefaultFailPSI,
		Buckets: DefaultBuckets,
	}
}

// Report is the immutable outcome of one drift check
type Report struct {
	PSIByFeature  map[string]float64 `json:"psi_by_feature"`
	OverallMaxPSI float64            `json:"overall_max_psi"`
	Status        Status             `json:"status"`
	Baseline      string             `json:"baseline,omitempty"`
	Current       string             `json:"current,omitempty"`
}

// Compute calculates per-feature PSI between a baseline and a current
// feature table and classifies the overall result.
//
// Feature columns absent from either table are skipped silently: schemas
// may evolve and a column that only one side carries is not evidence of
// drift. With no overlapping columns at all the report is OK with score 0.
func Compute(baseline, current *dataset.Table, featureCols []string, opts Options) *Report {
	if opts.Buckets == 0 {
		opts.Buckets = DefaultBuckets
	}

	psiBy := make(map[string]float64)
	maxPSI := 0.0

	for _, col := range featureCols {
		if !baseline.HasColumn(col) || !current.HasColumn(col) {
			continue
		}

		psi := PSI(baseline.Floats(col), current.Floats(col), opts.Buckets)
		psiBy[col] = psi
		if psi > maxPSI {
			maxPSI = psi
		}
	}

	return &Report{
		PSIByFeature:  psiBy,
		OverallMaxPSI: maxPSI,
		Status:        classify(maxPSI, opts),
	}
}

// classify maps an overall PSI score onto the three-level status
func classify(maxPSI float64, opts Options) Status {
	switch {
	case maxPSI >= opts.FailPSI:
		return StatusFail
	case maxPSI >= opts.WarnPSI:
		return StatusWarn
	default:
		return StatusOK
	}
}

// Write persists the report as a JSON snapshot for audit
func (r *Report) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal drift report: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
