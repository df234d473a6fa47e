package drift

import (
	"fmt"
	"path/filepath"

	"github.com/wonny/churn-mlops/internal/dataset"
)

// ReportFile is the JSON snapshot consumed by dashboards and the CLI
const ReportFile = "data_drift_latest.json"

// CheckSettings names the inputs of one drift check run
type CheckSettings struct {
	BaselinePath string
	CurrentPath  string
	MetricsDir   string
	FeatureCols  []string
	Options      Options
}

// RunCheck loads the baseline and current feature tables, computes the
// drift report and persists it under the metrics dir. Callers decide what
// a FAIL means (exit code, alert); this function only reports.
func RunCheck(settings CheckSettings) (*Report, error) {
	baseline, err := dataset.ReadCSV(settings.BaselinePath)
	if err != nil {
		return nil, fmt.Errorf("load drift baseline (run `churn train` first): %w", err)
	}

	current, err := dataset.ReadCSV(settings.CurrentPath)
	if err != nil {
		return nil, fmt.Errorf("load current features (run `churn features build` first): %w", err)
	}

	report := Compute(baseline, current, settings.FeatureCols, settings.Options)
	report.Baseline = settings.BaselinePath
	report.Current = settings.CurrentPath

	if err := report.Write(filepath.Join(settings.MetricsDir, ReportFile)); err != nil {
		return nil, err
	}

	return report, nil
}
