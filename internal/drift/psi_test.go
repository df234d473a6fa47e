package drift

import (
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/churn-mlops/internal/dataset"
)

func uniform(rng *rand.Rand, lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = lo + rng.Float64()*(hi-lo)
	}
	return out
}

func TestPSI_IdenticalSamples(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	x := uniform(rng, 0, 5, 1000)

	psi := PSI(x, x, 10)
	assert.InDelta(t, 0, psi, 1e-9, "identical distributions must score ~0")
}

func TestPSI_Degeneracies(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}

	tests := []struct {
		name     string
		expected []float64
		actual   []float64
	}{
		{"empty expected", nil, x},
		{"empty actual", x, nil},
		{"constant baseline", []float64{2, 2, 2, 2, 2}, x},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, 0.0, PSI(tt.expected, tt.actual, 10),
				"degeneracy absorbs to zero, not an error")
		})
	}
}

func TestPSI_NonNegativeAndMonotone(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	base := uniform(rng, 0, 10, 2000)

	// Progressively shifted copies drift further from the baseline.
	prev := -1.0
	for _, shift := range []float64{0, 1, 3, 6, 12} {
		cur := make([]float64, len(base))
		for i, v := range base {
			cur[i] = v + shift
		}

		psi := PSI(base, cur, 10)
		assert.GreaterOrEqual(t, psi, 0.0, "PSI is non-negative")
		assert.GreaterOrEqual(t, psi, prev, "PSI must not decrease as the shift grows (shift=%v)", shift)
		prev = psi
	}
}

func TestCompute_DisjointRanges_Fail(t *testing.T) {
	// End-to-end scenario from the monitoring runbook: baseline uniform in
	// [0,5], current uniform in [20,30] -> unambiguous FAIL.
	rng := rand.New(rand.NewSource(42))

	baseline := dataset.New("sessions_7d")
	for _, v := range uniform(rng, 0, 5, 1000) {
		baseline.Append(dataset.Row{"sessions_7d": dataset.FormatFloat(v)})
	}

	current := dataset.New("sessions_7d")
	for _, v := range uniform(rng, 20, 30, 1000) {
		current.Append(dataset.Row{"sessions_7d": dataset.FormatFloat(v)})
	}

	report := Compute(baseline, current, []string{"sessions_7d"}, DefaultOptions())
	assert.Equal(t, StatusFail, report.Status)
	assert.Greater(t, report.OverallMaxPSI, 0.25)
}

func TestCompute_SelfComparison_OK(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	tbl := dataset.New("sessions_7d", "watch_minutes_7d")
	for i := 0; i < 500; i++ {
		tbl.Append(dataset.Row{
			"sessions_7d":      dataset.FormatFloat(rng.Float64() * 5),
			"watch_minutes_7d": dataset.FormatFloat(rng.Float64() * 120),
		})
	}

	report := Compute(tbl, tbl, []string{"sessions_7d", "watch_minutes_7d"}, DefaultOptions())
	require.Equal(t, StatusOK, report.Status)
	for col, psi := range report.PSIByFeature {
		assert.InDelta(t, 0, psi, 1e-9, col)
	}
}

func TestCompute_MissingColumnsSkipped(t *testing.T) {
	baseline := dataset.New("a")
	current := dataset.New("b")
	for i := 0; i < 10; i++ {
		baseline.Append(dataset.Row{"a": "1"})
		current.Append(dataset.Row{"b": "1"})
	}

	report := Compute(baseline, current, []string{"a", "b", "c"}, DefaultOptions())
	assert.Empty(t, report.PSIByFeature)
	assert.Equal(t, 0.0, report.OverallMaxPSI)
	assert.Equal(t, StatusOK, report.Status)
}

func TestCompute_Thresholds(t *testing.T) {
	tests := []struct {
		maxPSI float64
		want   Status
	}{
		{0.0, StatusOK},
		{0.0999, StatusOK},
		{0.1, StatusWarn},
		{0.249, StatusWarn},
		{0.25, StatusFail},
		{1.7, StatusFail},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, classify(tt.maxPSI, DefaultOptions()), "psi=%v", tt.maxPSI)
	}
}

func TestReport_Write(t *testing.T) {
	report := &Report{
		PSIByFeature:  map[string]float64{"sessions_7d": 0.31},
		OverallMaxPSI: 0.31,
		Status:        StatusFail,
		Baseline:      "data/features/training_dataset.csv",
		Current:       "data/features/user_features_daily.csv",
	}

	path := filepath.Join(t.TempDir(), "metrics", "data_drift_latest.json")
	require.NoError(t, report.Write(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got Report
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, report.Status, got.Status)
	assert.InDelta(t, 0.31, got.PSIByFeature["sessions_7d"], 1e-12)
}

func TestRunCheck_WritesSnapshot(t *testing.T) {
	dir := t.TempDir()
	rng := rand.New(rand.NewSource(5))

	baseline := dataset.New("sessions_7d")
	current := dataset.New("sessions_7d")
	for _, v := range uniform(rng, 0, 5, 300) {
		baseline.Append(dataset.Row{"sessions_7d": dataset.FormatFloat(v)})
		current.Append(dataset.Row{"sessions_7d": dataset.FormatFloat(v)})
	}

	basePath := filepath.Join(dir, "training_dataset.csv")
	curPath := filepath.Join(dir, "user_features_daily.csv")
	require.NoError(t, baseline.WriteCSV(basePath))
	require.NoError(t, current.WriteCSV(curPath))

	report, err := RunCheck(CheckSettings{
		BaselinePath: basePath,
		CurrentPath:  curPath,
		MetricsDir:   dir,
		FeatureCols:  []string{"sessions_7d"},
		Options:      DefaultOptions(),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusOK, report.Status)
	assert.Equal(t, basePath, report.Baseline)

	_, err = os.Stat(filepath.Join(dir, ReportFile))
	assert.NoError(t, err)
}

func TestRunCheck_MissingBaseline(t *testing.T) {
	dir := t.TempDir()

	_, err := RunCheck(CheckSettings{
		BaselinePath: filepath.Join(dir, "training_dataset.csv"),
		CurrentPath:  filepath.Join(dir, "user_features_daily.csv"),
		MetricsDir:   dir,
		FeatureCols:  []string{"sessions_7d"},
		Options:      DefaultOptions(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "churn train")
}
