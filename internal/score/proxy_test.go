package score

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/churn-mlops/internal/dataset"
)

func predictions(risks ...float64) *dataset.Table {
	tbl := dataset.New(dataset.ColUserID, ColChurnRisk)
	for i, r := range risks {
		tbl.Append(dataset.Row{
			dataset.ColUserID: dataset.FormatInt(i),
			ColChurnRisk:      dataset.FormatFloat(r),
		})
	}
	return tbl
}

func TestSummarize_Statistics(t *testing.T) {
	// 0.0 .. 1.0 in steps of 0.1
	risks := make([]float64, 11)
	for i := range risks {
		risks[i] = float64(i) / 10.0
	}

	p, err := Summarize(predictions(risks...), 0.7)
	require.NoError(t, err)

	assert.Equal(t, 11, p.Predictions)
	assert.InDelta(t, 0.5, p.MeanRisk, 1e-9)
	assert.InDelta(t, 0.5, p.P50, 1e-9)
	assert.InDelta(t, 0.9, p.P90, 1e-9)
	assert.InDelta(t, 0.99, p.P99, 1e-9)
	// 0.7, 0.8, 0.9, 1.0 are at or above the threshold.
	assert.InDelta(t, 4.0/11.0, p.HighRiskRate, 1e-9)
}

func TestSummarize_EmptyIsZeros(t *testing.T) {
	p, err := Summarize(predictions(), 0.7)
	require.NoError(t, err)

	assert.Equal(t, 0, p.Predictions)
	assert.Zero(t, p.MeanRisk)
	assert.Zero(t, p.P50)
	assert.Zero(t, p.P99)
	assert.Zero(t, p.HighRiskRate)
}

func TestSummarize_MissingRiskColumn(t *testing.T) {
	tbl := dataset.New(dataset.ColUserID)

	_, err := Summarize(tbl, 0.7)
	var schemaErr *dataset.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, ColChurnRisk, schemaErr.Column)
}

func TestSummarize_DefaultThreshold(t *testing.T) {
	p, err := Summarize(predictions(0.69, 0.7, 0.71), 0)
	require.NoError(t, err)

	assert.Equal(t, DefaultHighRiskThreshold, p.Threshold)
	assert.InDelta(t, 2.0/3.0, p.HighRiskRate, 1e-9)
}

func TestProxy_Write(t *testing.T) {
	p, err := Summarize(predictions(0.2, 0.8), 0.7)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "metrics", "score_proxy_latest.json")
	require.NoError(t, p.Write(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got Proxy
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 2, got.Predictions)
	assert.InDelta(t, 0.5, got.MeanRisk, 1e-9)
	assert.InDelta(t, 0.5, got.HighRiskRate, 1e-9)
}
