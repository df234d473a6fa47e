package score

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/churn-mlops/internal/dataset"
	"github.com/wonny/churn-mlops/pkg/logger"
)

// riskByUserID scores deterministically so tests can predict the ranking:
// user_id "u007" -> 0.07.
type riskByUserID struct{}

func (riskByUserID) PredictProba(row dataset.Row) float64 {
	n, _ := strconv.Atoi(row[dataset.ColUserID][1:])
	return float64(n) / 100.0
}

// constantRisk scores every row identically (tie-break coverage)
type constantRisk struct{ v float64 }

func (c constantRisk) PredictProba(dataset.Row) float64 { return c.v }

func poolTable(t *testing.T) *dataset.Table {
	t.Helper()

	tbl := dataset.New(
		dataset.ColUserID, dataset.ColAsOfDate, dataset.ColSignupDate,
		"plan", "country", "sessions_7d", dataset.ColChurnLabel,
	)
	for _, date := range []string{"2026-01-01", "2026-02-01", "2026-03-01"} {
		for i := 1; i <= 5; i++ {
			tbl.Append(dataset.Row{
				dataset.ColUserID:     "u00" + strconv.Itoa(i),
				dataset.ColAsOfDate:   date,
				dataset.ColSignupDate: "2025-06-01",
				"plan":                "basic",
				"country":             "KR",
				"sessions_7d":         strconv.Itoa(i),
				dataset.ColChurnLabel: "0",
			})
		}
	}
	return tbl
}

func day(s string) time.Time {
	d, _ := dataset.ParseDate(s)
	return d
}

func TestResolveDate_LatestWhenOmitted(t *testing.T) {
	pool := poolTable(t)

	got, err := ResolveDate(pool, "")
	require.NoError(t, err)
	assert.Equal(t, day("2026-03-01"), got)
}

func TestResolveDate_ExplicitMustExist(t *testing.T) {
	pool := poolTable(t)

	got, err := ResolveDate(pool, "2026-02-01")
	require.NoError(t, err)
	assert.Equal(t, day("2026-02-01"), got)

	_, err = ResolveDate(pool, "2026-02-15")
	var dnf *DateNotFoundError
	require.ErrorAs(t, err, &dnf)
	assert.Equal(t, "2026-02-15", dnf.Requested)
	assert.Equal(t, day("2026-01-01"), dnf.Min)
	assert.Equal(t, day("2026-03-01"), dnf.Max)
	assert.Contains(t, err.Error(), "2026-01-01")
	assert.Contains(t, err.Error(), "2026-03-01")
}

func TestResolveDate_InvalidFormat(t *testing.T) {
	pool := poolTable(t)

	_, err := ResolveDate(pool, "Feb 15 2026")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "YYYY-MM-DD")
}

func TestExtractCohort_EmptyGuard(t *testing.T) {
	pool := poolTable(t)

	cohort, err := ExtractCohort(pool, day("2026-02-01"))
	require.NoError(t, err)
	assert.Equal(t, 5, cohort.Len())

	_, err = ExtractCohort(pool, day("2026-05-05"))
	var empty *EmptyCohortError
	require.ErrorAs(t, err, &empty)
	assert.Equal(t, day("2026-05-05"), empty.Date)
}

func TestSplitProjection(t *testing.T) {
	pool := poolTable(t)
	cohort, err := ExtractCohort(pool, day("2026-01-01"))
	require.NoError(t, err)

	meta, input := SplitProjection(cohort)

	// Only metadata columns present in the pool survive, in canonical order.
	assert.Equal(t, []string{dataset.ColUserID, dataset.ColAsOfDate, "plan", "country"}, meta.Columns)

	// Identifier, date and label columns never reach the model.
	assert.Equal(t, []string{"plan", "country", "sessions_7d"}, input.Columns)

	require.Equal(t, cohort.Len(), meta.Len())
	require.Equal(t, cohort.Len(), input.Len())
}

func TestBatchScore_RankingAndArtifacts(t *testing.T) {
	dir := t.TempDir()
	pool := poolTable(t)

	res, err := BatchScore(pool, riskByUserID{}, Options{
		AsOfDate:       "2026-03-01",
		TopK:           2,
		PredictionsDir: dir,
	}, logger.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 5, res.Rows)
	assert.Equal(t, filepath.Join(dir, "churn_predictions_2026-03-01.csv"), res.OutputPath)
	assert.Equal(t, filepath.Join(dir, "churn_top_2_2026-03-01.csv"), res.PreviewPath)

	out, err := dataset.ReadCSV(res.OutputPath)
	require.NoError(t, err)
	require.Equal(t, 5, out.Len())

	// Descending churn_risk, dense 1-based rank.
	prev := 2.0
	for i, row := range out.Rows {
		risk, perr := strconv.ParseFloat(row[ColChurnRisk], 64)
		require.NoError(t, perr)
		assert.LessOrEqual(t, risk, prev)
		assert.Equal(t, strconv.Itoa(i+1), row[ColRiskRank])
		prev = risk
	}
	assert.Equal(t, "u005", out.Rows[0][dataset.ColUserID])
	assert.Equal(t, "u001", out.Rows[4][dataset.ColUserID])

	// Preview is exactly the first K rows of the full output.
	preview, err := dataset.ReadCSV(res.PreviewPath)
	require.NoError(t, err)
	require.Equal(t, 2, preview.Len())
	assert.Equal(t, out.Rows[0], preview.Rows[0])
	assert.Equal(t, out.Rows[1], preview.Rows[1])
}

func TestBatchScore_OmittedDateUsesLatest(t *testing.T) {
	dir := t.TempDir()
	pool := poolTable(t)

	res, err := BatchScore(pool, riskByUserID{}, Options{PredictionsDir: dir}, logger.NewNop())
	require.NoError(t, err)

	assert.Equal(t, day("2026-03-01"), res.Date)
	assert.Empty(t, res.PreviewPath, "no preview without top_k")

	_, err = os.Stat(filepath.Join(dir, "churn_predictions_2026-03-01.csv"))
	assert.NoError(t, err)
}

func TestBatchScore_StableTies(t *testing.T) {
	dir := t.TempDir()
	pool := poolTable(t)

	res, err := BatchScore(pool, constantRisk{0.5}, Options{
		AsOfDate:       "2026-01-01",
		PredictionsDir: dir,
	}, logger.NewNop())
	require.NoError(t, err)

	out, err := dataset.ReadCSV(res.OutputPath)
	require.NoError(t, err)
	require.Equal(t, 5, out.Len())

	// Equal scores keep cohort order; ranks stay dense.
	for i, row := range out.Rows {
		assert.Equal(t, "u00"+strconv.Itoa(i+1), row[dataset.ColUserID])
		assert.Equal(t, strconv.Itoa(i+1), row[ColRiskRank])
	}
}

func TestBatchScore_TopKLargerThanCohort(t *testing.T) {
	dir := t.TempDir()
	pool := poolTable(t)

	res, err := BatchScore(pool, riskByUserID{}, Options{
		AsOfDate:       "2026-01-01",
		TopK:           50,
		PredictionsDir: dir,
	}, logger.NewNop())
	require.NoError(t, err)

	preview, err := dataset.ReadCSV(res.PreviewPath)
	require.NoError(t, err)
	assert.Equal(t, 5, preview.Len())
}
