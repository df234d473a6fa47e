package score

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/wonny/churn-mlops/internal/dataset"
	"github.com/wonny/churn-mlops/internal/model"
	"github.com/wonny/churn-mlops/pkg/logger"
)

// Output columns appended to the metadata projection
const (
	ColChurnRisk = "churn_risk"
	ColRiskRank  = "risk_rank"
)

// metaCols is the context projection kept on the prediction output, in
// order, when present in the pool.
var metaCols = []string{
	dataset.ColUserID,
	dataset.ColAsOfDate,
	"plan",
	"is_paid",
	"country",
	"marketing_source",
	"days_since_signup",
	"days_since_last_activity",
}

// leakCols are stripped from the model-input projection even when they
// leak into the feature pool by accident.
var leakCols = map[string]struct{}{
	dataset.ColUserID:     {},
	dataset.ColAsOfDate:   {},
	dataset.ColSignupDate: {},
	dataset.ColChurnLabel: {},
}

// DateNotFoundError reports a requested as-of date absent from the pool
type DateNotFoundError struct {
	Requested string
	Min, Max  time.Time
}

func (e *DateNotFoundError) Error() string {
	return fmt.Sprintf("requested as_of_date=%s not found in feature pool (available range: %s -> %s)",
		e.Requested, e.Min.Format("2006-01-02"), e.Max.Format("2006-01-02"))
}

// EmptyCohortError reports a resolved date with zero matching rows.
// Unreachable when the date was validated against the pool, but guarded.
type EmptyCohortError struct {
	Date time.Time
}

func (e *EmptyCohortError) Error() string {
	return fmt.Sprintf("no feature rows found for as_of_date=%s", e.Date.Format("2006-01-02"))
}

// Options configures one batch-scoring run
type Options struct {
	// AsOfDate is the requested calendar day (YYYY-MM-DD); empty means
	// latest available.
	AsOfDate string
	// TopK > 0 additionally writes a truncated highest-risk preview.
	TopK           int
	PredictionsDir string
}

// Result names the artifacts one scoring run produced
type Result struct {
	Date        time.Time
	Rows        int
	OutputPath  string
	PreviewPath string // empty when TopK <= 0
}

// BatchScore resolves the target date, extracts the cohort, scores it with
// the supplied model handle and writes the ranked prediction artifacts.
// The model is an explicit argument: this function owns no global state.
func BatchScore(pool *dataset.Table, scorer model.Scorer, opts Options, log *logger.Logger) (*Result, error) {
	date, err := ResolveDate(pool, opts.AsOfDate)
	if err != nil {
		return nil, err
	}

	cohort, err := ExtractCohort(pool, date)
	if err != nil {
		return nil, err
	}

	meta, input := SplitProjection(cohort)

	scores := make([]float64, input.Len())
	for i, row := range input.Rows {
		scores[i] = scorer.PredictProba(row)
	}

	ranked := rankOutput(meta, scores)

	dateKey := date.Format("2006-01-02")
	outPath := filepath.Join(opts.PredictionsDir, fmt.Sprintf("churn_predictions_%s.csv", dateKey))
	if err := ranked.WriteCSV(outPath); err != nil {
		return nil, err
	}

	res := &Result{Date: date, Rows: ranked.Len(), OutputPath: outPath}

	if opts.TopK > 0 {
		preview := &dataset.Table{Columns: ranked.Columns}
		for i := 0; i < opts.TopK && i < ranked.Len(); i++ {
			preview.Append(ranked.Rows[i])
		}
		res.PreviewPath = filepath.Join(opts.PredictionsDir,
			fmt.Sprintf("churn_top_%d_%s.csv", opts.TopK, dateKey))
		if err := preview.WriteCSV(res.PreviewPath); err != nil {
			return nil, err
		}
	}

	log.WithFields(map[string]interface{}{
		"as_of_date": dateKey,
		"rows":       res.Rows,
		"output":     res.OutputPath,
	}).Info("Batch scoring complete")

	return res, nil
}

// ResolveDate validates an explicit as-of date against the pool or picks
// the latest available one when the request is empty.
func ResolveDate(pool *dataset.Table, asOfDate string) (time.Time, error) {
	dates, err := pool.DistinctDates()
	if err != nil {
		return time.Time{}, err
	}
	if len(dates) == 0 {
		return time.Time{}, fmt.Errorf("feature pool contains no parseable %s values", dataset.ColAsOfDate)
	}

	min, max := dates[0], dates[len(dates)-1]

	if asOfDate == "" {
		return max, nil
	}

	target, ok := dataset.ParseDate(asOfDate)
	if !ok {
		return time.Time{}, fmt.Errorf("invalid as_of_date %q, expected YYYY-MM-DD", asOfDate)
	}
	for _, d := range dates {
		if d.Equal(target) {
			return target, nil
		}
	}
	return time.Time{}, &DateNotFoundError{Requested: asOfDate, Min: min, Max: max}
}

// ExtractCohort returns the rows whose parsed date equals the target
func ExtractCohort(pool *dataset.Table, date time.Time) (*dataset.Table, error) {
	cohort := &dataset.Table{Columns: pool.Columns}
	for _, row := range pool.Rows {
		if d, ok := dataset.ParseDate(row[dataset.ColAsOfDate]); ok && d.Equal(date) {
			cohort.Append(row)
		}
	}

	if cohort.Len() == 0 {
		return nil, &EmptyCohortError{Date: date}
	}
	return cohort, nil
}

// SplitProjection separates the cohort into the metadata kept on the
// output and the model-input columns (identifier, date and label columns
// excluded as a leakage safety net).
func SplitProjection(cohort *dataset.Table) (meta, input *dataset.Table) {
	meta = &dataset.Table{}
	for _, c := range metaCols {
		if cohort.HasColumn(c) {
			meta.Columns = append(meta.Columns, c)
		}
	}

	input = &dataset.Table{}
	for _, c := range cohort.Columns {
		if _, leak := leakCols[c]; !leak {
			input.Columns = append(input.Columns, c)
		}
	}

	for _, row := range cohort.Rows {
		metaRow := make(dataset.Row, len(meta.Columns))
		for _, c := range meta.Columns {
			metaRow[c] = row[c]
		}
		meta.Append(metaRow)

		inputRow := make(dataset.Row, len(input.Columns))
		for _, c := range input.Columns {
			inputRow[c] = row[c]
		}
		input.Append(inputRow)
	}

	return meta, input
}

// rankOutput orders rows by descending risk and assigns a dense 1-based
// rank; ties keep the original row order.
func rankOutput(meta *dataset.Table, scores []float64) *dataset.Table {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	out := &dataset.Table{Columns: append(append([]string{}, meta.Columns...), ColChurnRisk, ColRiskRank)}
	for rank, idx := range order {
		row := make(dataset.Row, len(out.Columns))
		for _, c := range meta.Columns {
			row[c] = meta.Rows[idx][c]
		}
		row[ColChurnRisk] = dataset.FormatFloat(scores[idx])
		row[ColRiskRank] = dataset.FormatInt(rank + 1)
		out.Append(row)
	}
	return out
}
