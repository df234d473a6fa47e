package model

import (
	"math"
	"strconv"

	"github.com/wonny/churn-mlops/internal/dataset"
)

// missingCategory is the imputation constant for absent categorical cells
const missingCategory = "missing"

// Encoder turns raw feature rows into fixed-width numeric vectors:
// numeric columns are constant-imputed (0) and standardized, categorical
// columns are constant-imputed ("missing") and one-hot encoded. Categories
// unseen at fit time encode as all zeros.
type Encoder struct {
	NumericCols     []string
	CategoricalCols []string

	// Standardization parameters per numeric column
	Means map[string]float64
	Stds  map[string]float64

	// Ordered vocabulary per categorical column
	Vocab map[string][]string
}

// FitEncoder infers column types from the training table and fits the
// encoder. A column is numeric when every non-empty cell parses as float;
// everything else is categorical.
func FitEncoder(t *dataset.Table, cols []string) *Encoder {
	e := &Encoder{
		Means: make(map[string]float64),
		Stds:  make(map[string]float64),
		Vocab: make(map[string][]string),
	}

	for _, col := range cols {
		if isNumericColumn(t, col) {
			e.NumericCols = append(e.NumericCols, col)
			mean, std := meanStd(t, col)
			e.Means[col] = mean
			e.Stds[col] = std
		} else {
			e.CategoricalCols = append(e.CategoricalCols, col)
			e.Vocab[col] = categories(t, col)
		}
	}

	return e
}

// Dim returns the encoded vector width
func (e *Encoder) Dim() int {
	dim := len(e.NumericCols)
	for _, col := range e.CategoricalCols {
		dim += len(e.Vocab[col])
	}
	return dim
}

// FeatureNames returns the encoded dimension names in vector order
func (e *Encoder) FeatureNames() []string {
	names := make([]string, 0, e.Dim())
	names = append(names, e.NumericCols...)
	for _, col := range e.CategoricalCols {
		for _, cat := range e.Vocab[col] {
			names = append(names, col+"="+cat)
		}
	}
	return names
}

// Transform encodes a single row. Missing numeric cells impute to 0 before
// standardization; missing categorical cells impute to "missing".
func (e *Encoder) Transform(row dataset.Row) []float64 {
	x := make([]float64, 0, e.Dim())

	for _, col := range e.NumericCols {
		v := 0.0
		if s, ok := row[col]; ok && s != "" {
			if parsed, err := strconv.ParseFloat(s, 64); err == nil {
				v = parsed
			}
		}
		std := e.Stds[col]
		if std == 0 {
			std = 1
		}
		x = append(x, (v-e.Means[col])/std)
	}

	for _, col := range e.CategoricalCols {
		val := row[col]
		if val == "" {
			val = missingCategory
		}
		for _, cat := range e.Vocab[col] {
			if val == cat {
				x = append(x, 1)
			} else {
				x = append(x, 0)
			}
		}
	}

	return x
}

// TransformAll encodes every row of a table
func (e *Encoder) TransformAll(t *dataset.Table) [][]float64 {
	out := make([][]float64, t.Len())
	for i, row := range t.Rows {
		out[i] = e.Transform(row)
	}
	return out
}

func isNumericColumn(t *dataset.Table, col string) bool {
	nonEmpty := 0
	for _, row := range t.Rows {
		s := row[col]
		if s == "" {
			continue
		}
		nonEmpty++
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return false
		}
	}
	return nonEmpty > 0
}

func meanStd(t *dataset.Table, col string) (float64, float64) {
	vals := t.Floats(col)
	if len(vals) == 0 {
		return 0, 1
	}

	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean := sum / float64(len(vals))

	var ss float64
	for _, v := range vals {
		d := v - mean
		ss += d * d
	}
	std := 0.0
	if len(vals) > 1 {
		std = math.Sqrt(ss / float64(len(vals)))
	}
	return mean, std
}

// categories collects the ordered distinct values of a categorical column,
// always including the imputation constant.
func categories(t *dataset.Table, col string) []string {
	seen := make(map[string]struct{})
	var out []string

	add := func(s string) {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}

	for _, row := range t.Rows {
		s := row[col]
		if s == "" {
			s = missingCategory
		}
		add(s)
	}
	add(missingCategory)

	return out
}
