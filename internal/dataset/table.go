package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

// Well-known columns shared by every pipeline stage
const (
	ColUserID     = "user_id"
	ColAsOfDate   = "as_of_date"
	ColSignupDate = "signup_date"
	ColChurnLabel = "churn_label"
)

// Table is an ordered tabular snapshot loaded from CSV.
// Values stay raw strings; typed access goes through the helpers below so
// coercion rules (unparseable -> dropped or zero) live in one place.
type Table struct {
	Columns []string
	Rows    []Row
}

// Row maps column name -> raw cell value
type Row map[string]string

// SchemaError reports a required column missing from an input table
type SchemaError struct {
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("required column %q is missing", e.Column)
}

// New creates an empty table with the given column order
func New(columns ...string) *Table {
	return &Table{Columns: columns}
}

// HasColumn reports whether the table carries the column
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.Rows)
}

// Append adds a row. Unknown keys are ignored on write; missing keys
// serialize as empty cells.
func (t *Table) Append(r Row) {
	t.Rows = append(t.Rows, r)
}

// Floats extracts the column as float64, dropping empty and unparseable
// cells. This is the "dropna" used by the drift detector.
func (t *Table) Floats(col string) []float64 {
	out := make([]float64, 0, len(t.Rows))
	for _, r := range t.Rows {
		s, ok := r[col]
		if !ok || s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Labels extracts churn_label coerced to {0,1}: missing or unparseable
// cells count as 0, any nonzero numeric counts as 1.
func (t *Table) Labels() ([]int, error) {
	if !t.HasColumn(ColChurnLabel) {
		return nil, &SchemaError{Column: ColChurnLabel}
	}

	out := make([]int, len(t.Rows))
	for i, r := range t.Rows {
		v, err := strconv.ParseFloat(r[ColChurnLabel], 64)
		if err != nil || v == 0 {
			out[i] = 0
		} else {
			out[i] = 1
		}
	}
	return out, nil
}

// dateLayouts accepted for as_of_date cells; all normalize to a calendar day
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ParseDate parses an ISO-8601 date cell and truncates it to the day
func ParseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// DistinctDates returns the sorted distinct parseable as-of dates.
// Returns a SchemaError if the column is absent entirely.
func (t *Table) DistinctDates() ([]time.Time, error) {
	if !t.HasColumn(ColAsOfDate) {
		return nil, &SchemaError{Column: ColAsOfDate}
	}

	seen := make(map[time.Time]struct{})
	for _, r := range t.Rows {
		if d, ok := ParseDate(r[ColAsOfDate]); ok {
			seen[d] = struct{}{}
		}
	}

	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	return dates, nil
}

// ReadCSV loads a table from disk. The first record is the header.
func ReadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if len(records) == 0 {
		return &Table{}, nil
	}

	t := &Table{Columns: records[0]}
	t.Rows = make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(Row, len(t.Columns))
		for i, col := range t.Columns {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		t.Rows = append(t.Rows, row)
	}

	return t, nil
}

// WriteCSV writes the table to disk, creating parent directories
func (t *Table) WriteCSV(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(t.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	rec := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, col := range t.Columns {
			rec[i] = row[col]
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

// FormatFloat renders a float cell the way every writer in this repo does
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// FormatInt renders an integer cell
func FormatInt(v int) string {
	return strconv.Itoa(v)
}
