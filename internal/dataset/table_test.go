package dataset

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadWriteCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "features.csv")

	tbl := New(ColUserID, ColAsOfDate, "sessions_7d", "plan")
	tbl.Append(Row{ColUserID: "1", ColAsOfDate: "2026-01-01", "sessions_7d": "4", "plan": "paid"})
	tbl.Append(Row{ColUserID: "2", ColAsOfDate: "2026-01-02", "sessions_7d": "", "plan": "free"})

	require.NoError(t, tbl.WriteCSV(path))

	got, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, tbl.Columns, got.Columns)
	require.Equal(t, 2, got.Len())
	assert.Equal(t, "paid", got.Rows[0]["plan"])
	assert.Equal(t, "", got.Rows[1]["sessions_7d"])
}

func TestReadCSV_MissingFile(t *testing.T) {
	_, err := ReadCSV(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope.csv")
}

func TestFloats_DropsUnparseable(t *testing.T) {
	tbl := New("v")
	for _, s := range []string{"1.5", "", "abc", "2", "-0.5"} {
		tbl.Append(Row{"v": s})
	}

	assert.Equal(t, []float64{1.5, 2, -0.5}, tbl.Floats("v"))
}

func TestLabels_Coercion(t *testing.T) {
	tbl := New(ColChurnLabel)
	for _, s := range []string{"1", "0", "", "oops", "1.0"} {
		tbl.Append(Row{ColChurnLabel: s})
	}

	labels, err := tbl.Labels()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 0, 0, 1}, labels)
}

func TestLabels_MissingColumn(t *testing.T) {
	tbl := New(ColUserID)
	_, err := tbl.Labels()

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, ColChurnLabel, schemaErr.Column)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		ok   bool
		want string
	}{
		{"2026-03-01", true, "2026-03-01"},
		{"2026-03-01T10:30:00Z", true, "2026-03-01"},
		{"2026-03-01 10:30:00", true, "2026-03-01"},
		{"03/01/2026", false, ""},
		{"", false, ""},
	}

	for _, tt := range tests {
		d, ok := ParseDate(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, d.Format("2006-01-02"))
		}
	}
}

func TestDistinctDates(t *testing.T) {
	tbl := New(ColAsOfDate)
	for _, s := range []string{"2026-01-03", "2026-01-01", "2026-01-03", "bad", "2026-01-02"} {
		tbl.Append(Row{ColAsOfDate: s})
	}

	dates, err := tbl.DistinctDates()
	require.NoError(t, err)
	require.Len(t, dates, 3)
	assert.Equal(t, "2026-01-01", dates[0].Format("2006-01-02"))
	assert.Equal(t, "2026-01-03", dates[2].Format("2006-01-02"))
}
