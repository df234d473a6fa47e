package dataset

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// minDistinctDatesForCutoff is the point below which the date-level cutoff
// degrades into a positional cut (tiny datasets).
const minDistinctDatesForCutoff = 5

// Split partitions a labeled dataset into train/eval subsets by calendar
// time, never by random sampling, so evaluation is always forward-looking.
//
// Rows whose as_of_date does not parse are dropped before any decision.
// With >= 5 distinct dates the cut is made on the sorted distinct dates:
// everything at or before the cutoff date trains, everything after
// evaluates. With fewer dates the rows are date-sorted and cut positionally
// at floor(rows*(1-testFraction)); that fallback does not guarantee the two
// subsets never share a date.
func Split(t *Table, testFraction float64) (train, eval *Table, err error) {
	if !t.HasColumn(ColAsOfDate) {
		return nil, nil, &SchemaError{Column: ColAsOfDate}
	}
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, fmt.Errorf("test fraction must be in (0, 1), got %v", testFraction)
	}

	type datedRow struct {
		row  Row
		date time.Time
	}

	dated := make([]datedRow, 0, len(t.Rows))
	for _, r := range t.Rows {
		if d, ok := ParseDate(r[ColAsOfDate]); ok {
			dated = append(dated, datedRow{row: r, date: d})
		}
	}

	distinct := make(map[time.Time]struct{})
	for _, dr := range dated {
		distinct[dr.date] = struct{}{}
	}

	train = &Table{Columns: t.Columns}
	eval = &Table{Columns: t.Columns}

	if len(distinct) < minDistinctDatesForCutoff {
		// Positional fallback for tiny datasets: sort by date, cut by row
		// count. Rows sharing the boundary date may land on both sides.
		sort.SliceStable(dated, func(i, j int) bool { return dated[i].date.Before(dated[j].date) })

		cut := int(math.Floor(float64(len(dated)) * (1 - testFraction)))
		for i, dr := range dated {
			if i < cut {
				train.Append(dr.row)
			} else {
				eval.Append(dr.row)
			}
		}
		return train, eval, nil
	}

	dates := make([]time.Time, 0, len(distinct))
	for d := range distinct {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	cut := int(math.Floor(float64(len(dates)) * (1 - testFraction)))
	if cut < 1 {
		cut = 1
	}
	if cut > len(dates)-1 {
		cut = len(dates) - 1
	}
	cutoff := dates[cut-1]

	for _, dr := range dated {
		if !dr.date.After(cutoff) {
			train.Append(dr.row)
		} else {
			eval.Append(dr.row)
		}
	}

	return train, eval, nil
}
