// Package series builds regular monthly demand series from raw posting rows.
//
// A RoleSeries is the unit the forecasting tiers operate on: one value per
// calendar month, spanning the observed date range with no gaps. A month with
// no surviving rows is recorded as 0 — absence of postings is a zero-demand
// signal, not missing data, so there is no forward-fill or interpolation. The
// month walk is explicit calendar arithmetic rather than any resampling
// shortcut, which keeps the gap-filling behavior testable on its own.
package series

import (
	"time"

	"github.com/hirelens/hirelens/pkg/dataset"
)

// dateLayouts are the accepted date formats, tried in order.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"2006-01",
}

// ParseDate coerces a cell value to a timestamp. Rows whose dates fail to
// parse are dropped by the builder, never fatal.
func ParseDate(v any) (time.Time, bool) {
	s, ok := dataset.String(v)
	if !ok || s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Point is one month's observed demand.
type Point struct {
	Month time.Time
	Count float64
}

// RoleSeries is a gap-free monthly count series for a single role, strictly
// monotonic in month.
type RoleSeries struct {
	Role   string
	Points []Point
}

// Len returns the number of months in the series.
func (s RoleSeries) Len() int { return len(s.Points) }

// Empty reports whether the series holds no months at all.
func (s RoleSeries) Empty() bool { return len(s.Points) == 0 }

// Values returns the monthly counts in chronological order.
func (s RoleSeries) Values() []float64 {
	values := make([]float64, len(s.Points))
	for i, p := range s.Points {
		values[i] = p.Count
	}
	return values
}

// Last returns the most recent monthly count, or 0 for an empty series.
func (s RoleSeries) Last() float64 {
	if len(s.Points) == 0 {
		return 0
	}
	return s.Points[len(s.Points)-1].Count
}

// monthOf truncates a timestamp to the first day of its month in UTC.
func monthOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// BuildMonthly aggregates raw rows for one role into a RoleSeries.
//
// Rows with unparseable dates are dropped. When countCol is non-empty the
// monthly value is the sum of that column over the month's rows (cells that
// fail numeric parsing contribute 0); when countCol is empty each row counts
// as one posting. The result spans every month from the earliest to the
// latest observed date, with unobserved months filled as 0.
//
// Empty input, or input whose dates all fail to parse, yields an empty
// series — never an error.
func BuildMonthly(role string, rows []dataset.Row, dateCol, countCol string) RoleSeries {
	buckets := make(map[time.Time]float64)
	var first, last time.Time

	for _, row := range rows {
		t, ok := ParseDate(row[dateCol])
		if !ok {
			continue
		}
		month := monthOf(t)

		if countCol != "" {
			v, _ := dataset.Float(row[countCol])
			buckets[month] += v
		} else {
			buckets[month]++
		}

		if first.IsZero() || month.Before(first) {
			first = month
		}
		if last.IsZero() || month.After(last) {
			last = month
		}
	}

	out := RoleSeries{Role: role}
	if first.IsZero() {
		return out
	}

	for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
		out.Points = append(out.Points, Point{Month: m, Count: buckets[m]})
	}
	return out
}
