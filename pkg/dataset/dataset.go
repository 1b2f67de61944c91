// Package dataset provides a lightweight, column-name-driven tabular
// structure for job-posting data, plus readers that normalize CSV and JSON
// inputs into it.
//
// A Dataset carries no schema beyond its column names. Consumers locate the
// columns they need through FirstColumn with an ordered preference list and
// coerce cell values with the Float/String helpers, so the same reader output
// serves ingestion paths with different column conventions (job_title vs
// job_role vs role, postings_count optional, and so on).
package dataset

import (
	"strconv"
	"strings"
)

// Row represents a single posting observation.
// Example: {"job_title": "Data Scientist", "date": "2024-03-01", "postings_count": "42"}
type Row map[string]any

// Dataset is a tabular collection of rows sharing one column set.
// Column order is the order the reader encountered the columns in.
type Dataset struct {
	Columns []string
	Rows    []Row
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// HasColumn reports whether the dataset declares the named column.
func (d *Dataset) HasColumn(name string) bool {
	if d == nil {
		return false
	}
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// FirstColumn returns the first candidate that exists in the dataset's
// columns, honoring candidate order. The second return is false when none
// match.
func (d *Dataset) FirstColumn(candidates ...string) (string, bool) {
	for _, c := range candidates {
		if d.HasColumn(c) {
			return c, true
		}
	}
	return "", false
}

// Float coerces a cell value to float64. CSV cells arrive as strings while
// JSON cells arrive as float64 or json.Number-like strings, so both paths are
// handled. Returns false for empty, missing, or non-numeric values.
func Float(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// String coerces a cell value to a trimmed string. Numeric cells are
// formatted; nil and unknown types report false.
func String(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		return "", false
	}
}
