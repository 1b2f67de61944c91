package dataset

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// ReadJSON extracts a Dataset from a JSON document.
//
// rowsPath is a gjson path addressing an array of row objects, e.g. "data" or
// "result.postings". An empty rowsPath treats the document root as the row
// array. Column order follows first appearance across rows; scalar values are
// carried through as gjson reports them (float64, string, bool).
func ReadJSON(data []byte, rowsPath string) (*Dataset, error) {
	var rows gjson.Result
	if rowsPath == "" {
		rows = gjson.ParseBytes(data)
	} else {
		rows = gjson.GetBytes(data, rowsPath)
		if !rows.Exists() {
			return nil, fmt.Errorf("json: rows path %q not found", rowsPath)
		}
	}

	if !rows.IsArray() {
		return nil, fmt.Errorf("json: rows path %q is not an array", rowsPath)
	}

	ds := &Dataset{}
	seen := make(map[string]bool)

	rows.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			return true // skip non-object entries rather than abort
		}

		row := make(Row)
		item.ForEach(func(key, value gjson.Result) bool {
			col := key.String()
			if !seen[col] {
				seen[col] = true
				ds.Columns = append(ds.Columns, col)
			}
			row[col] = value.Value()
			return true
		})
		ds.Rows = append(ds.Rows, row)
		return true
	})

	return ds, nil
}
