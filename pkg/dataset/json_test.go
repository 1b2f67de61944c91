package dataset

import "testing"

func TestReadJSON(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		rowsPath    string
		wantColumns []string
		wantRows    int
		wantErr     bool
	}{
		{
			name:        "root array",
			input:       `[{"job_title":"Data Scientist","date":"2024-01-01"},{"job_title":"Engineer","date":"2024-02-01"}]`,
			rowsPath:    "",
			wantColumns: []string{"job_title", "date"},
			wantRows:    2,
		},
		{
			name:        "nested rows path",
			input:       `{"data":[{"role":"Analyst","count":12}]}`,
			rowsPath:    "data",
			wantColumns: []string{"role", "count"},
			wantRows:    1,
		},
		{
			name:     "missing rows path",
			input:    `{"data":[]}`,
			rowsPath: "postings",
			wantErr:  true,
		},
		{
			name:     "rows path not an array",
			input:    `{"data":{"role":"Analyst"}}`,
			rowsPath: "data",
			wantErr:  true,
		},
		{
			name:        "non-object entries skipped",
			input:       `[{"role":"Analyst"},"junk",{"role":"Engineer"}]`,
			rowsPath:    "",
			wantColumns: []string{"role"},
			wantRows:    2,
		},
		{
			name:        "columns union in first-seen order",
			input:       `[{"role":"Analyst"},{"role":"Engineer","count":5}]`,
			rowsPath:    "",
			wantColumns: []string{"role", "count"},
			wantRows:    2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := ReadJSON([]byte(tt.input), tt.rowsPath)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ReadJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}

			if len(ds.Columns) != len(tt.wantColumns) {
				t.Fatalf("Columns = %v, want %v", ds.Columns, tt.wantColumns)
			}
			for i, c := range tt.wantColumns {
				if ds.Columns[i] != c {
					t.Errorf("Columns[%d] = %q, want %q", i, ds.Columns[i], c)
				}
			}
			if ds.Len() != tt.wantRows {
				t.Errorf("Len() = %d, want %d", ds.Len(), tt.wantRows)
			}
		})
	}
}

func TestReadJSON_NumericCells(t *testing.T) {
	ds, err := ReadJSON([]byte(`[{"role":"Analyst","count":12}]`), "")
	if err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}

	v, ok := Float(ds.Rows[0]["count"])
	if !ok || v != 12 {
		t.Errorf("Float(count) = (%v, %v), want (12, true)", v, ok)
	}
}
