package decode

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/Sternrassler/pagetable/pkg/pagination"
	"github.com/Sternrassler/pagetable/pkg/table"
)

func TestJSON_Decode(t *testing.T) {
	tests := []struct {
		name       string
		cfg        JSONConfig
		body       string
		wantRows   int
		wantCount  int
		wantPages  int
		wantErr    error
		positional bool
	}{
		{
			name:      "datacenter result",
			cfg:       JSONConfig{Rows: "result.data", TotalPages: "result.pages", TotalCount: "result.count"},
			body:      `{"result": {"pages": 3, "count": 250, "data": [{"SECURITY_CODE": "600519"}, {"SECURITY_CODE": "000001"}]}}`,
			wantRows:  2,
			wantCount: 250,
			wantPages: 3,
		},
		{
			name:      "count as string",
			cfg:       JSONConfig{Rows: "data.rows", TotalCount: "data.total"},
			body:      `{"data": {"total": "37", "rows": [{"docId": 1}]}}`,
			wantRows:  1,
			wantCount: 37,
			wantPages: pagination.Unknown,
		},
		{
			name:      "null result is an empty page",
			cfg:       JSONConfig{Rows: "result.data", TotalPages: "result.pages"},
			body:      `{"result": null, "success": false}`,
			wantRows:  0,
			wantCount: pagination.Unknown,
			wantPages: pagination.Unknown,
		},
		{
			name:      "null rows is an empty page",
			cfg:       JSONConfig{Rows: "content", TotalPages: "totalPages"},
			body:      `{"content": null, "totalPages": 0}`,
			wantRows:  0,
			wantCount: pagination.Unknown,
			wantPages: 0,
		},
		{
			name:    "missing rows key",
			cfg:     JSONConfig{Rows: "content"},
			body:    `{"items": []}`,
			wantErr: ErrMissingKey,
		},
		{
			name:    "rows not an array",
			cfg:     JSONConfig{Rows: "content"},
			body:    `{"content": {"a": 1}}`,
			wantErr: ErrUnexpectedRows,
		},
		{
			name:    "malformed body",
			cfg:     JSONConfig{Rows: "content"},
			body:    `<html>error</html>`,
			wantErr: ErrMalformedBody,
		},
		{
			name:       "split string rows",
			cfg:        JSONConfig{Rows: "data.klines", Split: ","},
			body:       `{"data": {"klines": ["2024-01-02,10.1,10.3", "2024-01-03,10.3,10.2"]}}`,
			wantRows:   2,
			wantCount:  pagination.Unknown,
			wantPages:  pagination.Unknown,
			positional: true,
		},
		{
			name:    "string rows without split",
			cfg:     JSONConfig{Rows: "data.klines"},
			body:    `{"data": {"klines": ["a,b"]}}`,
			wantErr: ErrUnexpectedRow,
		},
		{
			name:    "scalar row",
			cfg:     JSONConfig{Rows: "content"},
			body:    `{"content": [{"a": 1}, 7]}`,
			wantErr: ErrUnexpectedRow,
		},
		{
			name:      "null row kept as empty record",
			cfg:       JSONConfig{Rows: "rows"},
			body:      `{"rows": [{"id": 1}, null, {"id": 3}]}`,
			wantRows:  3,
			wantCount: pagination.Unknown,
			wantPages: pagination.Unknown,
		},
		{
			name:       "array index in path",
			cfg:        JSONConfig{Rows: "data.0.rows"},
			body:       `{"data": [{"rows": [[1, "a"], [2, "b"]]}]}`,
			wantRows:   2,
			wantCount:  pagination.Unknown,
			wantPages:  pagination.Unknown,
			positional: true,
		},
		{
			name:      "jsonp callback",
			cfg:       JSONConfig{Rows: "data", TotalPages: "pages", Unwrap: true},
			body:      `jQuery1124_1700000000({"pages": 2, "data": [{"a": 1}]});`,
			wantRows:  1,
			wantCount: pagination.Unknown,
			wantPages: 2,
		},
		{
			name:      "var assignment",
			cfg:       JSONConfig{Rows: "datas", TotalCount: "record", Unwrap: true},
			body:      "var rankData = {\"datas\": [{\"a\": 1}, {\"a\": 2}], \"record\": 9};",
			wantRows:  2,
			wantCount: 9,
			wantPages: pagination.Unknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewJSON(tt.cfg)
			if err != nil {
				t.Fatalf("NewJSON() error = %v", err)
			}

			resp, err := d.Decode([]byte(tt.body))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Decode() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}

			if len(resp.Records) != tt.wantRows {
				t.Errorf("rows = %d, want %d", len(resp.Records), tt.wantRows)
			}
			if resp.TotalCount != tt.wantCount {
				t.Errorf("TotalCount = %d, want %d", resp.TotalCount, tt.wantCount)
			}
			if resp.TotalPages != tt.wantPages {
				t.Errorf("TotalPages = %d, want %d", resp.TotalPages, tt.wantPages)
			}
			for i, r := range resp.Records {
				if r.IsPositional() != tt.positional {
					t.Errorf("record %d positional = %v, want %v", i, r.IsPositional(), tt.positional)
				}
			}
		})
	}
}

func TestJSON_SplitValues(t *testing.T) {
	d, err := NewJSON(JSONConfig{Rows: "data.klines", Split: ","})
	if err != nil {
		t.Fatalf("NewJSON() error = %v", err)
	}

	resp, err := d.Decode([]byte(`{"data": {"klines": ["2024-01-02,10.1,,0.5"]}}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	rec := resp.Records[0]
	if rec.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", rec.Len())
	}
	if rec.Positional[0] != "2024-01-02" || rec.Positional[2] != "" {
		t.Errorf("values = %v", rec.Positional)
	}
}

func TestJSON_NumbersKeepPrecision(t *testing.T) {
	d, _ := NewJSON(JSONConfig{Rows: "content"})

	resp, err := d.Decode([]byte(`{"content": [{"establishDate": 1262188800000, "id": 12345678901234567, "nav": 1.0523}]}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	rec := resp.Records[0].Named
	tests := []struct {
		field string
		typ   table.ColumnType
		want  any
	}{
		{"establishDate", table.TypeInt, int64(1262188800000)},
		{"id", table.TypeString, "12345678901234567"},
		{"id", table.TypeInt, int64(12345678901234567)},
		{"nav", table.TypeFloat, 1.0523},
	}
	for _, tt := range tests {
		if _, ok := rec[tt.field].(json.Number); !ok {
			t.Errorf("%s decoded as %T, want json.Number", tt.field, rec[tt.field])
		}
		if got := table.Coerce(rec[tt.field], tt.typ); got != tt.want {
			t.Errorf("Coerce(%s, %s) = %v (%T), want %v", tt.field, tt.typ, got, got, tt.want)
		}
	}
}

func TestJSON_NullRowFollowsRowPolicy(t *testing.T) {
	d, _ := NewJSON(JSONConfig{Rows: "rows"})

	resp, err := d.Decode([]byte(`{"rows": [{"id": 1}, null, {"id": 3}]}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	spec := table.ColumnSpec{Columns: []table.Column{table.ByName("id", "id", table.TypeInt)}}

	tbl, report, err := table.Normalize(resp.Records, spec, table.SkipAndContinue)
	if err != nil {
		t.Fatalf("Normalize(skip) error = %v", err)
	}
	if tbl.Len() != 2 || len(report.Dropped) != 1 || report.Dropped[0].Row != 1 {
		t.Errorf("rows = %d, dropped = %v, want 2 rows and row 1 dropped", tbl.Len(), report.Dropped)
	}

	if _, _, err := table.Normalize(resp.Records, spec, table.FailFast); !errors.Is(err, table.ErrMissingField) {
		t.Errorf("Normalize(fail_fast) error = %v, want ErrMissingField", err)
	}
}

func TestNewJSON_UnsupportedCharset(t *testing.T) {
	if _, err := NewJSON(JSONConfig{Charset: "latin9"}); !errors.Is(err, ErrUnsupportedCharset) {
		t.Errorf("error = %v, want ErrUnsupportedCharset", err)
	}
}
