package decode

import (
	"testing"

	"github.com/Sternrassler/pagetable/pkg/pagination"
	"golang.org/x/text/encoding/simplifiedchinese"
)

const boardPage = `<html><body>
<table class="m-table">
  <thead><tr><th>序号</th><th>板块</th><th>涨跌幅(%)</th></tr></thead>
  <tbody>
    <tr><td>1</td><td><a href="/detail/1">半导体</a></td><td> 3.21 </td></tr>
    <tr><td>2</td><td><a href="/detail/2">白酒</a></td><td>-1.05</td></tr>
  </tbody>
</table>
<div id="m-page"><a>首页</a><span class="page_info">1/45</span></div>
</body></html>`

func gbk(t *testing.T, s string) []byte {
	t.Helper()
	out, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte(s))
	if err != nil {
		t.Fatalf("encode GBK: %v", err)
	}
	return out
}

func TestHTML_DecodeGBKWithHeader(t *testing.T) {
	d, err := NewHTML(HTMLConfig{
		Header:            "table thead th",
		TotalPages:        "#m-page span.page_info",
		TotalPagesPattern: `/\s*(\d+)`,
		Charset:           "gbk",
	})
	if err != nil {
		t.Fatalf("NewHTML() error = %v", err)
	}

	resp, err := d.Decode(gbk(t, boardPage))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if resp.TotalPages != 45 {
		t.Errorf("TotalPages = %d, want 45", resp.TotalPages)
	}
	if len(resp.Records) != 2 {
		t.Fatalf("rows = %d, want 2", len(resp.Records))
	}
	first := resp.Records[0]
	if first.IsPositional() {
		t.Fatal("expected named record")
	}
	if first.Named["板块"] != "半导体" || first.Named["涨跌幅(%)"] != "3.21" {
		t.Errorf("record = %v", first.Named)
	}
}

func TestHTML_PositionalWithoutHeader(t *testing.T) {
	d, err := NewHTML(HTMLConfig{TotalPages: "#m-page span.page_info"})
	if err != nil {
		t.Fatalf("NewHTML() error = %v", err)
	}

	resp, err := d.Decode([]byte(boardPage))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if resp.TotalPages != 45 {
		t.Errorf("TotalPages = %d, want 45 (last digit run)", resp.TotalPages)
	}
	if !resp.Records[1].IsPositional() || resp.Records[1].Positional[2] != "-1.05" {
		t.Errorf("record = %+v", resp.Records[1])
	}
}

func TestHTML_TotalPages(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{
			name: "no pager with rows",
			body: `<table><tbody><tr><td>a</td></tr></tbody></table>`,
			want: 1,
		},
		{
			name: "no pager without rows",
			body: `<table><tbody></tbody></table>`,
			want: 0,
		},
		{
			name: "pager without digits",
			body: `<table><tbody><tr><td>a</td></tr></tbody></table><div id="m-page"><span class="page_info">-</span></div>`,
			want: pagination.Unknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewHTML(HTMLConfig{TotalPages: "#m-page span.page_info"})
			if err != nil {
				t.Fatalf("NewHTML() error = %v", err)
			}
			resp, err := d.Decode([]byte(tt.body))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if resp.TotalPages != tt.want {
				t.Errorf("TotalPages = %d, want %d", resp.TotalPages, tt.want)
			}
		})
	}
}

func TestHTML_SkipRows(t *testing.T) {
	body := `<table><tr><td>title</td></tr><tr><td>a</td></tr><tr><td>b</td></tr><tr><th>footer</th></tr></table>`

	d, err := NewHTML(HTMLConfig{Rows: "table tr", SkipRows: 1})
	if err != nil {
		t.Fatalf("NewHTML() error = %v", err)
	}
	resp, err := d.Decode([]byte(body))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	// SkipRows drops "title"; the th-only row yields no cells and is ignored.
	if len(resp.Records) != 2 {
		t.Fatalf("rows = %d, want 2", len(resp.Records))
	}
	if resp.Records[0].Positional[0] != "a" {
		t.Errorf("first row = %v", resp.Records[0].Positional)
	}
	if resp.TotalPages != pagination.Unknown {
		t.Errorf("TotalPages = %d, want Unknown", resp.TotalPages)
	}
}

func TestNewHTML_InvalidPattern(t *testing.T) {
	if _, err := NewHTML(HTMLConfig{TotalPagesPattern: "("}); err == nil {
		t.Error("expected error for invalid pattern")
	}
}
