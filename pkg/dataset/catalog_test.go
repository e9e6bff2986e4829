package dataset

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/Sternrassler/pagetable/internal/testutil"
	"github.com/Sternrassler/pagetable/pkg/decode"
	"github.com/Sternrassler/pagetable/pkg/table"
)

func TestBuiltin(t *testing.T) {
	c, err := Builtin()
	if err != nil {
		t.Fatalf("Builtin() error = %v", err)
	}

	want := []string{
		"amac_fund_manager",
		"bank_cbirc_doc",
		"fund_value_history",
		"stock_board_ths",
		"stock_gdfx_free_holding_statistics_em",
		"stock_lhb_detail_em",
	}
	if got := c.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}

	// Every built-in must compile.
	for _, name := range c.Names() {
		if _, err := c.Plan(name, Overrides{}); err != nil {
			t.Errorf("Plan(%s) error = %v", name, err)
		}
	}
}

func TestBuiltin_PlanDetails(t *testing.T) {
	c, err := Builtin()
	if err != nil {
		t.Fatalf("Builtin() error = %v", err)
	}

	amac, err := c.Plan("amac_fund_manager", Overrides{})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if amac.Request.Method != http.MethodPost || amac.Request.FirstPage != 0 || amac.Request.PageSize != 100 {
		t.Errorf("amac request = %+v", amac.Request)
	}
	if amac.Request.Headers.Get("Content-Type") != "application/json" {
		t.Errorf("amac headers = %v", amac.Request.Headers)
	}

	board, err := c.Plan("stock_board_ths", Overrides{})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if _, ok := board.Decoder.(*decode.HTML); !ok {
		t.Errorf("board decoder = %T, want *decode.HTML", board.Decoder)
	}
	if !board.Request.Paged() || board.Options.PageDelay != time.Second {
		t.Errorf("board plan = %+v", board)
	}

	hist, err := c.Plan("fund_value_history", Overrides{})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if hist.Request.Paged() || hist.Request.PageSize != 1 {
		t.Errorf("history request = %+v", hist.Request)
	}
	if hist.Spec.Schemas == nil || len(hist.Spec.Schemas.Versions()) != 4 {
		t.Error("history should carry four schema versions")
	}

	cbirc, err := c.Plan("bank_cbirc_doc", Overrides{})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if cbirc.Options.PagePolicy != table.SkipAndContinue || cbirc.Options.RowPolicy != table.FailFast {
		t.Errorf("cbirc options = %+v", cbirc.Options)
	}
}

func TestPlan_Overrides(t *testing.T) {
	c, err := Builtin()
	if err != nil {
		t.Fatalf("Builtin() error = %v", err)
	}

	delay := 2 * time.Second
	p, err := c.Plan("bank_cbirc_doc", Overrides{
		Params:     map[string]string{"itemId": "4115", "extra": "1"},
		PageSize:   50,
		PagePolicy: "fail_fast",
		RowPolicy:  "skip",
		PageDelay:  &delay,
	})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	if p.Request.Params.Get("itemId") != "4115" || p.Request.Params.Get("extra") != "1" {
		t.Errorf("Params = %v", p.Request.Params)
	}
	if p.Request.PageSize != 50 {
		t.Errorf("PageSize = %d", p.Request.PageSize)
	}
	if p.Options.PagePolicy != table.FailFast || p.Options.RowPolicy != table.SkipAndContinue {
		t.Errorf("Options = %+v", p.Options)
	}
	if p.Options.PageDelay != 2*time.Second {
		t.Errorf("PageDelay = %s", p.Options.PageDelay)
	}

	kept, err := c.Plan("bank_cbirc_doc", Overrides{})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if kept.Options.PageDelay != 500*time.Millisecond {
		t.Errorf("PageDelay without override = %s, want dataset's 500ms", kept.Options.PageDelay)
	}

	noDelay := time.Duration(0)
	cleared, err := c.Plan("bank_cbirc_doc", Overrides{PageDelay: &noDelay})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if cleared.Options.PageDelay != 0 {
		t.Errorf("PageDelay with zero override = %s, want 0", cleared.Options.PageDelay)
	}

	if _, err := c.Plan("bank_cbirc_doc", Overrides{PageSize: -1}); err == nil {
		t.Error("expected error for negative page size override")
	}
}

func TestCatalog_UnknownDataset(t *testing.T) {
	c, _ := Builtin()
	if _, err := c.Plan("nope", Overrides{}); !errors.Is(err, ErrUnknownDataset) {
		t.Errorf("error = %v, want ErrUnknownDataset", err)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"not yaml", "datasets: [:"},
		{"missing url", "datasets:\n  - name: a\n    columns: [{field: x}]\n"},
		{"no columns", "datasets:\n  - name: a\n    request: {url: http://x}\n"},
		{"field and index", "datasets:\n  - name: a\n    request: {url: http://x}\n    columns: [{field: x, index: 0}]\n"},
		{"index with schemas", "datasets:\n  - name: a\n    request: {url: http://x}\n    schemas: [{name: v2, fields: [date, close]}]\n    columns: [{index: 1, name: close, type: float}]\n"},
		{"bad format", "datasets:\n  - name: a\n    request: {url: http://x}\n    decoder: {format: xml}\n    columns: [{field: x}]\n"},
		{"bad policy", "datasets:\n  - name: a\n    request: {url: http://x}\n    columns: [{field: x}]\n    policy: {pages: retry}\n"},
		{"duplicate", "datasets:\n  - name: a\n    request: {url: http://x}\n    columns: [{field: x}]\n  - name: a\n    request: {url: http://y}\n    columns: [{field: x}]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadFileAndMerge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := `
datasets:
  - name: bank_cbirc_doc
    request:
      url: http://mirror.local/docs
      page_param: p
      size_param: s
      page_size: 10
    decoder: {rows: rows, total_count: total}
    columns:
      - {field: id, type: int}
  - name: custom
    request: {url: http://mirror.local/custom, page_size: 1}
    columns:
      - {field: a}
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	user, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	c, _ := Builtin()
	c.Merge(user)

	if len(c.Names()) != 7 {
		t.Errorf("Names() = %v", c.Names())
	}
	d, _ := c.Get("bank_cbirc_doc")
	if d.Request.URL != "http://mirror.local/docs" {
		t.Errorf("override not applied: %s", d.Request.URL)
	}

	p, err := c.Plan("bank_cbirc_doc", Overrides{})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if got := p.Spec.Names(); !reflect.DeepEqual(got, []string{"id"}) {
		t.Errorf("column names = %v, want field name as default", got)
	}
}

func TestPlan_FetchEndToEnd(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetPagedEndpoint("/docs", testutil.PagedEndpoint{
		PageParam:   "pageIndex",
		SizeParam:   "pageSize",
		FirstPage:   1,
		TotalRows:   40,
		ReportCount: true,
		Row: func(i int) map[string]any {
			return map[string]any{
				"docId":       float64(1000 + i),
				"docSubtitle": "decision",
				"publishDate": "2024-03-01 10:00:00",
			}
		},
	})

	c, err := Parse([]byte(`
datasets:
  - name: docs
    request:
      url: ` + mock.URL() + `/docs
      page_param: pageIndex
      size_param: pageSize
      page_size: 18
      first_page: 1
    decoder: {rows: rows, total_count: total}
    columns:
      - {field: docId, name: doc_id, type: int}
      - {field: docSubtitle, name: title}
      - {field: publishDate, name: publish_date, type: datetime}
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	p, err := c.Plan("docs", Overrides{})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	res, err := p.Fetch(context.Background(), http.DefaultClient)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if got, want := mock.PageValues(), []string{"1", "2", "3"}; !reflect.DeepEqual(got, want) {
		t.Errorf("page values = %v, want %v", got, want)
	}
	if res.Table.Len() != 40 {
		t.Errorf("rows = %d, want 40", res.Table.Len())
	}
	if res.Table.Rows[39][0] != int64(1039) {
		t.Errorf("last doc_id = %v", res.Table.Rows[39][0])
	}
	if ts, ok := res.Table.Rows[0][2].(time.Time); !ok || ts.Hour() != 10 {
		t.Errorf("publish_date = %v", res.Table.Rows[0][2])
	}
}
