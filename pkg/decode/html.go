package decode

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/Sternrassler/pagetable/pkg/pagination"
	"github.com/Sternrassler/pagetable/pkg/table"
)

// HTML decoder defaults.
const (
	DefaultRowSelector  = "table tbody tr"
	DefaultCellSelector = "td"
)

var digitsPattern = regexp.MustCompile(`\d+`)

// HTMLConfig configures an HTML table page decoder.
type HTMLConfig struct {
	// Rows selects one element per row. Defaults to DefaultRowSelector.
	Rows string

	// Cells selects the cells within a row. Defaults to DefaultCellSelector.
	Cells string

	// Header selects header cells. When the header has as many cells as a row,
	// the row becomes a named record keyed by header text.
	Header string

	// SkipRows drops this many leading rows, for tables whose header sits in tbody.
	SkipRows int

	// TotalPages selects the element carrying the page count, e.g. "#m-page span.page_info".
	TotalPages string

	// TotalPagesPattern extracts the count from that element's text; the first
	// submatch is used when present. Defaults to the last run of digits.
	TotalPagesPattern string

	// Charset of the body; empty means UTF-8.
	Charset string
}

// HTML decodes HTML table pages.
type HTML struct {
	cfg     HTMLConfig
	pattern *regexp.Regexp
}

// NewHTML creates an HTML decoder.
func NewHTML(cfg HTMLConfig) (*HTML, error) {
	if err := ValidateCharset(cfg.Charset); err != nil {
		return nil, err
	}
	if cfg.Rows == "" {
		cfg.Rows = DefaultRowSelector
	}
	if cfg.Cells == "" {
		cfg.Cells = DefaultCellSelector
	}
	if cfg.SkipRows < 0 {
		return nil, fmt.Errorf("skip rows must be >= 0 (got %d)", cfg.SkipRows)
	}

	d := &HTML{cfg: cfg}
	if cfg.TotalPagesPattern != "" {
		re, err := regexp.Compile(cfg.TotalPagesPattern)
		if err != nil {
			return nil, fmt.Errorf("total pages pattern: %w", err)
		}
		d.pattern = re
	}
	return d, nil
}

// Decode implements pagination.Decoder.
func (d *HTML) Decode(body []byte) (*pagination.PageResponse, error) {
	body, err := ToUTF8(body, d.cfg.Charset)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}

	var header []string
	if d.cfg.Header != "" {
		doc.Find(d.cfg.Header).Each(func(_ int, s *goquery.Selection) {
			header = append(header, cellText(s))
		})
	}

	resp := &pagination.PageResponse{
		TotalCount: pagination.Unknown,
		TotalPages: pagination.Unknown,
	}

	skipped := 0
	doc.Find(d.cfg.Rows).Each(func(_ int, row *goquery.Selection) {
		if skipped < d.cfg.SkipRows {
			skipped++
			return
		}

		var cells []string
		row.Find(d.cfg.Cells).Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, cellText(cell))
		})
		if len(cells) == 0 {
			return
		}

		if len(header) == len(cells) {
			named := make(map[string]any, len(cells))
			for i, h := range header {
				named[h] = cells[i]
			}
			resp.Records = append(resp.Records, table.NamedRecord(named))
			return
		}

		values := make([]any, len(cells))
		for i, c := range cells {
			values[i] = c
		}
		resp.Records = append(resp.Records, table.PositionalRecord(values))
	})

	if d.cfg.TotalPages != "" {
		resp.TotalPages = d.totalPages(doc, len(resp.Records))
	}
	return resp, nil
}

// totalPages reads the pager. A page without a pager is a single page when it has rows.
func (d *HTML) totalPages(doc *goquery.Document, rows int) int {
	pager := doc.Find(d.cfg.TotalPages).First()
	if pager.Length() == 0 {
		if rows > 0 {
			return 1
		}
		return 0
	}

	text := strings.TrimSpace(pager.Text())
	var raw string
	if d.pattern != nil {
		m := d.pattern.FindStringSubmatch(text)
		switch {
		case m == nil:
			return pagination.Unknown
		case len(m) > 1:
			raw = m[1]
		default:
			raw = m[0]
		}
	} else {
		all := digitsPattern.FindAllString(text, -1)
		if len(all) == 0 {
			return pagination.Unknown
		}
		raw = all[len(all)-1]
	}

	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return pagination.Unknown
	}
	return n
}

func cellText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
