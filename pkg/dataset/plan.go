package dataset

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/pagetable/pkg/decode"
	"github.com/Sternrassler/pagetable/pkg/pagination"
	"github.com/Sternrassler/pagetable/pkg/table"
)

// Overrides adjust a dataset at plan time. Zero values keep the dataset's setting;
// PageDelay overrides whenever it is non-nil, so an explicit zero disables the delay.
type Overrides struct {
	// Params replace or add query parameters.
	Params map[string]string

	PageSize   int
	PagePolicy string
	RowPolicy  string
	PageDelay  *time.Duration
}

// Plan is a compiled dataset ready to fetch.
type Plan struct {
	Dataset string
	Request pagination.PageRequest
	Decoder pagination.Decoder
	Spec    table.ColumnSpec
	Options pagination.Options
}

// Plan compiles the named dataset with overrides applied.
// Policy precedence: overrides, then the dataset, then fail-fast.
func (c *Catalog) Plan(name string, o Overrides) (*Plan, error) {
	d, err := c.Get(name)
	if err != nil {
		return nil, err
	}
	return d.Plan(o)
}

// Plan compiles the definition with overrides applied.
func (d *Definition) Plan(o Overrides) (*Plan, error) {
	req, err := d.request(o)
	if err != nil {
		return nil, err
	}

	dec, err := d.decoder()
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", d.Name, err)
	}

	spec, err := d.ColumnSpec()
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", d.Name, err)
	}

	opts := pagination.DefaultOptions()
	opts.Dataset = d.Name
	if opts.PagePolicy, err = table.ParseFailurePolicy(firstNonEmpty(o.PagePolicy, d.Policy.Pages)); err != nil {
		return nil, fmt.Errorf("page policy: %w", err)
	}
	if opts.RowPolicy, err = table.ParseFailurePolicy(firstNonEmpty(o.RowPolicy, d.Policy.Rows)); err != nil {
		return nil, fmt.Errorf("row policy: %w", err)
	}
	opts.PageDelay = d.Policy.Delay
	if o.PageDelay != nil {
		opts.PageDelay = *o.PageDelay
	}

	return &Plan{
		Dataset: d.Name,
		Request: req,
		Decoder: dec,
		Spec:    spec,
		Options: opts,
	}, nil
}

func (d *Definition) request(o Overrides) (pagination.PageRequest, error) {
	r := d.Request

	params := url.Values{}
	for k, v := range r.Params {
		params.Set(k, v)
	}
	for k, v := range o.Params {
		params.Set(k, v)
	}

	var headers http.Header
	if len(r.Headers) > 0 {
		headers = make(http.Header, len(r.Headers))
		for k, v := range r.Headers {
			headers.Set(k, v)
		}
	}

	req := pagination.PageRequest{
		URL:       r.URL,
		Method:    strings.ToUpper(r.Method),
		Params:    params,
		Headers:   headers,
		PageParam: r.PageParam,
		SizeParam: r.SizeParam,
		PageSize:  r.PageSize,
		FirstPage: r.FirstPage,
	}
	if r.Body != "" {
		req.Body = []byte(r.Body)
	}
	if o.PageSize != 0 {
		req.PageSize = o.PageSize
	}
	if req.PageSize == 0 && !req.Paged() {
		req.PageSize = 1
	}

	if err := req.Validate(); err != nil {
		return pagination.PageRequest{}, fmt.Errorf("dataset %s: %w", d.Name, err)
	}
	return req, nil
}

func (d *Definition) decoder() (pagination.Decoder, error) {
	cfg := d.Decoder
	if strings.EqualFold(cfg.Format, "html") {
		return decode.NewHTML(decode.HTMLConfig{
			Rows:              cfg.Rows,
			Cells:             cfg.Cells,
			Header:            cfg.Header,
			SkipRows:          cfg.SkipRows,
			TotalPages:        cfg.TotalPages,
			TotalPagesPattern: cfg.TotalPagesPattern,
			Charset:           cfg.Charset,
		})
	}
	return decode.NewJSON(decode.JSONConfig{
		Rows:       cfg.Rows,
		TotalCount: cfg.TotalCount,
		TotalPages: cfg.TotalPages,
		Unwrap:     cfg.Unwrap,
		Split:      cfg.Split,
		Charset:    cfg.Charset,
	})
}

// Fetcher creates a fetcher for the plan.
func (p *Plan) Fetcher(doer pagination.Doer) *pagination.Fetcher {
	return pagination.NewFetcher(doer, p.Decoder, p.Options)
}

// Fetch runs the plan.
func (p *Plan) Fetch(ctx context.Context, doer pagination.Doer) (*pagination.Result, error) {
	return p.Fetcher(doer).Fetch(ctx, p.Request, p.Spec)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
