package pagination

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Sternrassler/pagetable/pkg/table"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for page fetching.
var (
	pagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagetable_pages_total",
		Help: "Total page requests by dataset and outcome",
	}, []string{"dataset", "outcome"})

	fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagetable_fetches_total",
		Help: "Total table fetches by dataset and outcome",
	}, []string{"dataset", "outcome"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pagetable_fetch_duration_seconds",
		Help:    "Duration of complete table fetches by dataset",
		Buckets: []float64{0.5, 1, 5, 15, 60, 300, 900},
	}, []string{"dataset"})

	rowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagetable_rows_total",
		Help: "Total normalized rows produced by dataset",
	}, []string{"dataset"})
)

// Doer issues HTTP requests. *client.Client and *http.Client both satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options holds fetcher configuration.
type Options struct {
	// Dataset labels logs and metrics.
	Dataset string

	// PagePolicy decides whether a failed page aborts the fetch or is skipped.
	// The first page always aborts.
	PagePolicy table.FailurePolicy

	// RowPolicy decides whether a row that does not fit the column spec aborts
	// normalization or is dropped.
	RowPolicy table.FailurePolicy

	// PageDelay is a fixed pause before each page after the first.
	PageDelay time.Duration
}

// DefaultOptions returns fail-fast options without delay.
func DefaultOptions() Options {
	return Options{
		Dataset:    "unnamed",
		PagePolicy: table.FailFast,
		RowPolicy:  table.FailFast,
	}
}

// Fetcher retrieves paginated endpoints one page at a time.
type Fetcher struct {
	doer    Doer
	decoder Decoder
	opts    Options
	logger  zerolog.Logger
}

// NewFetcher creates a new fetcher.
func NewFetcher(doer Doer, decoder Decoder, opts Options) *Fetcher {
	if opts.Dataset == "" {
		opts.Dataset = "unnamed"
	}
	if opts.PagePolicy == "" {
		opts.PagePolicy = table.FailFast
	}
	if opts.RowPolicy == "" {
		opts.RowPolicy = table.FailFast
	}
	if opts.PageDelay < 0 {
		opts.PageDelay = 0
	}

	return &Fetcher{
		doer:    doer,
		decoder: decoder,
		opts:    opts,
		logger:  log.With().Str("component", "pagination").Str("dataset", opts.Dataset).Logger(),
	}
}

// ProbeTotalPages fetches page 1 and derives the total page count from it.
// The decoded first page is returned so callers need not request it again.
func (f *Fetcher) ProbeTotalPages(ctx context.Context, req PageRequest) (int, *PageResponse, error) {
	if err := req.Validate(); err != nil {
		return 0, nil, err
	}

	first, err := f.fetchPage(ctx, req, 1)
	if err != nil {
		return 0, nil, err
	}

	if !req.Paged() {
		if len(first.Records) == 0 {
			return 0, first, nil
		}
		return 1, first, nil
	}

	total, err := totalPages(first, req.PageSize)
	if err != nil {
		return 0, nil, &PageError{Page: 1, Value: req.PageValue(1), Err: err}
	}

	if total == 0 && len(first.Records) > 0 {
		f.logger.Warn().
			Int("rows", len(first.Records)).
			Msg("Endpoint reported zero pages but returned rows; treating as one page")
		total = 1
	}

	return total, first, nil
}

// FetchAllPages fetches logical pages 1..totalPages in order, issuing exactly
// totalPages requests when nothing fails.
func (f *Fetcher) FetchAllPages(ctx context.Context, req PageRequest, totalPages int) ([]*PageResponse, *Report, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	report := &Report{Dataset: f.opts.Dataset, TotalPages: totalPages}
	pages, err := f.fetchRange(ctx, req, 1, totalPages, report)
	if err != nil {
		return nil, report, err
	}
	return pages, report, nil
}

// Fetch runs the whole pipeline: probe, remaining pages, normalize.
func (f *Fetcher) Fetch(ctx context.Context, req PageRequest, spec table.ColumnSpec) (*Result, error) {
	start := time.Now()
	id := uuid.NewString()
	logger := f.logger.With().Str("fetch_id", id).Logger()

	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("column spec: %w", err)
	}

	report := &Report{Dataset: f.opts.Dataset, SchemaVersions: map[string]int{}}

	total, first, err := f.ProbeTotalPages(ctx, req)
	report.PagesRequested++
	if err != nil {
		pagesTotal.WithLabelValues(f.opts.Dataset, "failed").Inc()
		fetchesTotal.WithLabelValues(f.opts.Dataset, "error").Inc()
		logger.Error().Err(err).Msg("First page fetch failed")
		return nil, fmt.Errorf("failed to fetch first page: %w", err)
	}
	pagesTotal.WithLabelValues(f.opts.Dataset, "ok").Inc()
	report.PagesFetched++
	report.TotalPages = total

	logger.Info().
		Int("total_pages", total).
		Int("page_size", req.PageSize).
		Msg("Starting sequential page fetch")

	var pages []*PageResponse
	if total > 0 {
		pages = append(pages, first)
		report.Records += len(first.Records)

		rest, err := f.fetchRange(ctx, req, 2, total, report)
		if err != nil {
			fetchesTotal.WithLabelValues(f.opts.Dataset, "error").Inc()
			return nil, err
		}
		pages = append(pages, rest...)
	}

	var records []table.Record
	for _, p := range pages {
		records = append(records, p.Records...)
	}

	tbl, normReport, err := table.Normalize(records, spec, f.opts.RowPolicy)
	if normReport != nil {
		report.DroppedRows = normReport.Dropped
		report.SchemaVersions = normReport.SchemaVersions
	}
	if err != nil {
		fetchesTotal.WithLabelValues(f.opts.Dataset, "error").Inc()
		return nil, fmt.Errorf("normalize: %w", err)
	}

	report.Duration = time.Since(start)
	outcome := "ok"
	if report.Partial() {
		outcome = "partial"
	}
	fetchesTotal.WithLabelValues(f.opts.Dataset, outcome).Inc()
	fetchDuration.WithLabelValues(f.opts.Dataset).Observe(report.Duration.Seconds())
	rowsTotal.WithLabelValues(f.opts.Dataset).Add(float64(tbl.Len()))

	logger.Info().
		Int("pages", report.PagesFetched).
		Int("total", total).
		Int("skipped_pages", len(report.SkippedPages)).
		Int("dropped_rows", len(report.DroppedRows)).
		Int("rows", tbl.Len()).
		Dur("duration", report.Duration).
		Msg("Fetch complete")

	return &Result{ID: id, Table: tbl, Report: report}, nil
}

// fetchRange fetches logical pages from..to inclusive.
func (f *Fetcher) fetchRange(ctx context.Context, req PageRequest, from, to int, report *Report) ([]*PageResponse, error) {
	var pages []*PageResponse

	for page := from; page <= to; page++ {
		if page > 1 && f.opts.PageDelay > 0 {
			if err := sleep(ctx, f.opts.PageDelay); err != nil {
				return pages, err
			}
		}
		if err := ctx.Err(); err != nil {
			f.logger.Debug().
				Int("page", page).
				Msg("Stopping page fetch (context cancelled)")
			return pages, err
		}

		resp, err := f.fetchPage(ctx, req, page)
		report.PagesRequested++
		if err != nil {
			if f.opts.PagePolicy == table.SkipAndContinue && ctx.Err() == nil {
				pagesTotal.WithLabelValues(f.opts.Dataset, "skipped").Inc()
				f.logger.Warn().
					Err(err).
					Int("page", page).
					Int("total_pages", to).
					Msg("Page fetch failed - skipping page")
				report.SkippedPages = append(report.SkippedPages, asPageError(err, req, page))
				continue
			}
			pagesTotal.WithLabelValues(f.opts.Dataset, "failed").Inc()
			f.logger.Error().
				Err(err).
				Int("page", page).
				Msg("Page fetch failed")
			return pages, err
		}

		pagesTotal.WithLabelValues(f.opts.Dataset, "ok").Inc()
		pages = append(pages, resp)
		report.PagesFetched++
		report.Records += len(resp.Records)

		// Progress logging every 50 pages
		if page%50 == 0 {
			f.logger.Info().
				Int("fetched", page).
				Int("total", to).
				Float64("progress_pct", float64(page)/float64(to)*100).
				Msg("Fetch progress")
		}
	}

	return pages, nil
}

// fetchPage requests and decodes one logical page.
func (f *Fetcher) fetchPage(ctx context.Context, req PageRequest, page int) (*PageResponse, error) {
	pageErr := func(err error) error {
		return &PageError{Page: page, Value: req.PageValue(page), Err: err}
	}

	httpReq, err := req.Build(ctx, page)
	if err != nil {
		return nil, pageErr(err)
	}

	resp, err := f.doer.Do(httpReq)
	if err != nil {
		return nil, pageErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, pageErr(fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pageErr(fmt.Errorf("read body: %w", err))
	}

	decoded, err := f.decoder.Decode(body)
	if err != nil {
		return nil, pageErr(fmt.Errorf("decode: %w", err))
	}
	if decoded == nil {
		return nil, pageErr(ErrNoResponse)
	}
	decoded.Page = page

	f.logger.Debug().
		Int("page", page).
		Int("rows", len(decoded.Records)).
		Msg("Page fetched")

	return decoded, nil
}

func asPageError(err error, req PageRequest, page int) *PageError {
	if pe, ok := err.(*PageError); ok {
		return pe
	}
	return &PageError{Page: page, Value: req.PageValue(page), Err: err}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
