// Package pagination fetches every page of a paginated upstream endpoint and
// assembles the rows into one normalized table.
//
// Upstream endpoints report their size either as a total page count or as a
// total row count. The fetcher requests page 1, derives the page count from
// whichever field the endpoint provides, then requests the remaining pages
// strictly in order and hands the accumulated records to table.Normalize.
//
// Example usage:
//
//	req := pagination.PageRequest{
//		URL:       "https://datacenter-web.eastmoney.com/api/data/v1/get",
//		Params:    url.Values{"reportName": {"RPT_DAILYBILLBOARD_DETAILSNEW"}},
//		PageParam: "pageNumber",
//		SizeParam: "pageSize",
//		PageSize:  500,
//		FirstPage: 1,
//	}
//	fetcher := pagination.NewFetcher(httpClient, decoder, pagination.DefaultOptions())
//	result, err := fetcher.Fetch(ctx, req, spec)
//
// The fetcher:
//   - Fetches page 1 to determine total pages
//   - Fetches pages 2..N sequentially, reusing page 1 (N requests in total)
//   - Never retries; a failed page either aborts the fetch or is skipped,
//     depending on Options.PagePolicy
//   - Records skipped pages and dropped rows in the Report
package pagination
