package pagination

import (
	"time"

	"github.com/Sternrassler/pagetable/pkg/table"
)

// Report records what a fetch did beyond producing rows.
type Report struct {
	Dataset string

	// TotalPages is the page count derived from the first page.
	TotalPages int

	// PagesRequested counts HTTP requests issued, including failed ones.
	PagesRequested int

	// PagesFetched counts pages decoded successfully.
	PagesFetched int

	// Records counts raw records accumulated before normalization.
	Records int

	// SkippedPages lists pages dropped under SkipAndContinue.
	SkippedPages []*PageError

	// DroppedRows lists rows dropped under SkipAndContinue.
	DroppedRows []*table.RowError

	// SchemaVersions counts rows per resolved schema version.
	SchemaVersions map[string]int

	Duration time.Duration
}

// Partial reports whether any page or row was skipped.
func (r *Report) Partial() bool {
	return len(r.SkippedPages) > 0 || len(r.DroppedRows) > 0
}

// Result is the outcome of a successful fetch.
type Result struct {
	// ID correlates the fetch's log lines.
	ID string

	Table  *table.Table
	Report *Report
}
