package table

import (
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for normalization.
var (
	rowsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagetable_rows_dropped_total",
		Help: "Total rows dropped during normalization by reason",
	}, []string{"reason"})

	valuesMissingTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagetable_coerce_missing_total",
		Help: "Total non-null raw values that coerced to the missing value by column type",
	}, []string{"type"})
)

var (
	// ErrMissingField is returned when a row lacks a field the column spec selects.
	ErrMissingField = errors.New("missing field")

	// ErrIndexOutOfRange is returned when a positional row is shorter than a selected position.
	ErrIndexOutOfRange = errors.New("field position out of range")
)

// FailurePolicy decides what happens to a page or row that cannot be processed.
type FailurePolicy string

const (
	// FailFast aborts the whole operation on the first failure.
	FailFast FailurePolicy = "fail_fast"

	// SkipAndContinue drops the failed unit, records it and carries on.
	SkipAndContinue FailurePolicy = "skip"
)

// ParseFailurePolicy converts a configuration value into a FailurePolicy.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail_fast", "failfast", "fail":
		return FailFast, nil
	case "skip", "skip_and_continue", "continue":
		return SkipAndContinue, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q", s)
	}
}

// RowError describes a row that could not be normalized.
type RowError struct {
	// Row is the row's position in the aggregated record sequence.
	Row int
	Err error
}

// Error implements the error interface.
func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *RowError) Unwrap() error {
	return e.Err
}

// NormalizeReport summarizes what Normalize did besides producing rows.
type NormalizeReport struct {
	// Dropped lists rows skipped under SkipAndContinue.
	Dropped []*RowError

	// SchemaVersions counts rows per resolved schema version.
	SchemaVersions map[string]int
}

// Normalize projects records through spec into a table, in record order.
// The same records and spec always yield the same columns, in the same order, with the same values.
func Normalize(records []Record, spec ColumnSpec, policy FailurePolicy) (*Table, *NormalizeReport, error) {
	if err := spec.Validate(); err != nil {
		return nil, nil, err
	}

	tbl := New(spec)
	tbl.Rows = make([][]any, 0, len(records))
	report := &NormalizeReport{SchemaVersions: map[string]int{}}

	for i, rec := range records {
		row, version, err := normalizeRow(rec, spec)
		if err != nil {
			rowErr := &RowError{Row: i, Err: err}
			if policy != SkipAndContinue {
				return nil, report, rowErr
			}

			rowsDroppedTotal.WithLabelValues(dropReason(err)).Inc()
			log.Warn().
				Err(err).
				Int("row", i).
				Msg("Dropping row that does not match column spec")
			report.Dropped = append(report.Dropped, rowErr)
			continue
		}

		if version != "" {
			report.SchemaVersions[version]++
		}
		tbl.Rows = append(tbl.Rows, row)
	}

	return tbl, report, nil
}

func normalizeRow(rec Record, spec ColumnSpec) ([]any, string, error) {
	rec, version, err := spec.Schemas.Resolve(rec)
	if err != nil {
		return nil, "", err
	}

	row := make([]any, len(spec.Columns))
	for j, col := range spec.Columns {
		raw, err := rec.Lookup(col)
		if err != nil {
			return nil, "", fmt.Errorf("column %q (%s): %w", col.Name, col.source(), err)
		}

		v := Coerce(raw, col.Type)
		if v == nil && raw != nil {
			valuesMissingTotal.WithLabelValues(string(col.Type)).Inc()
		}
		row[j] = v
	}
	return row, version, nil
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, ErrUnknownSchema):
		return "unknown_schema"
	case errors.Is(err, ErrIndexOutOfRange):
		return "index_out_of_range"
	case errors.Is(err, ErrMissingField):
		return "missing_field"
	default:
		return "other"
	}
}
