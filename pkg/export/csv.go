package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/Sternrassler/pagetable/pkg/table"
)

// CSVWriter writes a header row followed by one record per table row.
type CSVWriter struct {
	w      io.Writer
	closer io.Closer
}

// NewCSVWriter writes CSV to w.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: w}
}

// WriteTable implements Writer.
func (c *CSVWriter) WriteTable(ctx context.Context, _ string, t *table.Table) error {
	cw := csv.NewWriter(c.w)

	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	record := make([]string, len(t.Columns))
	for i, row := range t.Rows {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		for j, v := range row {
			record[j] = FormatValue(v, t.Types[j])
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Close closes the output file, if the writer opened one.
func (c *CSVWriter) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}
