package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Sternrassler/pagetable/pkg/table"
	jsoniter "github.com/json-iterator/go"
)

// JSONWriter writes a table as an array of objects with keys in column order.
type JSONWriter struct {
	w      io.Writer
	closer io.Closer
}

// NewJSONWriter writes JSON to w.
func NewJSONWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{w: w}
}

// WriteTable implements Writer.
func (j *JSONWriter) WriteTable(ctx context.Context, _ string, t *table.Table) error {
	stream := jsoniter.NewStream(jsoniter.ConfigCompatibleWithStandardLibrary, j.w, 4096)

	stream.WriteArrayStart()
	for i, row := range t.Rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectStart()
		for k, v := range row {
			if k > 0 {
				stream.WriteMore()
			}
			stream.WriteObjectField(t.Columns[k])
			writeValue(stream, v, t.Types[k])
		}
		stream.WriteObjectEnd()

		if stream.Buffered() > 64*1024 {
			if err := stream.Flush(); err != nil {
				return fmt.Errorf("write json: %w", err)
			}
		}
	}
	stream.WriteArrayEnd()
	stream.WriteRaw("\n")

	if stream.Error != nil {
		return fmt.Errorf("encode json: %w", stream.Error)
	}
	if err := stream.Flush(); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

func writeValue(stream *jsoniter.Stream, v any, typ table.ColumnType) {
	switch x := v.(type) {
	case nil:
		stream.WriteNil()
	case string:
		stream.WriteString(x)
	case float64:
		stream.WriteFloat64(x)
	case int64:
		stream.WriteInt64(x)
	case time.Time:
		stream.WriteString(FormatValue(x, typ))
	default:
		stream.WriteVal(x)
	}
}

// Close closes the output file, if the writer opened one.
func (j *JSONWriter) Close() error {
	if j.closer == nil {
		return nil
	}
	return j.closer.Close()
}
