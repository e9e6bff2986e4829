// Package export writes normalized tables to CSV, JSON or SQLite.
package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/pagetable/pkg/table"
)

// Format names an output format.
type Format string

const (
	FormatCSV    Format = "csv"
	FormatJSON   Format = "json"
	FormatSQLite Format = "sqlite"
)

// Writer writes tables to a sink.
type Writer interface {
	// WriteTable writes t under name. Stream formats ignore name.
	WriteTable(ctx context.Context, name string, t *table.Table) error
	Close() error
}

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON, FormatSQLite:
		return f, nil
	case "":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want csv, json or sqlite)", s)
	}
}

// Open creates a writer for format. Stream formats write to stdout when path
// is empty or "-"; SQLite requires a path.
func Open(format Format, path string, stdout io.Writer) (Writer, error) {
	if format == FormatSQLite {
		if path == "" || path == "-" {
			return nil, fmt.Errorf("sqlite export requires an output path")
		}
		return OpenSQLite(path, SQLiteOptions{Replace: true})
	}

	var out io.Writer = stdout
	var closer io.Closer
	if path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", path, err)
		}
		out, closer = f, f
	}

	switch format {
	case FormatCSV:
		return &CSVWriter{w: out, closer: closer}, nil
	case FormatJSON:
		return &JSONWriter{w: out, closer: closer}, nil
	default:
		if closer != nil {
			closer.Close()
		}
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}

// Date and datetime layouts used in text output.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
)

// FormatValue renders a table value as text. Missing values render empty.
func FormatValue(v any, typ table.ColumnType) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case time.Time:
		if typ == table.TypeDate {
			return x.Format(DateLayout)
		}
		return x.Format(DateTimeLayout)
	default:
		return fmt.Sprint(x)
	}
}
