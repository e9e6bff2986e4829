package export

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/pagetable/pkg/table"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// SQLiteOptions configures SQLite export.
type SQLiteOptions struct {
	// Replace drops an existing table of the same name before writing.
	Replace bool
}

// SQLiteWriter writes tables into a SQLite database file.
type SQLiteWriter struct {
	db   *sql.DB
	opts SQLiteOptions
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(path string, opts SQLiteOptions) (*SQLiteWriter, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return &SQLiteWriter{db: db, opts: opts}, nil
}

// DB exposes the underlying handle.
func (s *SQLiteWriter) DB() *sql.DB {
	return s.db
}

// WriteTable implements Writer. All rows are inserted in one transaction.
func (s *SQLiteWriter) WriteTable(ctx context.Context, name string, t *table.Table) error {
	if name == "" {
		return fmt.Errorf("sqlite export requires a table name")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %s has no columns", name)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if s.opts.Replace {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(name)); err != nil {
			return fmt.Errorf("drop table %s: %w", name, err)
		}
	}

	defs := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		defs[i] = quoteIdent(col) + " " + sqliteType(t.Types[i])
	}
	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(name), strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create table %s: %w", name, err)
	}

	quoted := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		quoted[i] = quoteIdent(col)
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(name),
		strings.Join(quoted, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(t.Columns)), ", "))

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(t.Columns))
	for i, row := range t.Rows {
		for j, v := range row {
			args[j] = sqliteValue(v, t.Types[j])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	log.Debug().
		Str("component", "export").
		Str("table", name).
		Int("rows", t.Len()).
		Msg("SQLite table written")
	return nil
}

// Close closes the database.
func (s *SQLiteWriter) Close() error {
	return s.db.Close()
}

func sqliteType(typ table.ColumnType) string {
	switch typ {
	case table.TypeFloat:
		return "REAL"
	case table.TypeInt:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

func sqliteValue(v any, typ table.ColumnType) any {
	if ts, ok := v.(time.Time); ok {
		return FormatValue(ts, typ)
	}
	return v
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
