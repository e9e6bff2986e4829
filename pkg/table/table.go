package table

// Table is a fixed-column result. A nil cell is the missing value; other
// cells hold string, float64, int64 or time.Time according to the column type.
type Table struct {
	Columns []string
	Types   []ColumnType
	Rows    [][]any
}

// New returns an empty table shaped by spec.
func New(spec ColumnSpec) *Table {
	return &Table{
		Columns: spec.Names(),
		Types:   spec.Types(),
		Rows:    [][]any{},
	}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of a named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns all values of a named column.
func (t *Table) Column(name string) ([]any, bool) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}
	out := make([]any, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, true
}
