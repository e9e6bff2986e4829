package table

import "fmt"

// Record is one raw row as delivered by an upstream page, before renaming and coercion.
// Named rows come from JSON objects, positional rows from JSON arrays, split
// strings and HTML table cells.
type Record struct {
	Named      map[string]any
	Positional []any
}

// NamedRecord wraps a field map.
func NamedRecord(fields map[string]any) Record {
	if fields == nil {
		fields = map[string]any{}
	}
	return Record{Named: fields}
}

// PositionalRecord wraps an ordered value list.
func PositionalRecord(values []any) Record {
	if values == nil {
		values = []any{}
	}
	return Record{Positional: values}
}

// IsPositional reports whether the record is addressed by position.
func (r Record) IsPositional() bool {
	return r.Named == nil
}

// Len returns the number of fields in the record.
func (r Record) Len() int {
	if r.IsPositional() {
		return len(r.Positional)
	}
	return len(r.Named)
}

// Lookup returns the raw value a column selects.
func (r Record) Lookup(c Column) (any, error) {
	if c.Field != "" {
		if r.IsPositional() {
			return nil, fmt.Errorf("%w: %q (row is positional with %d fields)", ErrMissingField, c.Field, len(r.Positional))
		}
		v, ok := r.Named[c.Field]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingField, c.Field)
		}
		return v, nil
	}

	if !r.IsPositional() {
		return nil, fmt.Errorf("%w: position %d on a named row", ErrMissingField, c.Index)
	}
	if c.Index < 0 || c.Index >= len(r.Positional) {
		return nil, fmt.Errorf("%w: position %d, row has %d fields", ErrIndexOutOfRange, c.Index, len(r.Positional))
	}
	return r.Positional[c.Index], nil
}
