package table

import (
	"errors"
	"fmt"
	"strings"
)

// ColumnType selects the coercion applied to a column's raw values.
type ColumnType string

const (
	// TypeString keeps the value as trimmed text.
	TypeString ColumnType = "string"

	// TypeFloat parses a float64; unparsable values become missing.
	TypeFloat ColumnType = "float"

	// TypeInt parses an int64; unparsable or fractional values become missing.
	TypeInt ColumnType = "int"

	// TypeDate parses a calendar date (midnight, China Standard Time).
	TypeDate ColumnType = "date"

	// TypeDateTime parses a timestamp (China Standard Time).
	TypeDateTime ColumnType = "datetime"
)

// ParseColumnType converts a catalog type name into a ColumnType.
func ParseColumnType(s string) (ColumnType, error) {
	switch ColumnType(strings.ToLower(strings.TrimSpace(s))) {
	case "", TypeString:
		return TypeString, nil
	case TypeFloat, "number", "numeric":
		return TypeFloat, nil
	case TypeInt, "integer":
		return TypeInt, nil
	case TypeDate:
		return TypeDate, nil
	case TypeDateTime, "timestamp":
		return TypeDateTime, nil
	default:
		return "", fmt.Errorf("unknown column type %q", s)
	}
}

// Column maps one raw field to one output column.
// The raw field is selected by Field when it is set, otherwise by Index.
type Column struct {
	Field string
	Index int
	Name  string
	Type  ColumnType
}

// ByName selects a raw field by name.
func ByName(field, name string, typ ColumnType) Column {
	return Column{Field: field, Index: -1, Name: name, Type: typ}
}

// ByIndex selects a raw field by position.
func ByIndex(index int, name string, typ ColumnType) Column {
	return Column{Index: index, Name: name, Type: typ}
}

func (c Column) source() string {
	if c.Field != "" {
		return c.Field
	}
	return fmt.Sprintf("#%d", c.Index)
}

// ColumnSpec is the per-dataset projection from raw records to output columns.
type ColumnSpec struct {
	Columns []Column

	// Schemas repairs positional rows whose shape drifted between upstream versions.
	Schemas *SchemaSet
}

// Names returns the output column names in order.
func (s ColumnSpec) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Types returns the output column types in order.
func (s ColumnSpec) Types() []ColumnType {
	types := make([]ColumnType, len(s.Columns))
	for i, c := range s.Columns {
		types[i] = c.Type
	}
	return types
}

// Validate checks that the column spec can produce a well-formed table.
func (s ColumnSpec) Validate() error {
	if len(s.Columns) == 0 {
		return errors.New("column spec has no columns")
	}

	seen := make(map[string]struct{}, len(s.Columns))
	for i, c := range s.Columns {
		if c.Name == "" {
			return fmt.Errorf("column %d: output name is required", i)
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("column %d: duplicate output name %q", i, c.Name)
		}
		seen[c.Name] = struct{}{}

		if c.Field == "" && c.Index < 0 {
			return fmt.Errorf("column %q: either field or index is required", c.Name)
		}
		if _, err := ParseColumnType(string(c.Type)); err != nil {
			return fmt.Errorf("column %q: %w", c.Name, err)
		}
	}
	return nil
}
