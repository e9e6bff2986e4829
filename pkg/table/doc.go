// Package table turns raw upstream row records into typed, fixed-column tables.
//
// A ColumnSpec names, in output order, which raw field feeds each output
// column and how its value is coerced:
//
//	spec := table.ColumnSpec{Columns: []table.Column{
//		table.ByName("SECURITY_CODE", "code", table.TypeString),
//		table.ByName("TRADE_DATE", "date", table.TypeDate),
//		table.ByName("CLOSE_PRICE", "close", table.TypeFloat),
//	}}
//	tbl, report, err := table.Normalize(records, spec, table.FailFast)
//
// Numeric and date coercion never fails: a value that cannot be parsed
// becomes the missing value (nil). Structural problems (a named field that
// is absent, a position past the end of the row, a positional row whose
// length matches no known schema version) are row failures and follow the
// caller's FailurePolicy.
//
// Upstream payloads drift over time. Positional rows are mapped through a
// SchemaSet, which selects an explicit field list by the row's field count.
package table
