// Package dataset holds declarative dataset definitions and compiles them into fetch plans.
//
// A catalog is YAML:
//
//	datasets:
//	  - name: bank_cbirc_doc
//	    request: {url: ..., page_param: pageIndex, size_param: pageSize, page_size: 18, first_page: 1}
//	    decoder: {format: json, rows: data.rows, total_count: data.total}
//	    columns:
//	      - {field: docId, name: doc_id, type: int}
//
// Built-in datasets are embedded; user catalogs override them by name.
package dataset

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/pagetable/pkg/table"
)

// ErrUnknownDataset is returned for a dataset name absent from the catalog.
var ErrUnknownDataset = errors.New("unknown dataset")

// Definition describes one dataset.
type Definition struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Request     RequestDef  `yaml:"request"`
	Decoder     DecoderDef  `yaml:"decoder"`
	Columns     []ColumnDef `yaml:"columns"`
	Schemas     []SchemaDef `yaml:"schemas"`
	Policy      PolicyDef   `yaml:"policy"`
}

// RequestDef describes the paginated endpoint.
type RequestDef struct {
	URL       string            `yaml:"url"`
	Method    string            `yaml:"method"`
	Params    map[string]string `yaml:"params"`
	Headers   map[string]string `yaml:"headers"`
	Body      string            `yaml:"body"`
	PageParam string            `yaml:"page_param"`
	SizeParam string            `yaml:"size_param"`
	PageSize  int               `yaml:"page_size"`
	FirstPage int               `yaml:"first_page"`
}

// DecoderDef selects and configures the body decoder.
type DecoderDef struct {
	// Format is json (default) or html.
	Format string `yaml:"format"`

	// Rows is a dotted path (json) or a CSS selector (html).
	Rows string `yaml:"rows"`

	// TotalCount is a dotted path to the total row count (json).
	TotalCount string `yaml:"total_count"`

	// TotalPages is a dotted path (json) or a CSS selector (html).
	TotalPages string `yaml:"total_pages"`

	Unwrap  bool   `yaml:"unwrap"`
	Split   string `yaml:"split"`
	Charset string `yaml:"charset"`

	Cells             string `yaml:"cells"`
	Header            string `yaml:"header"`
	SkipRows          int    `yaml:"skip_rows"`
	TotalPagesPattern string `yaml:"total_pages_pattern"`
}

// ColumnDef maps a raw field (by name) or position (by index) to an output column.
type ColumnDef struct {
	Field string `yaml:"field"`
	Index *int   `yaml:"index"`
	Name  string `yaml:"name"`
	Type  string `yaml:"type"`
}

// SchemaDef is one positional row layout.
type SchemaDef struct {
	Name   string   `yaml:"name"`
	Fields []string `yaml:"fields"`
}

// PolicyDef holds the dataset's failure policies and page delay.
type PolicyDef struct {
	Pages string        `yaml:"pages"`
	Rows  string        `yaml:"rows"`
	Delay time.Duration `yaml:"delay"`
}

// Validate checks that the definition can be compiled.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("dataset name is required")
	}
	if d.Request.URL == "" {
		return fmt.Errorf("dataset %s: request.url is required", d.Name)
	}
	if d.Request.PageSize < 0 {
		return fmt.Errorf("dataset %s: request.page_size must be >= 0", d.Name)
	}
	switch strings.ToLower(d.Decoder.Format) {
	case "", "json", "html":
	default:
		return fmt.Errorf("dataset %s: decoder.format must be json or html (got %q)", d.Name, d.Decoder.Format)
	}
	if len(d.Columns) == 0 {
		return fmt.Errorf("dataset %s: at least one column is required", d.Name)
	}
	for i, c := range d.Columns {
		if (c.Field == "") == (c.Index == nil) {
			return fmt.Errorf("dataset %s: column %d needs exactly one of field or index", d.Name, i)
		}
		// Schema versions name every positional row, so index lookups never match.
		if c.Index != nil && len(d.Schemas) > 0 {
			return fmt.Errorf("dataset %s: column %d selects by index but schemas name the fields; use field", d.Name, i)
		}
	}
	if _, err := table.ParseFailurePolicy(d.Policy.Pages); err != nil {
		return fmt.Errorf("dataset %s: policy.pages: %w", d.Name, err)
	}
	if _, err := table.ParseFailurePolicy(d.Policy.Rows); err != nil {
		return fmt.Errorf("dataset %s: policy.rows: %w", d.Name, err)
	}
	if d.Policy.Delay < 0 {
		return fmt.Errorf("dataset %s: policy.delay must be >= 0", d.Name)
	}
	return nil
}

// ColumnSpec builds the dataset's column spec.
func (d *Definition) ColumnSpec() (table.ColumnSpec, error) {
	var spec table.ColumnSpec

	for _, c := range d.Columns {
		typ, err := table.ParseColumnType(c.Type)
		if err != nil {
			return table.ColumnSpec{}, fmt.Errorf("column %q: %w", c.Name, err)
		}
		name := c.Name
		if c.Index != nil {
			spec.Columns = append(spec.Columns, table.ByIndex(*c.Index, name, typ))
			continue
		}
		if name == "" {
			name = c.Field
		}
		spec.Columns = append(spec.Columns, table.ByName(c.Field, name, typ))
	}

	if len(d.Schemas) > 0 {
		versions := make([]table.SchemaVersion, len(d.Schemas))
		for i, s := range d.Schemas {
			versions[i] = table.SchemaVersion{Name: s.Name, Fields: s.Fields}
		}
		set, err := table.NewSchemaSet(versions...)
		if err != nil {
			return table.ColumnSpec{}, err
		}
		spec.Schemas = set
	}

	if err := spec.Validate(); err != nil {
		return table.ColumnSpec{}, err
	}
	return spec, nil
}
