package decode

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Sternrassler/pagetable/pkg/pagination"
	"github.com/Sternrassler/pagetable/pkg/table"
	jsoniter "github.com/json-iterator/go"
)

var (
	// ErrMissingKey is returned when the rows path is absent from a body.
	ErrMissingKey = errors.New("missing key")

	// ErrMalformedBody is returned for a body that is not valid JSON after unwrapping.
	ErrMalformedBody = errors.New("malformed body")

	// ErrUnexpectedRows is returned when the rows value is not an array.
	ErrUnexpectedRows = errors.New("rows value is not an array")

	// ErrUnexpectedRow is returned for a row that is neither an object, an array
	// nor a splittable string.
	ErrUnexpectedRow = errors.New("unexpected row")
)

// rowsAPI keeps numbers as json.Number so integers beyond 2^53 survive decoding.
var rowsAPI = jsoniter.Config{UseNumber: true}.Froze()

var (
	jsonpPattern = regexp.MustCompile(`(?s)^\s*[\w$.]+\s*\(\s*(.*?)\s*\)\s*;?\s*$`)
	varPattern   = regexp.MustCompile(`(?s)^\s*(?:var|let|const)\s+[\w$]+\s*=\s*(.*?)\s*;?\s*$`)
)

// JSONConfig configures a JSON page decoder.
type JSONConfig struct {
	// Rows is the dotted path to the row array. Empty means the document root.
	Rows string

	// TotalCount is the dotted path to the total row count, if the endpoint reports one.
	TotalCount string

	// TotalPages is the dotted path to the total page count, if the endpoint reports one.
	TotalPages string

	// Unwrap strips a JSONP callback or a "var x = ...;" assignment around the document.
	Unwrap bool

	// Split, when set, splits string rows on this separator into positional records.
	Split string

	// Charset of the body; empty means UTF-8.
	Charset string
}

// JSON decodes JSON page bodies.
type JSON struct {
	cfg   JSONConfig
	rows  []any
	count []any
	pages []any
}

// NewJSON creates a JSON decoder.
func NewJSON(cfg JSONConfig) (*JSON, error) {
	if err := ValidateCharset(cfg.Charset); err != nil {
		return nil, err
	}
	return &JSON{
		cfg:   cfg,
		rows:  parsePath(cfg.Rows),
		count: parsePath(cfg.TotalCount),
		pages: parsePath(cfg.TotalPages),
	}, nil
}

// Decode implements pagination.Decoder.
func (d *JSON) Decode(body []byte) (*pagination.PageResponse, error) {
	body, err := ToUTF8(body, d.cfg.Charset)
	if err != nil {
		return nil, err
	}
	if d.cfg.Unwrap {
		body = unwrapScript(body)
	}
	if !jsoniter.Valid(body) {
		return nil, fmt.Errorf("%w: %s", ErrMalformedBody, snippet(body))
	}

	resp := &pagination.PageResponse{
		TotalCount: pagination.Unknown,
		TotalPages: pagination.Unknown,
	}
	if d.cfg.TotalCount != "" {
		resp.TotalCount = readTotal(body, d.count)
	}
	if d.cfg.TotalPages != "" {
		resp.TotalPages = readTotal(body, d.pages)
	}

	rows, isNull := walk(body, d.rows)
	if isNull {
		return resp, nil
	}

	switch rows.ValueType() {
	case jsoniter.InvalidValue:
		return nil, fmt.Errorf("%w: %q", ErrMissingKey, d.cfg.Rows)
	case jsoniter.NilValue:
		return resp, nil
	case jsoniter.ArrayValue:
	default:
		return nil, fmt.Errorf("%w: %q is %s", ErrUnexpectedRows, d.cfg.Rows, valueTypeName(rows.ValueType()))
	}

	var items []any
	if err := rowsAPI.UnmarshalFromString(rows.ToString(), &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}

	resp.Records = make([]table.Record, 0, len(items))
	for i, item := range items {
		rec, err := d.record(item)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		resp.Records = append(resp.Records, rec)
	}
	return resp, nil
}

func (d *JSON) record(item any) (table.Record, error) {
	switch v := item.(type) {
	case nil:
		// An empty record fails every column lookup, leaving the row to the row policy.
		return table.NamedRecord(map[string]any{}), nil
	case map[string]any:
		return table.NamedRecord(v), nil
	case []any:
		return table.PositionalRecord(v), nil
	case string:
		if d.cfg.Split == "" {
			return table.Record{}, fmt.Errorf("%w: string row without split separator", ErrUnexpectedRow)
		}
		parts := strings.Split(v, d.cfg.Split)
		values := make([]any, len(parts))
		for i, p := range parts {
			values[i] = p
		}
		return table.PositionalRecord(values), nil
	default:
		return table.Record{}, fmt.Errorf("%w: row of type %T", ErrUnexpectedRow, item)
	}
}

// parsePath splits a dotted path; numeric segments become array indices.
func parsePath(path string) []any {
	if path == "" {
		return nil
	}
	segments := strings.Split(path, ".")
	out := make([]any, len(segments))
	for i, s := range segments {
		if n, err := strconv.Atoi(s); err == nil {
			out[i] = n
		} else {
			out[i] = s
		}
	}
	return out
}

// walk follows path through body. It reports isNull when a null is met
// before the path ends.
func walk(body []byte, path []any) (value jsoniter.Any, isNull bool) {
	cur := jsoniter.Get(body)
	for _, seg := range path {
		if cur.ValueType() == jsoniter.NilValue {
			return cur, true
		}
		cur = cur.Get(seg)
	}
	return cur, false
}

// readTotal reads a number or numeric string at path, or Unknown.
func readTotal(body []byte, path []any) int {
	v, isNull := walk(body, path)
	if isNull {
		return pagination.Unknown
	}
	switch v.ValueType() {
	case jsoniter.NumberValue:
		n := v.ToInt()
		if n < 0 {
			return pagination.Unknown
		}
		return n
	case jsoniter.StringValue:
		n, err := strconv.Atoi(strings.TrimSpace(v.ToString()))
		if err != nil || n < 0 {
			return pagination.Unknown
		}
		return n
	default:
		return pagination.Unknown
	}
}

// unwrapScript strips a JSONP callback or a script variable assignment.
func unwrapScript(body []byte) []byte {
	if jsoniter.Valid(body) {
		return body
	}
	for _, re := range []*regexp.Regexp{varPattern, jsonpPattern} {
		if m := re.FindSubmatch(body); m != nil {
			return m[1]
		}
	}
	return body
}

func valueTypeName(t jsoniter.ValueType) string {
	switch t {
	case jsoniter.StringValue:
		return "a string"
	case jsoniter.NumberValue:
		return "a number"
	case jsoniter.BoolValue:
		return "a bool"
	case jsoniter.ObjectValue:
		return "an object"
	default:
		return "invalid"
	}
}

func snippet(body []byte) string {
	const limit = 120
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
