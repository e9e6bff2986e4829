package table

import (
	"errors"
	"fmt"
	"sort"
)

// Placeholder marks a position in a schema version that carries no usable field.
const Placeholder = "-"

// ErrUnknownSchema is returned for a positional row whose field count matches no schema version.
var ErrUnknownSchema = errors.New("unknown schema version")

// SchemaVersion is one observed upstream row layout.
type SchemaVersion struct {
	Name   string
	Fields []string
}

// SchemaSet selects a schema version by a positional row's field count.
// Fields that some version carries but the selected version lacks resolve to
// the missing value instead of failing the row.
type SchemaSet struct {
	byCount map[int]SchemaVersion
	known   map[string]struct{}
}

// NewSchemaSet builds a schema set. Field counts must be unique across versions.
func NewSchemaSet(versions ...SchemaVersion) (*SchemaSet, error) {
	s := &SchemaSet{
		byCount: make(map[int]SchemaVersion, len(versions)),
		known:   make(map[string]struct{}),
	}

	for _, v := range versions {
		if len(v.Fields) == 0 {
			return nil, fmt.Errorf("schema version %q has no fields", v.Name)
		}
		if prev, dup := s.byCount[len(v.Fields)]; dup {
			return nil, fmt.Errorf("schema versions %q and %q both have %d fields", prev.Name, v.Name, len(v.Fields))
		}

		seen := make(map[string]struct{}, len(v.Fields))
		for _, f := range v.Fields {
			if f == Placeholder {
				continue
			}
			if _, dup := seen[f]; dup {
				return nil, fmt.Errorf("schema version %q repeats field %q", v.Name, f)
			}
			seen[f] = struct{}{}
			s.known[f] = struct{}{}
		}
		s.byCount[len(v.Fields)] = v
	}

	return s, nil
}

// Versions returns the schema versions ordered by field count.
func (s *SchemaSet) Versions() []SchemaVersion {
	counts := make([]int, 0, len(s.byCount))
	for n := range s.byCount {
		counts = append(counts, n)
	}
	sort.Ints(counts)

	out := make([]SchemaVersion, len(counts))
	for i, n := range counts {
		out[i] = s.byCount[n]
	}
	return out
}

// Resolve converts a positional record into a named one using the version
// matching its field count. Named records pass through unchanged with an empty version name.
func (s *SchemaSet) Resolve(r Record) (Record, string, error) {
	if s == nil || !r.IsPositional() {
		return r, "", nil
	}

	v, ok := s.byCount[len(r.Positional)]
	if !ok {
		return r, "", fmt.Errorf("%w: %d fields", ErrUnknownSchema, len(r.Positional))
	}

	named := make(map[string]any, len(s.known))
	for f := range s.known {
		named[f] = nil
	}
	for i, f := range v.Fields {
		if f == Placeholder {
			continue
		}
		named[f] = r.Positional[i]
	}

	return NamedRecord(named), v.Name, nil
}
