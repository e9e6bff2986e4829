package dataset

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed builtin.yaml
var builtinYAML []byte

// Catalog is a set of dataset definitions keyed by name.
type Catalog struct {
	defs map[string]*Definition
}

type catalogFile struct {
	Datasets []*Definition `yaml:"datasets"`
}

// Builtin returns the embedded catalog.
func Builtin() (*Catalog, error) {
	c, err := Parse(builtinYAML)
	if err != nil {
		return nil, fmt.Errorf("builtin catalog: %w", err)
	}
	return c, nil
}

// Parse decodes a YAML catalog and validates every definition.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c := &Catalog{defs: make(map[string]*Definition, len(file.Datasets))}
	for _, d := range file.Datasets {
		if d == nil {
			continue
		}
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.defs[d.Name]; dup {
			return nil, fmt.Errorf("dataset %s defined twice", d.Name)
		}
		c.defs[d.Name] = d
	}
	return c, nil
}

// LoadFile reads a YAML catalog from path.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Merge adds other's definitions, replacing same-named ones.
func (c *Catalog) Merge(other *Catalog) {
	for name, d := range other.defs {
		c.defs[name] = d
	}
}

// Names returns the dataset names in lexical order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.defs))
	for name := range c.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the named definition.
func (c *Catalog) Get(name string) (*Definition, error) {
	d, ok := c.defs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDataset, name)
	}
	return d, nil
}
