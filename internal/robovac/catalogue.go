package robovac

import (
	_ "embed"
	"fmt"
	"maps"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed models.yaml
var builtinModels []byte

// modelCodeLen is how much of a full model code ("T2278-L60") identifies
// the hardware generation.
const modelCodeLen = 5

// Catalogue is a read-only set of model capability records.
type Catalogue struct {
	models map[string]*Model
}

type catalogueFile struct {
	Models map[string]*Model `yaml:"models"`
}

// ParseCatalogue parses and validates a capability table.
func ParseCatalogue(data []byte) (*Catalogue, error) {
	var file catalogueFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing model table: %w", err)
	}

	c := &Catalogue{models: make(map[string]*Model, len(file.Models))}
	for code, m := range file.Models {
		if m == nil {
			return nil, fmt.Errorf("%w: %s: empty definition", ErrInvalidModel, code)
		}
		m.Code = code
		if err := m.validate(); err != nil {
			return nil, err
		}
		c.models[code] = m
	}
	return c, nil
}

var defaultCatalogue = sync.OnceValue(func() *Catalogue {
	c, err := ParseCatalogue(builtinModels)
	if err != nil {
		panic(fmt.Sprintf("robovac: embedded models.yaml: %v", err))
	}
	return c
})

// DefaultCatalogue returns the embedded capability table.
func DefaultCatalogue() *Catalogue {
	return defaultCatalogue()
}

// LoadCatalogue returns the embedded table, extended or overridden by the
// models in path. An empty path returns the embedded table.
func LoadCatalogue(path string) (*Catalogue, error) {
	base := DefaultCatalogue()
	if path == "" {
		return base, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model table: %w", err)
	}
	extra, err := ParseCatalogue(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	merged := &Catalogue{models: maps.Clone(base.models)}
	maps.Copy(merged.models, extra.models)
	return merged, nil
}

// Lookup finds the model for a model code. Only the first five characters
// are significant.
func (c *Catalogue) Lookup(code string) (*Model, error) {
	key := code
	if len(key) > modelCodeLen {
		key = key[:modelCodeLen]
	}
	m, ok := c.models[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrModelNotSupported, code)
	}
	return m, nil
}

// Codes lists the known model codes, sorted.
func (c *Catalogue) Codes() []string {
	return slices.Sorted(maps.Keys(c.models))
}
