package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/san-kum/cmbview/internal/param"
	"gopkg.in/yaml.v3"
)

// ErrInvalidCatalog indicates a model definition that cannot be laid out or
// rendered.
var ErrInvalidCatalog = errors.New("config: invalid catalog")

type catalogFile struct {
	Models []modelFile `yaml:"models"`
}

type modelFile struct {
	Name   string    `yaml:"name"`
	Title  string    `yaml:"title,omitempty"`
	Params paramList `yaml:"params,omitempty"`
}

type paramFile struct {
	Default float64 `yaml:"default"`
	Min     float64 `yaml:"min"`
	Max     float64 `yaml:"max"`
	Step    float64 `yaml:"step"`
}

// paramList decodes a YAML mapping while keeping its key order, which is the
// parameters' declaration order.
type paramList []param.Definition

func (l *paramList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: params must be a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		var pf paramFile
		if err := value.Decode(&pf); err != nil {
			return fmt.Errorf("param %s: %w", key.Value, err)
		}
		*l = append(*l, param.Definition{
			Name:    key.Value,
			Default: pf.Default,
			Range:   param.Range[float64]{Min: pf.Min, Max: pf.Max, Step: pf.Step},
		})
	}
	return nil
}

func (l paramList) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, d := range l {
		var value yaml.Node
		pf := paramFile{Default: d.Default, Min: d.Range.Min, Max: d.Range.Max, Step: d.Range.Step}
		if err := value.Encode(pf); err != nil {
			return nil, err
		}
		value.Style = yaml.FlowStyle
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: d.Name}, &value)
	}
	return node, nil
}

// LoadCatalog reads a model catalog from a YAML file and validates it.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}
	cat := make(Catalog, len(f.Models))
	for i, m := range f.Models {
		cat[i] = param.Model{Name: m.Name, Title: m.Title, Params: m.Params}
	}
	if err := Validate(cat); err != nil {
		return nil, err
	}
	return cat, nil
}

func SaveCatalog(path string, cat Catalog) error {
	data, err := MarshalCatalog(cat)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func MarshalCatalog(cat Catalog) ([]byte, error) {
	f := catalogFile{Models: make([]modelFile, len(cat))}
	for i, m := range cat {
		f.Models[i] = modelFile{Name: m.Name, Title: m.Title, Params: m.Params}
	}
	return yaml.Marshal(f)
}

// Validate checks every precondition the layout and fetch paths rely on:
// unique names, and a valid range enclosing each default.
func Validate(cat Catalog) error {
	if len(cat) == 0 {
		return fmt.Errorf("%w: no models", ErrInvalidCatalog)
	}
	models := make(map[string]struct{}, len(cat))
	for _, m := range cat {
		if m.Name == "" {
			return fmt.Errorf("%w: model without a name", ErrInvalidCatalog)
		}
		if _, dup := models[m.Name]; dup {
			return fmt.Errorf("%w: duplicate model %q", ErrInvalidCatalog, m.Name)
		}
		models[m.Name] = struct{}{}

		names := make(map[string]struct{}, len(m.Params))
		for _, p := range m.Params {
			if p.Name == "" {
				return fmt.Errorf("%w: %s: parameter without a name", ErrInvalidCatalog, m.Name)
			}
			if _, dup := names[p.Name]; dup {
				return fmt.Errorf("%w: %s: duplicate parameter %q", ErrInvalidCatalog, m.Name, p.Name)
			}
			names[p.Name] = struct{}{}
			if !p.Range.Valid() {
				return fmt.Errorf("%w: %s.%s: bad range %s", ErrInvalidCatalog, m.Name, p.Name, p.Range)
			}
			if !p.Range.Contains(p.Default) {
				return fmt.Errorf("%w: %s.%s: default %v outside %s", ErrInvalidCatalog, m.Name, p.Name, p.Default, p.Range)
			}
		}
	}
	return nil
}
