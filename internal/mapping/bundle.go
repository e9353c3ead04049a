// Package mapping reads and writes mapping bundles: YAML documents that
// declare suppliers, their mappings and the mappings' rules.
package mapping

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/invoicemap/internal/model"
	"github.com/cleared-dev/invoicemap/internal/rules"
)

// ErrInvalidBundle is returned for bundles that cannot be imported.
var ErrInvalidBundle = errors.New("invalid mapping bundle")

// Bundle is the root of a mapping file.
type Bundle struct {
	Suppliers []Supplier `yaml:"suppliers"`
}

// Supplier declares one supplier and its mappings.
type Supplier struct {
	Name       string    `yaml:"name"`
	ShortName  string    `yaml:"short_name,omitempty"`
	Type       string    `yaml:"type,omitempty"`
	OtherNames string    `yaml:"other_names,omitempty"`
	Mappings   []Mapping `yaml:"mappings,omitempty"`
}

// Mapping declares one mapping. Active defaults to true.
type Mapping struct {
	Name           string   `yaml:"name"`
	Description    string   `yaml:"description,omitempty"`
	Notes          string   `yaml:"notes,omitempty"`
	Active         *bool    `yaml:"active,omitempty"`
	SampleHeaders  []string `yaml:"sample_headers,omitempty"`
	SampleFirstRow []string `yaml:"sample_first_row,omitempty"`
	Rules          []Rule   `yaml:"rules"`
}

// Rule declares one mapping rule.
type Rule struct {
	Name           string `yaml:"name"`
	Role           string `yaml:"role"`
	Source         string `yaml:"source,omitempty"`
	Column         string `yaml:"column,omitempty"`
	Formula        string `yaml:"formula,omitempty"`
	Value          string `yaml:"value,omitempty"`
	LinkTable      string `yaml:"link_table,omitempty"`
	LinkField      string `yaml:"link_field,omitempty"`
	Transformation string `yaml:"transformation,omitempty"`
	Args           string `yaml:"args,omitempty"`
	IgnoreMatch    string `yaml:"ignore_match,omitempty"`
}

// LoadBundle reads a bundle from a YAML file.
func LoadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading bundle: %w", err)
	}
	var b Bundle
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parsing bundle: %w", err)
	}
	return &b, nil
}

// SaveBundle writes b to a YAML file.
func SaveBundle(path string, b *Bundle) error {
	data, err := yaml.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshaling bundle: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing bundle: %w", err)
	}
	return nil
}

// Validate checks names and classifies every mapping's rules, so a bad
// mapping is rejected before anything is written.
func (b *Bundle) Validate() error {
	suppliers := make(map[string]bool)
	mappings := make(map[string]bool)
	for _, s := range b.Suppliers {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return fmt.Errorf("%w: supplier without a name", ErrInvalidBundle)
		}
		if suppliers[name] {
			return fmt.Errorf("%w: supplier %q declared twice", ErrInvalidBundle, name)
		}
		suppliers[name] = true

		for _, m := range s.Mappings {
			mname := strings.TrimSpace(m.Name)
			if mname == "" {
				return fmt.Errorf("%w: supplier %q has a mapping without a name", ErrInvalidBundle, name)
			}
			if mappings[mname] {
				return fmt.Errorf("%w: mapping %q declared twice", ErrInvalidBundle, mname)
			}
			mappings[mname] = true

			if _, err := rules.ClassifyColumns(m.modelRules(0), m.SampleHeaders, nil); err != nil {
				return fmt.Errorf("%w: mapping %q: %w", ErrInvalidBundle, mname, err)
			}
		}
	}
	return nil
}

func (m Mapping) active() bool {
	return m.Active == nil || *m.Active
}

func (m Mapping) modelRules(mappingID int64) []model.MappingRule {
	out := make([]model.MappingRule, len(m.Rules))
	for i, r := range m.Rules {
		out[i] = model.MappingRule{
			MappingID:          mappingID,
			Name:               r.Name,
			FieldRole:          r.Role,
			SourceType:         r.Source,
			SourceCSVColumn:    r.Column,
			FormulaTemplate:    r.Formula,
			StaticValue:        r.Value,
			LinkTable:          r.LinkTable,
			LinkField:          r.LinkField,
			Transformation:     r.Transformation,
			TransformationArgs: r.Args,
			IgnoreMatch:        r.IgnoreMatch,
		}
	}
	return out
}

func ruleFromModel(r model.MappingRule) Rule {
	return Rule{
		Name:           r.Name,
		Role:           r.FieldRole,
		Source:         r.SourceType,
		Column:         r.SourceCSVColumn,
		Formula:        r.FormulaTemplate,
		Value:          r.StaticValue,
		LinkTable:      r.LinkTable,
		LinkField:      r.LinkField,
		Transformation: r.Transformation,
		Args:           r.TransformationArgs,
		IgnoreMatch:    r.IgnoreMatch,
	}
}

// encodeList stores a sample list the way mappings keep it: a JSON array,
// or empty when there is nothing to keep.
func encodeList(list []string) (string, error) {
	if len(list) == 0 {
		return "", nil
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeList(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, err
	}
	return list, nil
}
