package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cleared-dev/invoicemap/internal/model"
	"github.com/cleared-dev/invoicemap/internal/store"
)

// ErrMappingNotFound is returned when no mapping has the requested name.
var ErrMappingNotFound = errors.New("mapping not found")

// Loaded is a mapping with its classified rules.
type Loaded struct {
	Mapping model.Mapping
	Rules   RuleSet
}

// SampleHeaders decodes the captured sample header list. It returns nil
// when the mapping has none.
func (l *Loaded) SampleHeaders() ([]string, error) {
	raw := strings.TrimSpace(l.Mapping.SampleCSVHeaders)
	if raw == "" {
		return nil, nil
	}
	var headers []string
	if err := json.Unmarshal([]byte(raw), &headers); err != nil {
		return nil, fmt.Errorf("decoding sample headers of mapping %q: %w", l.Mapping.Name, err)
	}
	return headers, nil
}

// Loader reads mappings and their rules from the store.
type Loader struct {
	log *zap.Logger
}

// NewLoader creates a Loader.
func NewLoader(log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{log: log}
}

// Load fetches the mapping called name and classifies its rules.
func (l *Loader) Load(ctx context.Context, st store.Store, name string) (*Loaded, error) {
	row, ok, err := st.GetRow(ctx, model.TableMappings, store.Filter{"mapping_name": name})
	if err != nil {
		return nil, fmt.Errorf("loading mapping %q: %w", name, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMappingNotFound, name)
	}
	m := DecodeMapping(row)

	rows, err := st.GetRows(ctx, model.TableMappingRules, store.Filter{"mapping_name_id": m.ID})
	if err != nil {
		return nil, fmt.Errorf("loading rules of mapping %q: %w", name, err)
	}
	rules := make([]model.MappingRule, len(rows))
	for i, r := range rows {
		rules[i] = DecodeRule(r)
	}

	loaded := &Loaded{Mapping: m}
	columns, err := loaded.SampleHeaders()
	if err != nil {
		return nil, err
	}
	rs, err := ClassifyColumns(rules, columns, l.log)
	if err != nil {
		return nil, fmt.Errorf("mapping %q: %w", name, err)
	}
	loaded.Rules = rs
	l.log.Debug("rules.loaded",
		zap.String("mapping", name),
		zap.Int("header", len(rs.Header)),
		zap.Int("item", len(rs.Item)),
		zap.Int("line", len(rs.Line)),
		zap.Int("account", len(rs.Account)),
		zap.Int("ignore", len(rs.Ignore)),
	)
	return loaded, nil
}

// DecodeMapping converts a stored import_mappings row.
func DecodeMapping(r model.Record) model.Mapping {
	mid, _ := r.Int64(model.FieldID)
	sid, _ := r.Int64(model.FieldSupplierID)
	return model.Mapping{
		ID:                mid,
		Name:              r.String("mapping_name"),
		SupplierID:        sid,
		Description:       r.String("description"),
		Notes:             r.String("notes"),
		IsActive:          truthy(r["is_active"]),
		SampleCSVHeaders:  r.String("sample_csv_headers"),
		SampleCSVFirstRow: r.String("sample_csv_first_row"),
	}
}

// DecodeRule converts a stored import_mapping_lines row.
func DecodeRule(r model.Record) model.MappingRule {
	rid, _ := r.Int64(model.FieldID)
	mid, _ := r.Int64("mapping_name_id")
	return model.MappingRule{
		ID:                 rid,
		MappingID:          mid,
		Name:               r.String("name"),
		FieldRole:          r.String("field_role"),
		SourceType:         r.String("source_type"),
		SourceCSVColumn:    r.String("source_csv_column"),
		FormulaTemplate:    r.String("formula_template"),
		StaticValue:        r.String("static_value"),
		LinkTable:          r.String("link_table_lookup"),
		LinkField:          r.String("link_field_lookup"),
		Transformation:     r.String("transformation"),
		TransformationArgs: r.String("transformation_args"),
		IgnoreMatch:        r.String("ignore_match"),
	}
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case int64:
		return x != 0
	case int:
		return x != 0
	case string:
		x = strings.ToLower(strings.TrimSpace(x))
		return x == "1" || x == "t" || x == "true"
	case []byte:
		return truthy(string(x))
	}
	return false
}
