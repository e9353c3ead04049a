package mapping

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cleared-dev/invoicemap/internal/model"
	"github.com/cleared-dev/invoicemap/internal/rules"
	"github.com/cleared-dev/invoicemap/internal/store"
)

// Backend is a store that can also run transactions.
type Backend interface {
	store.Store
	store.TxRunner
}

// Stats counts what an import wrote.
type Stats struct {
	Suppliers int
	Mappings  int
	Rules     int
}

// Service moves bundles in and out of the store.
type Service struct {
	db  Backend
	log *zap.Logger
}

// NewService creates a Service.
func NewService(db Backend, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, log: log}
}

// Export reads every supplier with its mappings and rules.
func (s *Service) Export(ctx context.Context) (*Bundle, error) {
	suppliers, err := s.db.GetRows(ctx, model.TableSuppliers, nil)
	if err != nil {
		return nil, fmt.Errorf("listing suppliers: %w", err)
	}

	b := &Bundle{}
	for _, row := range suppliers {
		supplierID, _ := row.Int64(model.FieldID)
		sup := Supplier{
			Name:       row.String("name"),
			ShortName:  row.String(model.FieldSupplierShortName),
			Type:       row.String("type"),
			OtherNames: row.String("other_names"),
		}

		mappings, err := s.db.GetRows(ctx, model.TableMappings, store.Filter{model.FieldSupplierID: supplierID})
		if err != nil {
			return nil, fmt.Errorf("listing mappings of %q: %w", sup.Name, err)
		}
		for _, mrow := range mappings {
			m, err := s.exportMapping(ctx, rules.DecodeMapping(mrow))
			if err != nil {
				return nil, err
			}
			sup.Mappings = append(sup.Mappings, m)
		}
		b.Suppliers = append(b.Suppliers, sup)
	}
	return b, nil
}

func (s *Service) exportMapping(ctx context.Context, m model.Mapping) (Mapping, error) {
	out := Mapping{Name: m.Name, Description: m.Description, Notes: m.Notes}
	if !m.IsActive {
		inactive := false
		out.Active = &inactive
	}
	var err error
	if out.SampleHeaders, err = decodeList(m.SampleCSVHeaders); err != nil {
		return Mapping{}, fmt.Errorf("decoding sample headers of %q: %w", m.Name, err)
	}
	if out.SampleFirstRow, err = decodeList(m.SampleCSVFirstRow); err != nil {
		return Mapping{}, fmt.Errorf("decoding sample row of %q: %w", m.Name, err)
	}

	rows, err := s.db.GetRows(ctx, model.TableMappingRules, store.Filter{"mapping_name_id": m.ID})
	if err != nil {
		return Mapping{}, fmt.Errorf("listing rules of %q: %w", m.Name, err)
	}
	out.Rules = make([]Rule, len(rows))
	for i, r := range rows {
		out.Rules[i] = ruleFromModel(rules.DecodeRule(r))
	}
	return out, nil
}

// Import validates b and writes it in one transaction. Suppliers match by
// name and mappings by mapping name; a mapping's rules are replaced
// wholesale.
func (s *Service) Import(ctx context.Context, b *Bundle) (Stats, error) {
	if err := b.Validate(); err != nil {
		return Stats{}, err
	}

	var stats Stats
	err := s.db.InTx(ctx, func(st store.Store) error {
		stats = Stats{}
		for _, sup := range b.Suppliers {
			supplierID, _, err := store.Upsert(ctx, st, model.TableSuppliers, "name", strings.TrimSpace(sup.Name), model.Record{
				"name":                       strings.TrimSpace(sup.Name),
				model.FieldSupplierShortName: sup.ShortName,
				"type":                       sup.Type,
				"other_names":                sup.OtherNames,
			})
			if err != nil {
				return fmt.Errorf("writing supplier %q: %w", sup.Name, err)
			}
			stats.Suppliers++

			for _, m := range sup.Mappings {
				n, err := s.importMapping(ctx, st, supplierID, m)
				if err != nil {
					return err
				}
				stats.Mappings++
				stats.Rules += n
			}
		}
		return nil
	})
	if err != nil {
		return Stats{}, err
	}
	s.log.Info("mapping.imported",
		zap.Int("suppliers", stats.Suppliers),
		zap.Int("mappings", stats.Mappings),
		zap.Int("rules", stats.Rules),
	)
	return stats, nil
}

func (s *Service) importMapping(ctx context.Context, st store.Store, supplierID int64, m Mapping) (int, error) {
	name := strings.TrimSpace(m.Name)
	headers, err := encodeList(m.SampleHeaders)
	if err != nil {
		return 0, fmt.Errorf("encoding sample headers of %q: %w", name, err)
	}
	firstRow, err := encodeList(m.SampleFirstRow)
	if err != nil {
		return 0, fmt.Errorf("encoding sample row of %q: %w", name, err)
	}

	mappingID, _, err := store.Upsert(ctx, st, model.TableMappings, "mapping_name", name, model.Record{
		"mapping_name":         name,
		model.FieldSupplierID:  supplierID,
		"description":          m.Description,
		"notes":                m.Notes,
		"is_active":            m.active(),
		"sample_csv_headers":   headers,
		"sample_csv_first_row": firstRow,
	})
	if err != nil {
		return 0, fmt.Errorf("writing mapping %q: %w", name, err)
	}

	old, err := st.GetRows(ctx, model.TableMappingRules, store.Filter{"mapping_name_id": mappingID})
	if err != nil {
		return 0, fmt.Errorf("listing rules of %q: %w", name, err)
	}
	for _, r := range old {
		rid, _ := r.Int64(model.FieldID)
		if err := st.DeleteRow(ctx, model.TableMappingRules, rid); err != nil {
			return 0, fmt.Errorf("replacing rules of %q: %w", name, err)
		}
	}

	for _, r := range m.modelRules(mappingID) {
		if _, err := st.CreateRow(ctx, model.TableMappingRules, ruleRecord(r)); err != nil {
			return 0, fmt.Errorf("writing rule %q of %q: %w", r.Name, name, err)
		}
	}
	s.log.Debug("mapping.rules.replaced",
		zap.String("mapping", name),
		zap.Int("removed", len(old)),
		zap.Int("added", len(m.Rules)),
	)
	return len(m.Rules), nil
}

func ruleRecord(r model.MappingRule) model.Record {
	return model.Record{
		"mapping_name_id":     r.MappingID,
		"name":                r.Name,
		"field_role":          r.FieldRole,
		"source_type":         r.SourceType,
		"source_csv_column":   r.SourceCSVColumn,
		"formula_template":    r.FormulaTemplate,
		"static_value":        r.StaticValue,
		"link_table_lookup":   r.LinkTable,
		"link_field_lookup":   r.LinkField,
		"transformation":      r.Transformation,
		"transformation_args": r.TransformationArgs,
		"ignore_match":        r.IgnoreMatch,
	}
}
