// Package rules loads mapping rules and evaluates them against input rows.
package rules

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/cleared-dev/invoicemap/internal/id"
	"github.com/cleared-dev/invoicemap/internal/model"
	"github.com/cleared-dev/invoicemap/internal/transform"
)

// LinkResolver resolves a link rule's value to a row id.
type LinkResolver interface {
	Resolve(ctx context.Context, table, field string, value any, supplierID int64) (int64, bool, error)
}

// Scope is what a rule sees besides its row: the supplier, the global
// context and the parent record(s) already built.
type Scope struct {
	SupplierID int64
	Global     model.Record
	Parent     model.Record
}

// Evaluator applies rules to rows.
type Evaluator struct {
	links LinkResolver
	tr    *transform.Transformer
	log   *zap.Logger
}

// NewEvaluator creates an Evaluator. links may be nil when no link rules
// are evaluated.
func NewEvaluator(links LinkResolver, log *zap.Logger) *Evaluator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Evaluator{links: links, tr: transform.New(log), log: log}
}

// Apply evaluates rule against row and stores the transformed result in
// dest under the rule's physical field name. Only link lookup failures are
// returned; every other problem is logged and leaves the field nil.
func (e *Evaluator) Apply(ctx context.Context, rule model.MappingRule, row model.Row, dest model.Record, scope Scope) error {
	raw, err := e.raw(ctx, rule, row, dest, scope)
	if err != nil {
		return err
	}
	dest[id.FieldName(rule.Name)] = e.tr.Apply(raw, rule.TransformSpec())
	return nil
}

// ApplyAll applies rules in order to one record.
func (e *Evaluator) ApplyAll(ctx context.Context, rules []model.MappingRule, row model.Row, dest model.Record, scope Scope) error {
	for _, r := range rules {
		if err := e.Apply(ctx, r, row, dest, scope); err != nil {
			return err
		}
	}
	return nil
}

func (e *Evaluator) raw(ctx context.Context, rule model.MappingRule, row model.Row, dest model.Record, scope Scope) (any, error) {
	switch rule.Source() {
	case model.SourceCSV:
		return row.Value(rule.SourceCSVColumn), nil

	case model.SourceFormula:
		fctx := NewContext(scope.Global, scope.Parent, dest, RowLayer(row))
		out, err := Render(rule.FormulaTemplate, fctx)
		if err != nil {
			e.log.Error("formula.unresolved",
				zap.String("rule", rule.Name),
				zap.String("formula", rule.FormulaTemplate),
				zap.Int("row", row.Number),
				zap.Error(err),
			)
			return "", nil
		}
		return out, nil

	case model.SourceTextOverride, model.SourceChoice:
		return rule.StaticValue, nil

	case model.SourceLink:
		value := row.Value(rule.SourceCSVColumn)
		if strings.TrimSpace(rule.LinkTable) == "" || strings.TrimSpace(rule.LinkField) == "" || value == nil || e.links == nil {
			return nil, nil
		}
		linkID, ok, err := e.links.Resolve(ctx, strings.TrimSpace(rule.LinkTable), strings.TrimSpace(rule.LinkField), value, scope.SupplierID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		return linkID, nil

	case model.SourceNone, "":
		return nil, nil

	default:
		e.log.Warn("rules.unknown_source",
			zap.String("rule", rule.Name),
			zap.String("source_type", rule.SourceType),
		)
		return nil, nil
	}
}
