package rules

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cleared-dev/invoicemap/internal/id"
	"github.com/cleared-dev/invoicemap/internal/model"
)

// ErrInvalidField is returned when a rule's target field does not normalize
// to a usable column name.
var ErrInvalidField = errors.New("invalid target field")

// RuleSet is a mapping's rules partitioned by role. Header, Item, Line and
// Account are in evaluation order.
type RuleSet struct {
	Header  []model.MappingRule
	Item    []model.MappingRule
	Line    []model.MappingRule
	Account []model.MappingRule
	Ignore  []model.MappingRule
}

// Classify partitions rules by role and orders each record's rules by
// their formula dependencies. Rules with an unknown role are dropped.
func Classify(rules []model.MappingRule, log *zap.Logger) (RuleSet, error) {
	return ClassifyColumns(rules, nil, log)
}

// ClassifyColumns is Classify for a mapping whose input columns are known,
// so placeholders naming a column are not mistaken for rule dependencies.
func ClassifyColumns(rules []model.MappingRule, columns []string, log *zap.Logger) (RuleSet, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var rs RuleSet
	for _, r := range rules {
		role := r.Role()
		if role != model.RoleIgnore && !id.ValidIdent(id.FieldName(r.Name)) {
			return RuleSet{}, fmt.Errorf("%w: %q (rule %d)", ErrInvalidField, r.Name, r.ID)
		}
		switch role {
		case model.RoleHeader:
			rs.Header = append(rs.Header, pinBillingMonth(r))
		case model.RoleItem:
			rs.Item = append(rs.Item, r)
		case model.RoleLine:
			rs.Line = append(rs.Line, r)
		case model.RoleAccount:
			rs.Account = append(rs.Account, r)
		case model.RoleIgnore:
			rs.Ignore = append(rs.Ignore, r)
		default:
			log.Warn("rules.unknown_role",
				zap.Int64("rule_id", r.ID),
				zap.String("rule", r.Name),
				zap.String("role", r.FieldRole),
			)
		}
	}

	var err error
	for _, group := range []*[]model.MappingRule{&rs.Header, &rs.Item, &rs.Line, &rs.Account} {
		if *group, err = Order(*group, columns...); err != nil {
			return RuleSet{}, err
		}
	}
	return rs, nil
}

// pinBillingMonth makes the billing_month header rule carry its timing
// constant verbatim, whatever source kind or transformation it was saved
// with.
func pinBillingMonth(r model.MappingRule) model.MappingRule {
	if id.FieldName(r.Name) != model.FieldBillingMonth {
		return r
	}
	r.SourceType = string(model.SourceTextOverride)
	r.Transformation = "None"
	r.TransformationArgs = ""
	return r
}

// Find returns the last rule of role targeting field.
func (rs RuleSet) Find(role model.Role, field string) (model.MappingRule, bool) {
	var list []model.MappingRule
	switch role {
	case model.RoleHeader:
		list = rs.Header
	case model.RoleItem:
		list = rs.Item
	case model.RoleLine:
		list = rs.Line
	case model.RoleAccount:
		list = rs.Account
	case model.RoleIgnore:
		list = rs.Ignore
	}
	for i := len(list) - 1; i >= 0; i-- {
		if id.FieldName(list[i].Name) == field {
			return list[i], true
		}
	}
	return model.MappingRule{}, false
}

// Ignores reports whether row matches any ignore rule: the rule's column
// must exist and hold the rule's literal, surrounding blanks aside.
func (rs RuleSet) Ignores(row model.Row) (model.MappingRule, bool) {
	for _, r := range rs.Ignore {
		match := strings.TrimSpace(r.IgnoreMatch)
		if r.SourceCSVColumn == "" || match == "" {
			continue
		}
		if v, ok := row.Lookup(r.SourceCSVColumn); ok && strings.TrimSpace(v) == match {
			return r, true
		}
	}
	return model.MappingRule{}, false
}

// Columns lists the input columns the rules of one role read, in rule
// order: csv and link source columns, plus formula placeholders that name
// a column of headers exactly.
func Columns(rules []model.MappingRule, headers []string) []string {
	known := make(map[string]bool, len(headers))
	for _, h := range headers {
		known[h] = true
	}

	var cols []string
	seen := make(map[string]bool)
	add := func(c string) {
		if c != "" && !seen[c] {
			seen[c] = true
			cols = append(cols, c)
		}
	}
	for _, r := range rules {
		switch r.Source() {
		case model.SourceCSV, model.SourceLink:
			add(r.SourceCSVColumn)
		case model.SourceFormula:
			keys, _ := Placeholders(r.FormulaTemplate)
			for _, k := range keys {
				if known[k] {
					add(k)
				}
			}
		}
	}
	return cols
}
