// Package grouping partitions input rows into invoice and item groups.
package grouping

import (
	"slices"
	"strings"

	"github.com/cleared-dev/invoicemap/internal/id"
	"github.com/cleared-dev/invoicemap/internal/model"
	"github.com/cleared-dev/invoicemap/internal/rules"
)

// DefaultInvoiceColumn is the invoice key column used when no header rule
// names one.
const DefaultInvoiceColumn = "InvoiceNumber"

// Group is a run of rows sharing one key, in file order.
type Group struct {
	Key  string
	Rows []model.Row
}

// First returns the group's first row.
func (g Group) First() model.Row {
	return g.Rows[0]
}

// InvoiceKeyColumn returns the input column feeding the header rule that
// targets invoice_number.
func InvoiceKeyColumn(rs rules.RuleSet) string {
	if r, ok := rs.Find(model.RoleHeader, model.FieldInvoiceNumber); ok {
		if c := strings.TrimSpace(r.SourceCSVColumn); c != "" {
			return c
		}
	}
	return DefaultInvoiceColumn
}

// Invoices groups rows by the trimmed value of column. Groups come out in
// order of first appearance. Rows with a blank or missing key are returned
// separately as dropped.
func Invoices(rows []model.Row, column string) (groups []Group, dropped []model.Row) {
	index := make(map[string]int)
	for _, row := range rows {
		v, _ := row.Lookup(column)
		key := strings.TrimSpace(v)
		if key == "" {
			dropped = append(dropped, row)
			continue
		}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key})
		}
		groups[i].Rows = append(groups[i].Rows, row)
	}
	return groups, dropped
}

// ItemColumns returns the columns that identify an item: every column the
// item rules read, plus the columns behind the billing reference rule.
// Billing reference placeholders also match headers loosely, so an item is
// never keyed more coarsely than its billing reference.
func ItemColumns(rs rules.RuleSet, headers []string) []string {
	cols := rules.Columns(rs.Item, headers)
	ref, ok := rs.Find(model.RoleItem, model.FieldBillingRef)
	if !ok {
		return cols
	}
	for _, c := range refColumns(ref, headers) {
		if !slices.Contains(cols, c) {
			cols = append(cols, c)
		}
	}
	return cols
}

func refColumns(ref model.MappingRule, headers []string) []string {
	if ref.Source() != model.SourceFormula {
		return rules.Columns([]model.MappingRule{ref}, headers)
	}
	byLoose := make(map[string]string, len(headers))
	for _, h := range headers {
		if _, ok := byLoose[id.LooseKey(h)]; !ok {
			byLoose[id.LooseKey(h)] = h
		}
	}
	keys, _ := rules.Placeholders(ref.FormulaTemplate)
	var cols []string
	for _, k := range keys {
		if slices.Contains(headers, k) {
			cols = append(cols, k)
		} else if h, ok := byLoose[id.LooseKey(k)]; ok {
			cols = append(cols, h)
		}
	}
	return cols
}

// Items groups rows by the tuple of values in columns, in order of first
// appearance. With no columns every row is its own item.
func Items(rows []model.Row, columns []string) []Group {
	if len(columns) == 0 {
		groups := make([]Group, len(rows))
		for i, row := range rows {
			groups[i] = Group{Key: "", Rows: []model.Row{row}}
		}
		return groups
	}

	var groups []Group
	index := make(map[string]int)
	for _, row := range rows {
		key := tupleKey(row, columns)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key})
		}
		groups[i].Rows = append(groups[i].Rows, row)
	}
	return groups
}

// tupleKey joins the row's values for columns with a unit separator so
// distinct tuples never collide.
func tupleKey(row model.Row, columns []string) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		v, _ := row.Lookup(c)
		parts[i] = strings.TrimSpace(v)
	}
	return strings.Join(parts, "\x1f")
}
