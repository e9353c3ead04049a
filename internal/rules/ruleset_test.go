package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/invoicemap/internal/model"
	"github.com/cleared-dev/invoicemap/internal/store"
	"github.com/cleared-dev/invoicemap/internal/store/storetest"
)

func TestClassify(t *testing.T) {
	in := []model.MappingRule{
		{Name: "Invoice Number", FieldRole: "Header", SourceType: "CSV", SourceCSVColumn: "Inv"},
		{Name: "Billing Month", FieldRole: "Header", SourceType: "CSV", SourceCSVColumn: "Month", StaticValue: "advance", Transformation: "ToDate"},
		{Name: "Billing Reference", FieldRole: "Item", SourceType: "CSV", SourceCSVColumn: "Ref"},
		{Name: "Unique Reference", FieldRole: "Line", SourceType: "CSV Formula", FormulaTemplate: "{billing_reference}-{start_date}"},
		{Name: "Start Date", FieldRole: "Line", SourceType: "CSV", SourceCSVColumn: "Start", Transformation: "ToDate"},
		{Name: "Account Number", FieldRole: "Account", SourceType: "CSV", SourceCSVColumn: "Acct"},
		{Name: "Skip totals", FieldRole: "Ignore Rule", SourceCSVColumn: "Type", IgnoreMatch: "TOTAL"},
		{Name: "mystery", FieldRole: "Footer"},
	}

	rs, err := Classify(in, nil)
	require.NoError(t, err)
	assert.Len(t, rs.Header, 2)
	assert.Len(t, rs.Item, 1)
	assert.Equal(t, []string{"Start Date", "Unique Reference"}, names(rs.Line))
	assert.Len(t, rs.Account, 1)
	assert.Len(t, rs.Ignore, 1)

	bm, ok := rs.Find(model.RoleHeader, model.FieldBillingMonth)
	require.True(t, ok)
	assert.Equal(t, model.SourceTextOverride, bm.Source())
	assert.Equal(t, "None", bm.Transformation)
	assert.Equal(t, "advance", bm.StaticValue)

	_, ok = rs.Find(model.RoleItem, model.FieldInvoiceNumber)
	assert.False(t, ok)
}

func TestClassify_InvalidField(t *testing.T) {
	_, err := Classify([]model.MappingRule{{Name: "total-amount", FieldRole: "line"}}, nil)
	assert.ErrorIs(t, err, ErrInvalidField)

	_, err = Classify([]model.MappingRule{{Name: "any label at all!", FieldRole: "ignore_rule"}}, nil)
	assert.NoError(t, err, "ignore rules never become columns")
}

func TestClassify_Cycle(t *testing.T) {
	_, err := Classify([]model.MappingRule{
		{Name: "a", FieldRole: "item", SourceType: "csv_formula", FormulaTemplate: "{b}"},
		{Name: "b", FieldRole: "item", SourceType: "csv_formula", FormulaTemplate: "{a}"},
	}, nil)
	assert.ErrorIs(t, err, ErrRuleCycle)
}

func TestRuleSet_Ignores(t *testing.T) {
	rs := RuleSet{Ignore: []model.MappingRule{
		{Name: "totals", SourceCSVColumn: "Type", IgnoreMatch: "TOTAL"},
		{Name: "no literal", SourceCSVColumn: "Type"},
	}}

	r, ok := rs.Ignores(model.Row{Values: map[string]string{"Type": " TOTAL "}})
	assert.True(t, ok)
	assert.Equal(t, "totals", r.Name)

	_, ok = rs.Ignores(model.Row{Values: map[string]string{"Type": "CHARGE"}})
	assert.False(t, ok)

	_, ok = rs.Ignores(model.Row{Values: map[string]string{"Type": ""}})
	assert.False(t, ok, "an empty literal never matches")

	_, ok = rs.Ignores(model.Row{Values: map[string]string{"Other": "TOTAL"}})
	assert.False(t, ok)
}

func TestColumns(t *testing.T) {
	headers := []string{"Ref", "Site", "Desc", "Acct"}
	rules := []model.MappingRule{
		csvRule("billing_reference", "Ref"),
		formulaRule("description", "{Site} / {Desc} / {supplier_short_name}"),
		csvRule("site", "Site"),
		{Name: "account_number_id", SourceType: "link", SourceCSVColumn: "Acct"},
		{Name: "notes", SourceType: "text_override", StaticValue: "x"},
	}
	assert.Equal(t, []string{"Ref", "Site", "Desc", "Acct"}, Columns(rules, headers))
	assert.Empty(t, Columns(nil, headers))
}

func seedMapping(t *testing.T, ctx context.Context, rules ...model.MappingRule) (*store.GormStore, int64) {
	t.Helper()
	st := storetest.New(t)
	db := st.DB().WithContext(ctx)

	m := model.Mapping{Name: "acme-monthly", SupplierID: 1, IsActive: true, SampleCSVHeaders: `["A","B"]`}
	require.NoError(t, db.Create(&m).Error)
	for i := range rules {
		rules[i].MappingID = m.ID
	}
	if len(rules) > 0 {
		require.NoError(t, db.Create(&rules).Error)
	}
	return st, m.ID
}

func TestLoader_Load(t *testing.T) {
	ctx := context.Background()
	st, mappingID := seedMapping(t, ctx,
		model.MappingRule{Name: "Invoice Number", FieldRole: "header", SourceType: "csv", SourceCSVColumn: "Inv"},
		model.MappingRule{Name: "Total", FieldRole: "line", SourceType: "csv", SourceCSVColumn: "Amount", Transformation: "ToDecimal"},
		model.MappingRule{Name: "Date", FieldRole: "line", SourceType: "csv", SourceCSVColumn: "D", Transformation: "ToDate", TransformationArgs: "%d/%m/%Y"},
	)

	loaded, err := NewLoader(nil).Load(ctx, st, "acme-monthly")
	require.NoError(t, err)
	assert.Equal(t, mappingID, loaded.Mapping.ID)
	assert.Equal(t, int64(1), loaded.Mapping.SupplierID)
	assert.True(t, loaded.Mapping.IsActive)
	require.Len(t, loaded.Rules.Header, 1)
	require.Len(t, loaded.Rules.Line, 2)
	assert.Equal(t, "Inv", loaded.Rules.Header[0].SourceCSVColumn)
	assert.Equal(t, "ToDate:%d/%m/%Y", loaded.Rules.Line[1].TransformSpec())

	headers, err := loaded.SampleHeaders()
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, headers)
}

func TestLoader_NotFound(t *testing.T) {
	ctx := context.Background()
	st, _ := seedMapping(t, ctx)

	_, err := NewLoader(nil).Load(ctx, st, "nope")
	assert.ErrorIs(t, err, ErrMappingNotFound)
}

func TestLoader_InvalidField(t *testing.T) {
	ctx := context.Background()
	st, _ := seedMapping(t, ctx, model.MappingRule{Name: "bad;name", FieldRole: "line", SourceType: "csv"})

	_, err := NewLoader(nil).Load(ctx, st, "acme-monthly")
	assert.ErrorIs(t, err, ErrInvalidField)
}

func TestLoaded_SampleHeadersBlank(t *testing.T) {
	l := &Loaded{}
	h, err := l.SampleHeaders()
	require.NoError(t, err)
	assert.Nil(t, h)

	l.Mapping.SampleCSVHeaders = "not json"
	_, err = l.SampleHeaders()
	assert.Error(t, err)
}
