package mapping

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/invoicemap/internal/model"
	"github.com/cleared-dev/invoicemap/internal/rules"
	"github.com/cleared-dev/invoicemap/internal/store"
	"github.com/cleared-dev/invoicemap/internal/store/storetest"
)

func TestLoadBundle_Fixture(t *testing.T) {
	b, err := LoadBundle("../../testdata/acme_mapping.yaml")
	require.NoError(t, err)
	require.Len(t, b.Suppliers, 1)

	sup := b.Suppliers[0]
	assert.Equal(t, "Acme Telecom", sup.Name)
	assert.Equal(t, "ACME", sup.ShortName)
	require.Len(t, sup.Mappings, 1)

	m := sup.Mappings[0]
	assert.Equal(t, "acme-monthly", m.Name)
	assert.True(t, m.active())
	assert.Contains(t, m.SampleHeaders, "BillingRef")
	assert.Equal(t, "%d/%m/%Y", m.Rules[1].Args)
	require.NoError(t, b.Validate())
}

func TestLoadBundle_Missing(t *testing.T) {
	_, err := LoadBundle(filepath.Join(t.TempDir(), "none.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		b    Bundle
	}{
		{"unnamed supplier", Bundle{Suppliers: []Supplier{{Name: " "}}}},
		{"duplicate supplier", Bundle{Suppliers: []Supplier{{Name: "A"}, {Name: "A"}}}},
		{"unnamed mapping", Bundle{Suppliers: []Supplier{{Name: "A", Mappings: []Mapping{{}}}}}},
		{"duplicate mapping", Bundle{Suppliers: []Supplier{
			{Name: "A", Mappings: []Mapping{{Name: "m"}}},
			{Name: "B", Mappings: []Mapping{{Name: "m"}}},
		}}},
		{"rule cycle", Bundle{Suppliers: []Supplier{{Name: "A", Mappings: []Mapping{{Name: "m", Rules: []Rule{
			{Name: "a", Role: "item", Source: "csv_formula", Formula: "{b}"},
			{Name: "b", Role: "item", Source: "csv_formula", Formula: "{a}"},
		}}}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.b.Validate(), ErrInvalidBundle)
		})
	}
}

func TestImport_Fixture(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()
	b, err := LoadBundle("../../testdata/acme_mapping.yaml")
	require.NoError(t, err)

	stats, err := NewService(st, nil).Import(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, Stats{Suppliers: 1, Mappings: 1, Rules: 11}, stats)

	loaded, err := rules.NewLoader(nil).Load(ctx, st, "acme-monthly")
	require.NoError(t, err)
	assert.True(t, loaded.Mapping.IsActive)
	assert.Len(t, loaded.Rules.Header, 3)
	assert.Len(t, loaded.Rules.Line, 4)
	assert.Len(t, loaded.Rules.Ignore, 1)

	headers, err := loaded.SampleHeaders()
	require.NoError(t, err)
	assert.Equal(t, b.Suppliers[0].Mappings[0].SampleHeaders, headers)
}

func TestImport_ReplacesRulesAndReusesRows(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()
	svc := NewService(st, nil)

	inactive := false
	b := &Bundle{Suppliers: []Supplier{{Name: "Acme", ShortName: "AC", Mappings: []Mapping{{
		Name:  "m1",
		Rules: []Rule{{Name: "Invoice Number", Role: "Header", Source: "CSV", Column: "Inv"}, {Name: "Billing Reference", Role: "Item", Source: "CSV", Column: "Ref"}},
	}}}}}
	_, err := svc.Import(ctx, b)
	require.NoError(t, err)

	b.Suppliers[0].ShortName = "ACME"
	b.Suppliers[0].Mappings[0].Active = &inactive
	b.Suppliers[0].Mappings[0].Rules = b.Suppliers[0].Mappings[0].Rules[:1]
	_, err = svc.Import(ctx, b)
	require.NoError(t, err)

	suppliers, err := st.GetRows(ctx, model.TableSuppliers, nil)
	require.NoError(t, err)
	require.Len(t, suppliers, 1)
	assert.Equal(t, "ACME", suppliers[0].String(model.FieldSupplierShortName))

	mappings, err := st.GetRows(ctx, model.TableMappings, nil)
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	assert.False(t, rules.DecodeMapping(mappings[0]).IsActive)

	ruleRows, err := st.GetRows(ctx, model.TableMappingRules, nil)
	require.NoError(t, err)
	require.Len(t, ruleRows, 1)
	assert.Equal(t, "Invoice Number", ruleRows[0].String("name"))
}

func TestImport_InvalidBundleWritesNothing(t *testing.T) {
	st := storetest.New(t)
	_, err := NewService(st, nil).Import(context.Background(), &Bundle{Suppliers: []Supplier{
		{Name: "A", Mappings: []Mapping{{Name: "m", Rules: []Rule{{Name: "bad-name", Role: "line"}}}}},
	}})
	assert.ErrorIs(t, err, ErrInvalidBundle)

	rows, err := st.GetRows(context.Background(), model.TableSuppliers, nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestExport_RoundTrip(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()
	svc := NewService(st, nil)

	in, err := LoadBundle("../../testdata/acme_mapping.yaml")
	require.NoError(t, err)
	_, err = svc.Import(ctx, in)
	require.NoError(t, err)

	out, err := svc.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	path := filepath.Join(t.TempDir(), "export.yaml")
	require.NoError(t, SaveBundle(path, out))
	again, err := LoadBundle(path)
	require.NoError(t, err)
	assert.Equal(t, out, again)

	// Importing the export into the same store changes nothing.
	_, err = svc.Import(ctx, again)
	require.NoError(t, err)
	n, err := st.GetRows(ctx, model.TableMappingRules, store.Filter{})
	require.NoError(t, err)
	assert.Len(t, n, 11)
}
