package preview

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/invoicemap/internal/model"
	"github.com/cleared-dev/invoicemap/internal/store/storetest"
)

type fakeSource struct {
	tables map[string]map[string]Column
	calls  int
	err    error
	panics bool
}

func (f *fakeSource) Columns(_ context.Context, table string) (map[string]Column, error) {
	f.calls++
	if f.panics {
		panic("driver exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.tables[table], nil
}

func lineSchema() *fakeSource {
	return &fakeSource{tables: map[string]map[string]Column{
		model.TableLines: {
			"description":  NewColumn("description", "character varying(10)"),
			"total_amount": NewColumn("total_amount", "numeric(10,2)"),
			"start_date":   NewColumn("start_date", "date"),
			"quantity":     NewColumn("quantity", "bigint"),
		},
	}}
}

func TestPreview(t *testing.T) {
	p := New(NewSchemaCache(lineSchema()), nil)

	tests := []struct {
		name   string
		in     Input
		want   string
		status Status
	}{
		{"decimal ok", Input{RawValue: "1200.456", Transformation: "ToDecimal", DestinationField: "total_amount", FieldRole: "line"}, "1200.46", StatusOK},
		{"date with format", Input{RawValue: "03/15/2024", Transformation: "ToDate", TransformationArgs: "%m/%d/%Y", DestinationField: "start_date", FieldRole: "Line"}, "2024-03-15", StatusOK},
		{"bad number", Input{RawValue: "abc", DestinationField: "total_amount", FieldRole: "line"}, "abc", StatusError},
		{"bad date", Input{RawValue: "15/03/2024", DestinationField: "start_date", FieldRole: "line"}, "15/03/2024", StatusError},
		{"too long", Input{RawValue: "a long description", DestinationField: "description", FieldRole: "line"}, "a long description", StatusWarning},
		{"fits", Input{RawValue: "short", DestinationField: "description", FieldRole: "line"}, "short", StatusOK},
		{"unknown column", Input{RawValue: "x", DestinationField: "colour", FieldRole: "line"}, "x", StatusWarning},
		{"empty", Input{RawValue: " ", DestinationField: "total_amount", FieldRole: "line"}, "", StatusOK},
		{"parse failure", Input{RawValue: "n/a", Transformation: "ToDecimal", DestinationField: "total_amount", FieldRole: "line"}, "n/a", StatusError},
		{"unknown transformation", Input{RawValue: "x", Transformation: "ToRoman", FieldRole: "line"}, "x", StatusWarning},
		{"no role", Input{RawValue: "x", DestinationField: "total_amount"}, "x", StatusOK},
		{"no field", Input{RawValue: "x", FieldRole: "header"}, "x", StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Preview(context.Background(), tt.in)
			assert.Equal(t, tt.status, got.Status, got.Message)
			assert.Equal(t, tt.want, got.DisplayValue)
			assert.NotEmpty(t, got.Message)
		})
	}
}

func TestPreview_NoValidationMessage(t *testing.T) {
	got := New(nil, nil).Preview(context.Background(), Input{RawValue: "7", Transformation: "ToNegative", DestinationField: "total_amount", FieldRole: "line"})
	assert.Equal(t, Result{DisplayValue: "-7", Status: StatusOK, Message: "Validation not performed."}, got)
}

func TestPreview_SchemaFailuresAreWarnings(t *testing.T) {
	in := Input{RawValue: "1", DestinationField: "total_amount", FieldRole: "line"}

	got := New(NewSchemaCache(&fakeSource{err: errors.New("connection refused")}), nil).Preview(context.Background(), in)
	assert.Equal(t, StatusWarning, got.Status)
	assert.Equal(t, "Could not perform validation.", got.Message)

	got = New(NewSchemaCache(&fakeSource{panics: true}), nil).Preview(context.Background(), in)
	assert.Equal(t, StatusWarning, got.Status)
	assert.Equal(t, "Could not perform validation.", got.Message)
}

func TestSchemaCache_ReadThroughAndInvalidate(t *testing.T) {
	src := lineSchema()
	c := NewSchemaCache(src)
	ctx := context.Background()

	col, ok, err := c.Column(ctx, model.TableLines, "quantity")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, KindNumeric, col.Kind)

	_, ok, err = c.Column(ctx, model.TableLines, "nope")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, src.calls)

	c.Invalidate(model.TableLines)
	_, _, err = c.Column(ctx, model.TableLines, "quantity")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)

	c.Invalidate("")
	_, _, err = c.Column(ctx, model.TableLines, "quantity")
	require.NoError(t, err)
	assert.Equal(t, 3, src.calls)
}

func TestSchemaCache_ErrorsAreNotCached(t *testing.T) {
	src := &fakeSource{err: errors.New("timeout")}
	c := NewSchemaCache(src)

	_, _, err := c.Column(context.Background(), model.TableLines, "quantity")
	require.Error(t, err)

	src.err = nil
	src.tables = lineSchema().tables
	_, ok, err := c.Column(context.Background(), model.TableLines, "quantity")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewColumn(t *testing.T) {
	tests := []struct {
		typeName string
		kind     Kind
		max      int64
	}{
		{"character varying(255)", KindText, 255},
		{"VARCHAR(40)", KindText, 40},
		{"text", KindText, 0},
		{"numeric(10,2)", KindNumeric, 0},
		{"DECIMAL", KindNumeric, 0},
		{"int8", KindNumeric, 0},
		{"double precision", KindNumeric, 0},
		{"date", KindDate, 0},
		{"timestamp with time zone", KindDate, 0},
		{"boolean", KindOther, 0},
	}
	for _, tt := range tests {
		col := NewColumn("c", tt.typeName)
		assert.Equal(t, tt.kind, col.Kind, tt.typeName)
		assert.Equal(t, tt.max, col.MaxLength, tt.typeName)
	}
}

func TestGormSchemaSource(t *testing.T) {
	st := storetest.New(t)

	cols, err := NewGormSchemaSource(st.DB()).Columns(context.Background(), model.TableLines)
	require.NoError(t, err)

	assert.Equal(t, KindNumeric, cols["total_amount"].Kind)
	assert.Equal(t, KindDate, cols["start_date"].Kind)
	assert.Equal(t, KindText, cols["unique_reference"].Kind)
	_, ok := cols["colour"]
	assert.False(t, ok)
}
