package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/invoicemap/internal/model"
	"github.com/cleared-dev/invoicemap/internal/store"
	"github.com/cleared-dev/invoicemap/internal/store/storetest"
)

func TestGormStore_CreateAndLookup(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()

	first, err := st.CreateRow(ctx, model.TableSupplierAccounts, model.Record{
		model.FieldAccountNumber: "ACC-1",
		model.FieldSupplierID:    int64(7),
	})
	require.NoError(t, err)
	assert.Positive(t, first)

	second, err := st.CreateRow(ctx, model.TableSupplierAccounts, model.Record{
		model.FieldAccountNumber: "ACC-1",
		model.FieldSupplierID:    int64(8),
	})
	require.NoError(t, err)
	assert.Greater(t, second, first)

	got, ok, err := st.RowIDByField(ctx, model.TableSupplierAccounts, model.FieldAccountNumber, "ACC-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, first, got, "first row wins")

	_, ok, err = st.RowIDByField(ctx, model.TableSupplierAccounts, model.FieldAccountNumber, "ACC-9")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGormStore_GetRowsFilterAndOrder(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()

	for _, n := range []string{"A", "B", "C"} {
		_, err := st.CreateRow(ctx, model.TableSupplierAccounts, model.Record{
			model.FieldAccountNumber: n,
			model.FieldSupplierID:    int64(1),
		})
		require.NoError(t, err)
	}
	_, err := st.CreateRow(ctx, model.TableSupplierAccounts, model.Record{
		model.FieldAccountNumber: "Z",
		model.FieldSupplierID:    int64(2),
	})
	require.NoError(t, err)

	rows, err := st.GetRows(ctx, model.TableSupplierAccounts, store.Filter{model.FieldSupplierID: 1})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "A", rows[0][model.FieldAccountNumber])
	assert.Equal(t, "C", rows[2][model.FieldAccountNumber])

	row, ok, err := st.GetRow(ctx, model.TableSupplierAccounts, store.Filter{model.FieldAccountNumber: "Z"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 2, row[model.FieldSupplierID])

	_, ok, err = st.GetRow(ctx, model.TableSupplierAccounts, store.Filter{model.FieldAccountNumber: "missing"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGormStore_UpdateAndDelete(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()

	rowID, err := st.CreateRow(ctx, model.TableHeaders, model.Record{
		model.FieldInvoiceNumber: "INV1",
		model.FieldInvoiceDate:   "2024-03-15",
	})
	require.NoError(t, err)

	require.NoError(t, st.UpdateRow(ctx, model.TableHeaders, rowID, model.Record{
		model.FieldID:          int64(999),
		model.FieldInvoiceDate: "2024-03-16",
		"total_amount":         "12.50",
	}))

	row, ok, err := st.GetRow(ctx, model.TableHeaders, store.Filter{model.FieldID: rowID})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2024-03-16", storetest.Date(row[model.FieldInvoiceDate]))
	assert.EqualValues(t, rowID, row[model.FieldID], "id is never rewritten")

	require.NoError(t, st.DeleteRow(ctx, model.TableHeaders, rowID))
	_, ok, err = st.GetRow(ctx, model.TableHeaders, store.Filter{model.FieldID: rowID})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGormStore_Conflict(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()

	_, err := st.CreateRow(ctx, model.TableHeaders, model.Record{model.FieldInvoiceNumber: "INV1"})
	require.NoError(t, err)

	_, err = st.CreateRow(ctx, model.TableHeaders, model.Record{model.FieldInvoiceNumber: "INV1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestGormStore_RejectsBadIdentifiers(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()

	_, _, err := st.RowIDByField(ctx, "headers; drop table x", "id", 1)
	assert.ErrorIs(t, err, store.ErrInvalidIdent)

	_, err = st.CreateRow(ctx, model.TableHeaders, model.Record{"bad column": "x"})
	assert.ErrorIs(t, err, store.ErrInvalidIdent)

	_, err = st.CreateRow(ctx, model.TableHeaders, model.Record{})
	assert.Error(t, err)
}

func TestGormStore_InTxRollsBack(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := st.InTx(ctx, func(tx store.Store) error {
		if _, err := tx.CreateRow(ctx, model.TableHeaders, model.Record{model.FieldInvoiceNumber: "INV1"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	rows, err := st.GetRows(ctx, model.TableHeaders, nil)
	require.NoError(t, err)
	assert.Empty(t, rows)

	require.NoError(t, st.InTx(ctx, func(tx store.Store) error {
		_, err := tx.CreateRow(ctx, model.TableHeaders, model.Record{model.FieldInvoiceNumber: "INV2"})
		return err
	}))
	rows, err = st.GetRows(ctx, model.TableHeaders, nil)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.False(t, store.IsDuplicateKeyErr(nil))
	assert.True(t, store.IsDuplicateKeyErr(errors.New("UNIQUE constraint failed: t.x")))
	assert.True(t, store.IsDuplicateKeyErr(errors.New(`ERROR: duplicate key value violates unique constraint "ux"`)))
	assert.True(t, store.IsDuplicateKeyErr(store.ErrConflict))
	assert.False(t, store.IsDuplicateKeyErr(errors.New("connection refused")))
}

func TestDialect(t *testing.T) {
	for _, d := range []string{"", "sqlite", "postgres", "postgresql", "MySQL"} {
		_, err := store.Dialect(d, "x")
		assert.NoError(t, err, d)
	}
	_, err := store.Dialect("oracle", "x")
	assert.Error(t, err)
}

func TestUpsert(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()

	first, created, err := store.Upsert(ctx, st, model.TableItems, model.FieldBillingRef, "CKT-1", model.Record{
		model.FieldBillingRef: "CKT-1",
		"description":         "old",
	})
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := store.Upsert(ctx, st, model.TableItems, model.FieldBillingRef, "CKT-1", model.Record{
		model.FieldBillingRef: "CKT-1",
		"description":         "new",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first, again)

	rows, err := st.GetRows(ctx, model.TableItems, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "new", rows[0].String("description"))
}
