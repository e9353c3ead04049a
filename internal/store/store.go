// Package store is the narrow CRUD contract the import engine needs from
// persistence, with a gorm implementation for PostgreSQL, MySQL and SQLite.
package store

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/cleared-dev/invoicemap/internal/model"
)

var (
	// ErrConflict marks a write rejected by a uniqueness constraint.
	ErrConflict = errors.New("already exists")
	// ErrInvalidIdent is returned for table or column names that are not
	// plain SQL identifiers.
	ErrInvalidIdent = errors.New("invalid identifier")
)

// Filter selects rows by column equality. A nil value matches NULL.
type Filter map[string]any

// Store is the persistence contract. Tables and fields are physical names.
type Store interface {
	// RowIDByField returns the id of the first row (lowest id) whose field
	// equals value.
	RowIDByField(ctx context.Context, table, field string, value any) (int64, bool, error)
	GetRow(ctx context.Context, table string, filter Filter) (model.Record, bool, error)
	GetRows(ctx context.Context, table string, filter Filter) ([]model.Record, error)
	CreateRow(ctx context.Context, table string, fields model.Record) (int64, error)
	UpdateRow(ctx context.Context, table string, id int64, fields model.Record) error
	DeleteRow(ctx context.Context, table string, id int64) error
}

// TxRunner runs fn inside one transaction: committed when fn returns nil,
// rolled back when it returns an error or panics.
type TxRunner interface {
	InTx(ctx context.Context, fn func(Store) error) error
}

// IsDuplicateKeyErr reports whether err is a unique constraint violation.
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConflict) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "duplicate key value violates unique constraint"): // PostgreSQL 23505
		return true
	case strings.Contains(msg, "Error 1062"): // MySQL
		return true
	case strings.Contains(msg, "UNIQUE constraint failed"): // SQLite 2067
		return true
	}
	return false
}

// Upsert updates the row of table whose field equals key, or inserts fields
// as a new row. It reports whether a row was created.
func Upsert(ctx context.Context, st Store, table, field string, key any, fields model.Record) (int64, bool, error) {
	rowID, ok, err := st.RowIDByField(ctx, table, field, key)
	if err != nil {
		return 0, false, err
	}
	if ok {
		if err := st.UpdateRow(ctx, table, rowID, fields); err != nil {
			return 0, false, err
		}
		return rowID, false, nil
	}
	rowID, err = st.CreateRow(ctx, table, fields)
	if err != nil {
		return 0, false, err
	}
	return rowID, true, nil
}
