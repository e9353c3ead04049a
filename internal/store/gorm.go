package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cleared-dev/invoicemap/internal/id"
	"github.com/cleared-dev/invoicemap/internal/model"
)

// GormStore implements Store and TxRunner over a gorm connection.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps db.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// DB returns the underlying connection.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

// InTx runs fn in a transaction. Nested calls use savepoints.
func (s *GormStore) InTx(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) RowIDByField(ctx context.Context, table, field string, value any) (int64, bool, error) {
	if err := checkIdents(table, field); err != nil {
		return 0, false, err
	}
	var ids []int64
	err := s.db.WithContext(ctx).
		Table(table).
		Where(clause.Eq{Column: clause.Column{Name: field}, Value: value}).
		Order(model.FieldID).
		Limit(1).
		Pluck(model.FieldID, &ids).Error
	if err != nil {
		return 0, false, fmt.Errorf("looking up %s.%s: %w", table, field, err)
	}
	if len(ids) == 0 {
		return 0, false, nil
	}
	return ids[0], true, nil
}

func (s *GormStore) GetRow(ctx context.Context, table string, filter Filter) (model.Record, bool, error) {
	rows, err := s.find(ctx, table, filter, 1)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0], true, nil
}

func (s *GormStore) GetRows(ctx context.Context, table string, filter Filter) ([]model.Record, error) {
	return s.find(ctx, table, filter, 0)
}

func (s *GormStore) find(ctx context.Context, table string, filter Filter, limit int) ([]model.Record, error) {
	if err := checkIdents(table); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Table(table)
	for _, k := range sortedKeys(filter) {
		if err := checkIdents(k); err != nil {
			return nil, err
		}
		q = q.Where(clause.Eq{Column: clause.Column{Name: k}, Value: filter[k]})
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []map[string]any
	if err := q.Order(model.FieldID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("reading %s: %w", table, err)
	}
	out := make([]model.Record, len(rows))
	for i, r := range rows {
		out[i] = model.Record(r)
	}
	return out, nil
}

// CreateRow inserts fields and returns the new id. An "id" key in fields
// is ignored.
func (s *GormStore) CreateRow(ctx context.Context, table string, fields model.Record) (int64, error) {
	if err := checkIdents(table); err != nil {
		return 0, err
	}
	cols, vals, err := columnsAndValues(fields)
	if err != nil {
		return 0, err
	}
	if len(cols) == 0 {
		return 0, fmt.Errorf("creating %s row: no fields", table)
	}

	var newID int64
	db := s.db.WithContext(ctx)
	if db.Dialector.Name() == "mysql" {
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec("INSERT INTO ? ? VALUES ?", clause.Table{Name: table}, cols, vals).Error; err != nil {
				return err
			}
			return tx.Raw("SELECT LAST_INSERT_ID()").Scan(&newID).Error
		})
	} else {
		err = db.Raw("INSERT INTO ? ? VALUES ? RETURNING ?",
			clause.Table{Name: table}, cols, vals, clause.Column{Name: model.FieldID},
		).Scan(&newID).Error
	}
	if err != nil {
		return 0, wrapWrite("creating", table, err)
	}
	return newID, nil
}

// UpdateRow sets fields on the row with the given id. An "id" key in
// fields is ignored.
func (s *GormStore) UpdateRow(ctx context.Context, table string, rowID int64, fields model.Record) error {
	if err := checkIdents(table); err != nil {
		return err
	}
	updates := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == model.FieldID {
			continue
		}
		if err := checkIdents(k); err != nil {
			return err
		}
		updates[k] = v
	}
	if len(updates) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Table(table).
		Where(clause.Eq{Column: clause.Column{Name: model.FieldID}, Value: rowID}).
		Updates(updates).Error
	if err != nil {
		return wrapWrite("updating", table, err)
	}
	return nil
}

func (s *GormStore) DeleteRow(ctx context.Context, table string, rowID int64) error {
	if err := checkIdents(table); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Exec("DELETE FROM ? WHERE ? = ?",
		clause.Table{Name: table}, clause.Column{Name: model.FieldID}, rowID,
	).Error
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", table, err)
	}
	return nil
}

func columnsAndValues(fields model.Record) ([]any, []any, error) {
	var cols, vals []any
	for _, k := range sortedKeys(fields) {
		if k == model.FieldID {
			continue
		}
		if err := checkIdents(k); err != nil {
			return nil, nil, err
		}
		cols = append(cols, clause.Column{Name: k})
		vals = append(vals, fields[k])
	}
	return cols, vals, nil
}

func wrapWrite(op, table string, err error) error {
	if IsDuplicateKeyErr(err) && !errors.Is(err, ErrConflict) {
		return fmt.Errorf("%s %s row: %w: %w", op, table, ErrConflict, err)
	}
	return fmt.Errorf("%s %s row: %w", op, table, err)
}

func checkIdents(names ...string) error {
	for _, n := range names {
		if !id.ValidIdent(n) {
			return fmt.Errorf("%w: %q", ErrInvalidIdent, n)
		}
	}
	return nil
}

func sortedKeys[M ~map[string]any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var (
	_ Store    = (*GormStore)(nil)
	_ TxRunner = (*GormStore)(nil)
)
