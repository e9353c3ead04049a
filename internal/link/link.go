// Package link resolves foreign-key references by unique field lookup.
package link

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cleared-dev/invoicemap/internal/accounts"
	"github.com/cleared-dev/invoicemap/internal/model"
	"github.com/cleared-dev/invoicemap/internal/store"
	"github.com/cleared-dev/invoicemap/internal/transform"
)

// ErrAlreadyLinked is returned when a circuit is already linked to an
// invoice item. It wraps store.ErrConflict.
var ErrAlreadyLinked = fmt.Errorf("circuit already linked to item: %w", store.ErrConflict)

// Resolver resolves link values to row ids.
type Resolver struct {
	st       store.Store
	accounts *accounts.Service
	log      *zap.Logger
}

// NewResolver creates a Resolver over st.
func NewResolver(st store.Store, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{st: st, accounts: accounts.NewService(st, log), log: log}
}

// Resolve returns the id of the first row in table whose field equals the
// trimmed text of value. Blank values resolve to nothing without a query.
// A missing supplier account number is created under supplierID; other
// misses report false.
func (r *Resolver) Resolve(ctx context.Context, table, field string, value any, supplierID int64) (int64, bool, error) {
	key := strings.TrimSpace(transform.Stringify(value))
	if key == "" {
		return 0, false, nil
	}

	if table == model.TableSupplierAccounts && field == model.FieldAccountNumber {
		accountID, _, err := r.accounts.Ensure(ctx, supplierID, key)
		if err != nil {
			return 0, false, fmt.Errorf("resolving %s.%s: %w", table, field, err)
		}
		return accountID, true, nil
	}

	rowID, ok, err := r.st.RowIDByField(ctx, table, field, key)
	if err != nil {
		return 0, false, fmt.Errorf("resolving %s.%s: %w", table, field, err)
	}
	if !ok {
		r.log.Debug("link.unresolved",
			zap.String("table", table),
			zap.String("field", field),
			zap.String("value", key),
		)
	}
	return rowID, ok, nil
}

// Attach links a circuit to an invoice item. A pair that is already linked
// yields ErrAlreadyLinked.
func Attach(ctx context.Context, st store.Store, itemID, circuitID int64) (int64, error) {
	pair := store.Filter{"circuit_id": circuitID, "invoice_item_id": itemID}
	if _, ok, err := st.GetRow(ctx, model.TableCircuitLinks, pair); err != nil {
		return 0, fmt.Errorf("checking link: %w", err)
	} else if ok {
		return 0, ErrAlreadyLinked
	}

	linkID, err := st.CreateRow(ctx, model.TableCircuitLinks, model.Record(pair))
	if errors.Is(err, store.ErrConflict) {
		return 0, ErrAlreadyLinked
	}
	if err != nil {
		return 0, fmt.Errorf("linking circuit %d to item %d: %w", circuitID, itemID, err)
	}
	return linkID, nil
}

// Detach removes the link between a circuit and an invoice item. It reports
// whether a link existed.
func Detach(ctx context.Context, st store.Store, itemID, circuitID int64) (bool, error) {
	row, ok, err := st.GetRow(ctx, model.TableCircuitLinks, store.Filter{"circuit_id": circuitID, "invoice_item_id": itemID})
	if err != nil || !ok {
		return false, err
	}
	linkID, _ := row.Int64(model.FieldID)
	if err := st.DeleteRow(ctx, model.TableCircuitLinks, linkID); err != nil {
		return false, err
	}
	return true, nil
}
