package accounts

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cleared-dev/invoicemap/internal/model"
	"github.com/cleared-dev/invoicemap/internal/store"
)

// Service manages the supplier account register.
type Service struct {
	st  store.Store
	log *zap.Logger
}

// NewService creates a Service over st.
func NewService(st store.Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{st: st, log: log}
}

// Lookup returns the id of the first account with the given number.
func (s *Service) Lookup(ctx context.Context, number string) (int64, bool, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return 0, false, nil
	}
	return s.st.RowIDByField(ctx, model.TableSupplierAccounts, model.FieldAccountNumber, number)
}

// Ensure returns the id of the account with the given number, creating it
// under supplierID when missing. created reports whether a row was added.
func (s *Service) Ensure(ctx context.Context, supplierID int64, number string) (accountID int64, created bool, err error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return 0, false, fmt.Errorf("ensuring account: empty account number")
	}
	accountID, ok, err := s.Lookup(ctx, number)
	if err != nil {
		return 0, false, err
	}
	if ok {
		return accountID, false, nil
	}

	accountID, err = s.st.CreateRow(ctx, model.TableSupplierAccounts, model.Record{
		model.FieldAccountNumber: number,
		model.FieldSupplierID:    supplierID,
	})
	if err != nil {
		return 0, false, fmt.Errorf("creating account %s: %w", number, err)
	}
	s.log.Info("account.created",
		zap.Int64("account_id", accountID),
		zap.String("account_number", number),
		zap.Int64("supplier_id", supplierID),
	)
	return accountID, true, nil
}

// BySupplier returns the accounts registered to supplierID, or every
// account when supplierID is zero.
func (s *Service) BySupplier(ctx context.Context, supplierID int64) ([]model.SupplierAccount, error) {
	var filter store.Filter
	if supplierID != 0 {
		filter = store.Filter{model.FieldSupplierID: supplierID}
	}
	rows, err := s.st.GetRows(ctx, model.TableSupplierAccounts, filter)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}

	accounts := make([]model.SupplierAccount, 0, len(rows))
	for _, r := range rows {
		rowID, _ := r.Int64(model.FieldID)
		sid, _ := r.Int64(model.FieldSupplierID)
		accounts = append(accounts, model.SupplierAccount{
			ID:            rowID,
			AccountNumber: r.String(model.FieldAccountNumber),
			SupplierID:    sid,
		})
	}
	return accounts, nil
}

// Register ensures every account in accounts exists and returns how many
// were created. Supplier ids come from each account.
func (s *Service) Register(ctx context.Context, accounts []model.SupplierAccount) (int, error) {
	created := 0
	for _, a := range accounts {
		_, ok, err := s.Ensure(ctx, a.SupplierID, a.AccountNumber)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}
