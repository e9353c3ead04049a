package accounts

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cleared-dev/invoicemap/internal/model"
)

const (
	numFields     = 3
	colID         = 0
	colNumber     = 1
	colSupplierID = 2
)

// Header is the CSV header of an account register export.
var Header = []string{"id", "account_number", "supplier_id"}

// ReadAccounts reads an account register CSV. The id column may be blank.
func ReadAccounts(r io.Reader) ([]model.SupplierAccount, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading accounts CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var accounts []model.SupplierAccount
	for i, rec := range records[1:] {
		acct, err := UnmarshalAccount(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

// WriteAccounts writes an account register CSV.
func WriteAccounts(w io.Writer, accounts []model.SupplierAccount) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, acct := range accounts {
		if err := cw.Write(MarshalAccount(acct)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalAccount converts a SupplierAccount to a CSV row.
func MarshalAccount(acct model.SupplierAccount) []string {
	row := make([]string, numFields)
	if acct.ID != 0 {
		row[colID] = strconv.FormatInt(acct.ID, 10)
	}
	row[colNumber] = acct.AccountNumber
	if acct.SupplierID != 0 {
		row[colSupplierID] = strconv.FormatInt(acct.SupplierID, 10)
	}
	return row
}

// UnmarshalAccount converts a CSV row to a SupplierAccount.
func UnmarshalAccount(record []string) (model.SupplierAccount, error) {
	if len(record) != numFields {
		return model.SupplierAccount{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	var acct model.SupplierAccount
	var err error
	if s := strings.TrimSpace(record[colID]); s != "" {
		acct.ID, err = strconv.ParseInt(s, 10, 64)
		if err != nil {
			return model.SupplierAccount{}, fmt.Errorf("parsing id %q: %w", s, err)
		}
	}
	acct.AccountNumber = strings.TrimSpace(record[colNumber])
	if acct.AccountNumber == "" {
		return model.SupplierAccount{}, fmt.Errorf("empty account_number")
	}
	if s := strings.TrimSpace(record[colSupplierID]); s != "" {
		acct.SupplierID, err = strconv.ParseInt(s, 10, 64)
		if err != nil {
			return model.SupplierAccount{}, fmt.Errorf("parsing supplier_id %q: %w", s, err)
		}
	}
	return acct, nil
}
