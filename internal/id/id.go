package id

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ParseSupplierID parses a supplier id given as text, e.g. "42" or " 42 ".
func ParseSupplierID(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid supplier id %q: %w", s, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid supplier id %q: must be positive", s)
	}
	return n, nil
}

// FieldName returns the physical column name for a rule target field.
// "Invoice Number" -> "invoice_number"
func FieldName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// ValidIdent reports whether s can be used unquoted-safe as a table or
// column name.
func ValidIdent(s string) bool {
	return identRe.MatchString(s)
}

// LooseKey folds a context key for forgiving lookups: lower case with
// spaces, underscores and hyphens removed.
// "Supplier Short Name", "supplier_short_name" and "SupplierShortName" all
// fold to "suppliershortname".
func LooseKey(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', '\t':
			return -1
		}
		return r
	}, strings.ToLower(s))
}
