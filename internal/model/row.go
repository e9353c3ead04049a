package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Record is a dynamic set of destination fields keyed by physical column name.
type Record map[string]any

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Int64 reads key as an integer. Drivers hand back ids as various integer
// types or as text.
func (r Record) Int64(key string) (int64, bool) {
	switch v := r[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case uint64:
		return int64(v), true
	case float64:
		return int64(v), true
	case []byte:
		n, err := strconv.ParseInt(string(v), 10, 64)
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	}
	return 0, false
}

// String reads key as text; nil is "".
func (r Record) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// Row is one data row of an input file.
type Row struct {
	Number int // 1-based line in the source file, header included
	Values map[string]string
}

// Lookup returns the raw cell for column and whether the column exists.
func (r Row) Lookup(column string) (string, bool) {
	v, ok := r.Values[column]
	return v, ok
}

// Value returns the cell for column as a rule input: nil when the column is
// absent or the cell is blank.
func (r Row) Value(column string) any {
	v, ok := r.Values[column]
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

// Table is a parsed input file.
type Table struct {
	Headers []string
	Rows    []Row
}

// HasColumn reports whether the table has a column named name.
func (t *Table) HasColumn(name string) bool {
	for _, h := range t.Headers {
		if h == name {
			return true
		}
	}
	return false
}
