// Package storetest opens throwaway SQLite stores for tests.
package storetest

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/cleared-dev/invoicemap/internal/store"
)

// New returns a migrated store backed by a SQLite file in t.TempDir().
func New(t *testing.T) *store.GormStore {
	t.Helper()
	db, err := store.Open("sqlite", filepath.Join(t.TempDir(), "test.db"), logger.Discard)
	require.NoError(t, err)
	require.NoError(t, store.AutoMigrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return store.NewGormStore(db)
}

// Date renders a date column value read back from the store as
// YYYY-MM-DD. SQLite may return DATE columns as time.Time or text.
func Date(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case time.Time:
		return x.Format("2006-01-02")
	case []byte:
		return firstTen(string(x))
	case string:
		return firstTen(x)
	}
	return ""
}

func firstTen(s string) string {
	if len(s) > 10 {
		return s[:10]
	}
	return s
}
