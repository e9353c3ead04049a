package preview

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"gorm.io/gorm"
)

// Kind is the coarse type class of a destination column.
type Kind string

const (
	KindText    Kind = "text"
	KindNumeric Kind = "numeric"
	KindDate    Kind = "date"
	KindOther   Kind = "other"
)

// Column is the declared shape of a destination column.
type Column struct {
	Name      string
	Type      string // database type name, lower case
	Kind      Kind
	MaxLength int64 // 0 when unbounded
}

// SchemaSource reads the columns of a table.
type SchemaSource interface {
	Columns(ctx context.Context, table string) (map[string]Column, error)
}

// GormSchemaSource reads column metadata through gorm's migrator.
type GormSchemaSource struct {
	db *gorm.DB
}

// NewGormSchemaSource creates a GormSchemaSource.
func NewGormSchemaSource(db *gorm.DB) *GormSchemaSource {
	return &GormSchemaSource{db: db}
}

// Columns returns the columns of table keyed by name.
func (s *GormSchemaSource) Columns(ctx context.Context, table string) (map[string]Column, error) {
	types, err := s.db.WithContext(ctx).Migrator().ColumnTypes(table)
	if err != nil {
		return nil, fmt.Errorf("reading columns of %s: %w", table, err)
	}
	cols := make(map[string]Column, len(types))
	for _, ct := range types {
		col := NewColumn(ct.Name(), ct.DatabaseTypeName())
		if n, ok := ct.Length(); ok && n > 0 && col.Kind == KindText {
			col.MaxLength = n
		}
		cols[col.Name] = col
	}
	return cols, nil
}

// NewColumn classifies a column by its database type name, e.g.
// "character varying(255)", "int8", "DECIMAL(10,2)" or "timestamptz".
// A length in the type name becomes MaxLength for text columns.
func NewColumn(name, typeName string) Column {
	t := strings.ToLower(strings.TrimSpace(typeName))
	col := Column{Name: name, Type: t, Kind: KindOther}
	base, params, _ := strings.Cut(t, "(")

	switch {
	case strings.Contains(base, "char") || strings.Contains(base, "text"):
		col.Kind = KindText
		if n, err := strconv.ParseInt(strings.TrimSuffix(params, ")"), 10, 64); err == nil {
			col.MaxLength = n
		}
	case strings.Contains(base, "date") || strings.Contains(base, "time"):
		col.Kind = KindDate
	case strings.Contains(base, "int"), strings.Contains(base, "numeric"), strings.Contains(base, "decimal"),
		strings.Contains(base, "real"), strings.Contains(base, "double"), strings.Contains(base, "float"):
		col.Kind = KindNumeric
	}
	return col
}

// SchemaCache is a read-through cache of table columns. A table is loaded
// from the source on first use and kept until Invalidate.
type SchemaCache struct {
	src    SchemaSource
	mu     sync.RWMutex
	tables map[string]map[string]Column
}

// NewSchemaCache creates an empty cache over src.
func NewSchemaCache(src SchemaSource) *SchemaCache {
	return &SchemaCache{src: src, tables: make(map[string]map[string]Column)}
}

// Column returns the named column of table and whether it exists.
func (c *SchemaCache) Column(ctx context.Context, table, column string) (Column, bool, error) {
	c.mu.RLock()
	cols, ok := c.tables[table]
	c.mu.RUnlock()
	if !ok {
		var err error
		cols, err = c.src.Columns(ctx, table)
		if err != nil {
			return Column{}, false, err
		}
		c.mu.Lock()
		c.tables[table] = cols
		c.mu.Unlock()
	}
	col, ok := cols[column]
	return col, ok, nil
}

// Invalidate drops the cached columns of table, or of every table when
// table is empty.
func (c *SchemaCache) Invalidate(table string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if table == "" {
		c.tables = make(map[string]map[string]Column)
		return
	}
	delete(c.tables, table)
}
