package rules

import (
	"sort"

	"github.com/cleared-dev/invoicemap/internal/id"
	"github.com/cleared-dev/invoicemap/internal/model"
)

// Context is the merged key-value view a formula renders against. Keys are
// resolved exactly first, then through a loose index that ignores case,
// spaces, underscores and hyphens.
type Context struct {
	exact map[string]any
	loose map[string]any
}

// NewContext merges layers in order; later layers win on identical keys and
// on keys that fold to the same loose form.
func NewContext(layers ...map[string]any) *Context {
	c := &Context{exact: make(map[string]any), loose: make(map[string]any)}
	for _, layer := range layers {
		keys := make([]string, 0, len(layer))
		for k := range layer {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			c.exact[k] = layer[k]
			c.loose[id.LooseKey(k)] = layer[k]
		}
	}
	return c
}

// Lookup resolves key.
func (c *Context) Lookup(key string) (any, bool) {
	if v, ok := c.exact[key]; ok {
		return v, true
	}
	v, ok := c.loose[id.LooseKey(key)]
	return v, ok
}

// RowLayer exposes a row's raw cells as a context layer.
func RowLayer(row model.Row) map[string]any {
	out := make(map[string]any, len(row.Values))
	for k, v := range row.Values {
		out[k] = v
	}
	return out
}
