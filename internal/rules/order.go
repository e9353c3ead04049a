package rules

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/cleared-dev/invoicemap/internal/id"
	"github.com/cleared-dev/invoicemap/internal/model"
)

// ErrRuleCycle is returned when formula rules of one role depend on each
// other in a loop.
var ErrRuleCycle = errors.New("formula rules form a cycle")

// Order sorts the rules of one record so every formula rule runs after the
// rules producing the fields it references. Rules targeting the same field
// keep their relative order, so the last of them still writes last. Rules
// with no dependency between them keep their original order.
//
// columns are the input column names, when known. A placeholder naming a
// column reads the raw cell unless it names a rule's field exactly, so it
// adds no dependency.
func Order(rules []model.MappingRule, columns ...string) ([]model.MappingRule, error) {
	deps, err := dependencies(rules, columns)
	if err != nil {
		return nil, err
	}
	idx, err := topoSort(len(rules), func(i int) []int { return deps[i] })
	if err != nil {
		var names []string
		for i := range rules {
			if !slices.Contains(idx, i) {
				names = append(names, rules[i].Name)
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrRuleCycle, strings.Join(names, ", "))
	}

	out := make([]model.MappingRule, len(idx))
	for k, i := range idx {
		out[k] = rules[i]
	}
	return out, nil
}

// dependencies lists, per rule, the indices of the rules it must run after:
// earlier rules with the same target, and rules whose target field one of
// its placeholders names. Placeholders resolve the way Context.Lookup does,
// exact keys before loose ones.
func dependencies(rules []model.MappingRule, columns []string) ([][]int, error) {
	fields := make([]string, len(rules))
	exact := make(map[string][]int)
	loose := make(map[string][]int)
	for i, r := range rules {
		fields[i] = id.FieldName(r.Name)
		exact[fields[i]] = append(exact[fields[i]], i)
		k := id.LooseKey(fields[i])
		loose[k] = append(loose[k], i)
	}
	colExact := make(map[string]bool, len(columns))
	colLoose := make(map[string]bool, len(columns))
	for _, c := range columns {
		colExact[c] = true
		colLoose[id.LooseKey(c)] = true
	}

	deps := make([][]int, len(rules))
	for i, r := range rules {
		seen := make(map[int]bool)
		add := func(j int) {
			if j != i && !seen[j] {
				seen[j] = true
				deps[i] = append(deps[i], j)
			}
		}
		for _, j := range exact[fields[i]] {
			if j < i {
				add(j)
			}
		}

		if r.Source() != model.SourceFormula {
			continue
		}
		keys, err := Placeholders(r.FormulaTemplate)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.Name, err)
		}
		for _, key := range keys {
			var targets []int
			switch {
			case colExact[key]:
			case len(exact[key]) > 0:
				targets = exact[key]
			case colLoose[id.LooseKey(key)]:
			default:
				targets = loose[id.LooseKey(key)]
			}
			for _, j := range targets {
				// Same-target rules are ordered by position alone.
				if fields[j] != fields[i] {
					add(j)
				}
			}
		}
	}
	return deps, nil
}

// topoSort returns node indices in dependency order using Kahn's
// algorithm, always taking the smallest ready index. On a cycle it returns
// the partial order alongside the error.
func topoSort(n int, depsFn func(i int) []int) ([]int, error) {
	indeg := make([]int, n)
	out := make([][]int, n)
	for i := range n {
		for _, d := range depsFn(i) {
			indeg[i]++
			out[d] = append(out[d], i)
		}
	}

	var ready []int
	for i := range n {
		if indeg[i] == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]int, 0, n)
	for len(ready) > 0 {
		i := ready[0]
		ready = ready[1:]
		order = append(order, i)
		for _, j := range out[i] {
			indeg[j]--
			if indeg[j] == 0 {
				k := sort.SearchInts(ready, j)
				ready = append(ready, 0)
				copy(ready[k+1:], ready[k:])
				ready[k] = j
			}
		}
	}

	if len(order) != n {
		return order, errors.New("cycle detected")
	}
	return order, nil
}
