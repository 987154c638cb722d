package table

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
)

// FilterOption is one distinct value observed in a filterable column.
type FilterOption struct {
	Value    any
	Selected bool
}

// IndexedOption is a filter option together with its position in the
// column's full option list.
type IndexedOption struct {
	Index int
	FilterOption
}

// columnFilter is the categorical filter state of one column.
type columnFilter struct {
	column      Column
	options     []FilterOption
	active      map[string]struct{} // valueKey of selected values
	allSelected bool
}

func newColumnFilter(col Column, values []any) *columnFilter {
	f := &columnFilter{column: col, options: make([]FilterOption, len(values))}
	for i, v := range values {
		f.options[i] = FilterOption{Value: v, Selected: true}
	}
	f.apply()
	return f
}

// apply rebuilds the active set from the option selection state.
func (f *columnFilter) apply() {
	f.active = make(map[string]struct{}, len(f.options))
	all := true
	for _, o := range f.options {
		if o.Selected {
			f.active[valueKey(o.Value)] = struct{}{}
		} else {
			all = false
		}
	}
	f.allSelected = all
}

// restricting reports whether the filter excludes some option.
func (f *columnFilter) restricting() bool {
	return len(f.active) < len(f.options)
}

// admits reports whether a value passes this filter. An empty selection
// imposes no constraint.
func (f *columnFilter) admits(v any) bool {
	if len(f.active) == 0 {
		return true
	}
	_, ok := f.active[valueKey(v)]
	return ok
}

// distinctValues collects the non-nil values of key across rows.
func distinctValues(rows []DisplayRecord, key string) []any {
	seen := make(map[string]struct{})
	var values []any
	for _, r := range rows {
		v := r.Value(key)
		if v == nil {
			continue
		}
		k := valueKey(v)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		values = append(values, v)
	}
	return values
}

// sortValues orders option values totally and stably: numbers first
// (numerically, NaN before everything else), then strings (collated),
// then booleans, then anything else by its collated string form.
func sortValues(values []any, c *collate.Collator) {
	slices.SortStableFunc(values, func(a, b any) int {
		ka, kb := kindOf(a), kindOf(b)
		if ka != kb {
			return cmp.Compare(ka, kb)
		}
		switch ka {
		case kindNumber:
			fa, _ := asNumber(a)
			fb, _ := asNumber(b)
			return cmp.Compare(fa, fb)
		case kindString:
			return c.CompareString(a.(string), b.(string))
		case kindBool:
			ba, bb := a.(bool), b.(bool)
			switch {
			case ba == bb:
				return 0
			case !ba:
				return -1
			default:
				return 1
			}
		}
		return c.CompareString(stringify(a), stringify(b))
	})
}

// matchesQuery reports whether any field of the record contains the folded
// query.
func matchesQuery(rec Record, foldedQuery string, fold cases.Caser) bool {
	for _, v := range rec {
		if v == nil {
			continue
		}
		if strings.Contains(fold.String(stringify(v)), foldedQuery) {
			return true
		}
	}
	return false
}
