// Package index builds the grouping and lookup structures that back catalog
// views. Builders are pure: they never fail, and malformed input simply
// produces empty groups.
package index

import (
	"sort"

	"catalogexplorer/pkg/domain"
)

// Grouping buckets items by a key. Every input item lands in exactly one
// group, groups keep input order, and Keys lists the distinct keys sorted.
type Grouping[T any] struct {
	Key    string         `json:"key"`
	Keys   []string       `json:"keys"`
	Groups map[string][]T `json:"groups"`
}

// Group partitions items using keyOf. Empty keys fall back to domain.UnknownKey.
func Group[T any](field string, items []T, keyOf func(T) string) Grouping[T] {
	g := Grouping[T]{Key: field, Groups: make(map[string][]T)}
	for _, item := range items {
		k := keyOf(item)
		if k == "" {
			k = domain.UnknownKey
		}
		if _, ok := g.Groups[k]; !ok {
			g.Keys = append(g.Keys, k)
		}
		g.Groups[k] = append(g.Groups[k], item)
	}
	sort.Strings(g.Keys)
	if g.Keys == nil {
		g.Keys = []string{}
	}
	return g
}

// GroupRecords groups table records by the named field.
func GroupRecords(records []domain.Record, field string) Grouping[domain.Record] {
	return Group(field, records, func(r domain.Record) string { return r.GroupKey(field) })
}

// GroupModules groups modules by class.
func GroupModules(mods []domain.Module) Grouping[domain.Module] {
	return Group("class", mods, func(m domain.Module) string { return m.Class })
}

// Counts returns the size of each group.
func (g Grouping[T]) Counts() map[string]int {
	out := make(map[string]int, len(g.Keys))
	for _, k := range g.Keys {
		out[k] = len(g.Groups[k])
	}
	return out
}

// Total returns the number of grouped items.
func (g Grouping[T]) Total() int {
	n := 0
	for _, items := range g.Groups {
		n += len(items)
	}
	return n
}

// Get returns the items of one group, or nil for an unknown key.
func (g Grouping[T]) Get(key string) []T {
	return g.Groups[key]
}

// Columns returns the field names of the first record, which is how table
// catalogs decide their column set.
func Columns(records []domain.Record) []string {
	if len(records) == 0 {
		return []string{}
	}
	return records[0].Fields()
}
