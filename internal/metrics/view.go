package metrics

import (
	"sort"

	"pharmapulse/pkg/contracts/domain"
)

type entityInfo struct {
	kind   domain.EntityKind
	source string
}

// View is an aggregated, read-only projection of a fact table: units summed
// per (entity, period), with each entity's kind and source. All metric
// functions are methods on View so that a table is aggregated once per query.
type View struct {
	table    *domain.FactTable
	units    map[string]map[string]float64
	entities map[string]*entityInfo
	order    []string
	classes  ClassIndex
	periods  map[string]bool
}

// NewView aggregates table. The table is not retained beyond the views it
// derives.
func NewView(table *domain.FactTable) *View {
	v := &View{
		table:    table,
		units:    make(map[string]map[string]float64),
		entities: make(map[string]*entityInfo),
		periods:  make(map[string]bool),
	}
	table.Each(func(r domain.FactRow) {
		byPeriod, ok := v.units[r.EntityName]
		if !ok {
			byPeriod = make(map[string]float64)
			v.units[r.EntityName] = byPeriod
		}
		byPeriod[r.Period] += r.Units
		v.periods[r.Period] = true

		if _, ok := v.entities[r.EntityName]; !ok {
			v.entities[r.EntityName] = &entityInfo{kind: r.EntityKind, source: r.Source}
			v.order = append(v.order, r.EntityName)
		}
	})
	v.classes = BuildClassIndex(table)
	return v
}

// Table returns the underlying fact table.
func (v *View) Table() *domain.FactTable {
	return v.table
}

// Filter returns a view over the rows matched by f.
func (v *View) Filter(f domain.FactFilter) *View {
	return NewView(v.table.Filter(f))
}

// Units returns the summed units of entity in period.
func (v *View) Units(entity, period string) float64 {
	return v.units[entity][period]
}

// HasPeriod reports whether any row carries period.
func (v *View) HasPeriod(period string) bool {
	return v.periods[period]
}

// Kind returns the entity kind, or "" when the entity is unknown.
func (v *View) Kind(entity string) domain.EntityKind {
	if info, ok := v.entities[entity]; ok {
		return info.kind
	}
	return ""
}

// Source returns the category of entity as first seen.
func (v *View) Source(entity string) string {
	if info, ok := v.entities[entity]; ok {
		return info.source
	}
	return ""
}

// Entities returns entity names in first-seen order, optionally restricted to
// products.
func (v *View) Entities(productsOnly bool) []string {
	out := make([]string, 0, len(v.order))
	for _, name := range v.order {
		if productsOnly && v.entities[name].kind == domain.EntityKindTherapeuticClass {
			continue
		}
		out = append(out, name)
	}
	return out
}

// Classes returns the class index of the view.
func (v *View) Classes() ClassIndex {
	return v.classes
}

// Groups returns the distinct values of key over the rows, sorted.
func (v *View) Groups(key func(domain.FactRow) string) []string {
	seen := make(map[string]bool)
	v.table.Each(func(r domain.FactRow) {
		if k := key(r); k != "" {
			seen[k] = true
		}
	})
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
