package metrics

import (
	"sort"

	"pharmapulse/pkg/contracts/domain"
)

// ClassIndex maps each Source to the therapeutic class names found under it.
type ClassIndex map[string][]string

// BuildClassIndex collects class names per source in first-seen order.
func BuildClassIndex(table *domain.FactTable) ClassIndex {
	idx := make(ClassIndex)
	seen := make(map[string]map[string]bool)
	table.Each(func(r domain.FactRow) {
		if !r.IsClass() {
			return
		}
		if seen[r.Source] == nil {
			seen[r.Source] = make(map[string]bool)
		}
		if !seen[r.Source][r.EntityName] {
			seen[r.Source][r.EntityName] = true
			idx[r.Source] = append(idx[r.Source], r.EntityName)
		}
	})
	return idx
}

// ClassFor returns the single class of source. More than one candidate is an
// error rather than an arbitrary pick.
func (idx ClassIndex) ClassFor(source string) (string, UndefinedReason) {
	names := idx[source]
	switch len(names) {
	case 0:
		return "", ReasonNoClass
	case 1:
		return names[0], ""
	default:
		return "", ReasonAmbiguousClass
	}
}

// Ambiguous returns the sources that have more than one class name.
func (idx ClassIndex) Ambiguous() map[string][]string {
	out := make(map[string][]string)
	for src, names := range idx {
		if len(names) > 1 {
			sorted := append([]string(nil), names...)
			sort.Strings(sorted)
			out[src] = sorted
		}
	}
	return out
}
