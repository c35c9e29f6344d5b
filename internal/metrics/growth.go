package metrics

import "pharmapulse/pkg/contracts/domain"

// Growth is the period-over-period change in percent. When prev is zero the
// result is 0 if curr is also zero and 100 otherwise, so unbounded growth is
// clamped to 100.
func Growth(curr, prev float64) float64 {
	if prev == 0 {
		if curr == 0 {
			return 0
		}
		return 100
	}
	return (curr - prev) / prev * 100
}

// ChangePct is the churn variant of Growth: zero when prev is zero.
func ChangePct(curr, prev float64) float64 {
	if prev == 0 {
		return 0
	}
	return (curr - prev) / prev * 100
}

// GrowthPct returns the growth of entity from base to ref. It is undefined
// when either period is missing or both are the same.
func (v *View) GrowthPct(entity, ref, base string) domain.OptionalFloat {
	if !v.validPair(ref, base) {
		return domain.None()
	}
	return domain.Some(Growth(v.Units(entity, ref), v.Units(entity, base)))
}

// validPair reports whether ref and base are two distinct periods present in
// the view.
func (v *View) validPair(ref, base string) bool {
	return ref != "" && base != "" && ref != base && v.HasPeriod(ref) && v.HasPeriod(base)
}

// GrowthPct is the table-level form of View.GrowthPct.
func GrowthPct(table *domain.FactTable, entity, ref, base string) domain.OptionalFloat {
	return NewView(table).GrowthPct(entity, ref, base)
}
