package metrics

import "pharmapulse/pkg/contracts/domain"

// MarketSharePct returns the share of entity within its matched class for
// period. A class entity has a share of 100. A class with zero units gives a
// share of 0. The share is undefined, with an error describing why, when the
// entity's source has no single class.
func (v *View) MarketSharePct(entity, period string) (domain.MarketShare, error) {
	ms := domain.MarketShare{
		EntityName: entity,
		Period:     period,
		Units:      v.Units(entity, period),
	}

	kind := v.Kind(entity)
	if kind == "" {
		return ms, &UndefinedMetricError{Metric: "market_share", Entity: entity, Reason: ReasonUnknownEntity}
	}
	if kind == domain.EntityKindTherapeuticClass {
		ms.ClassName = entity
		ms.ClassUnits = ms.Units
		ms.SharePct = domain.Some(100)
		return ms, nil
	}

	class, reason := v.classes.ClassFor(v.Source(entity))
	if reason != "" {
		return ms, &UndefinedMetricError{
			Metric: "market_share", Entity: entity, Reason: reason,
			Candidates: v.classes[v.Source(entity)],
		}
	}
	ms.ClassName = class
	ms.ClassUnits = v.Units(class, period)
	if ms.ClassUnits > 0 {
		ms.SharePct = domain.Some(100 * ms.Units / ms.ClassUnits)
	} else {
		ms.SharePct = domain.Some(0)
	}
	return ms, nil
}

// MarketSharePct is the table-level form of View.MarketSharePct.
func MarketSharePct(table *domain.FactTable, entity, period string) (domain.MarketShare, error) {
	return NewView(table).MarketSharePct(entity, period)
}
