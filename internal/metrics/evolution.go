package metrics

import (
	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"

	"pharmapulse/pkg/contracts/domain"
)

// EvolutionIndexValue computes (100+g)/(100+classG)*100. It is undefined when
// the class growth is -100%.
func EvolutionIndexValue(growth, classGrowth float64) domain.OptionalFloat {
	denom := 100 + classGrowth
	if denom == 0 {
		return domain.None()
	}
	return domain.Some((100 + growth) / denom * 100)
}

// EvolutionIndex compares the growth of entity with the growth of the class
// matched through its source. 100 means the entity grew in line with its
// market. When no single class matches, the returned row carries absent class
// growth and index, and the error explains why.
func (v *View) EvolutionIndex(entity, ref, base string) (domain.MetricRow, error) {
	row := domain.MetricRow{
		EntityName:      entity,
		Source:          v.Source(entity),
		ReferencePeriod: ref,
		BasePeriod:      base,
		ReferenceUnits:  v.Units(entity, ref),
		BaseUnits:       v.Units(entity, base),
		GrowthPct:       v.GrowthPct(entity, ref, base),
	}
	if !row.GrowthPct.Valid {
		return row, &UndefinedMetricError{Metric: "evolution_index", Entity: entity, Reason: ReasonInsufficientPeriods}
	}
	if v.Kind(entity) == "" {
		return row, &UndefinedMetricError{Metric: "evolution_index", Entity: entity, Reason: ReasonUnknownEntity}
	}

	class, reason := v.classes.ClassFor(row.Source)
	if reason != "" {
		return row, &UndefinedMetricError{
			Metric: "evolution_index", Entity: entity, Reason: reason,
			Candidates: v.classes[row.Source],
		}
	}
	row.ClassGrowthPct = v.GrowthPct(class, ref, base)
	row.EvolutionIndex = EvolutionIndexValue(row.GrowthPct.Value, row.ClassGrowthPct.Value)
	if !row.EvolutionIndex.Valid {
		return row, &UndefinedMetricError{Metric: "evolution_index", Entity: entity, Reason: ReasonZeroDenominator}
	}
	return row, nil
}

// PortfolioEvolutionIndex is the reference-period-units weighted mean of the
// entities' evolution indices. Entities without a defined index are left out
// of both numerator and denominator. An empty entities list means every
// product in the view.
func (v *View) PortfolioEvolutionIndex(entities []string, ref, base string) (domain.OptionalFloat, int) {
	if len(entities) == 0 {
		entities = v.Entities(true)
	}
	var values, weights []float64
	for _, e := range lo.Uniq(entities) {
		row, err := v.EvolutionIndex(e, ref, base)
		if err != nil {
			continue
		}
		values = append(values, row.EvolutionIndex.Value)
		weights = append(weights, row.ReferenceUnits)
	}
	if len(values) == 0 || lo.Sum(weights) == 0 {
		return domain.None(), len(values)
	}
	return domain.Some(stat.Mean(values, weights)), len(values)
}

// EvolutionIndex is the table-level form of View.EvolutionIndex.
func EvolutionIndex(table *domain.FactTable, entity, ref, base string) (domain.MetricRow, error) {
	return NewView(table).EvolutionIndex(entity, ref, base)
}

// PortfolioEvolutionIndex is the table-level form of View.PortfolioEvolutionIndex.
func PortfolioEvolutionIndex(table *domain.FactTable, entities []string, ref, base string) domain.OptionalFloat {
	ei, _ := NewView(table).PortfolioEvolutionIndex(entities, ref, base)
	return ei
}
