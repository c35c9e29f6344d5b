package metrics

import (
	"sort"

	"pharmapulse/pkg/contracts/domain"
)

// RegionalBenchmark computes the portfolio evolution index of entities
// separately for every region, or for every district of region when region is
// not empty. Entries are ranked by index, highest first; groups without a
// defined index rank last.
func (v *View) RegionalBenchmark(entities []string, ref, base, region string) []domain.BenchmarkEntry {
	if !v.validPair(ref, base) {
		return nil
	}

	level := "region"
	key := func(r domain.FactRow) string { return domain.DisplayRegion(r.Region) }
	scope := v
	if region != "" {
		level = "district"
		key = func(r domain.FactRow) string { return r.District }
		scope = v.Filter(domain.FactFilter{Region: region})
	}

	var out []domain.BenchmarkEntry
	for _, group := range scope.Groups(key) {
		sub := NewView(scope.table.Where(func(r domain.FactRow) bool { return key(r) == group }))
		ei, n := sub.PortfolioEvolutionIndex(entities, ref, base)

		var refUnits float64
		for _, e := range pick(sub, entities) {
			refUnits += sub.Units(e, ref)
		}
		out = append(out, domain.BenchmarkEntry{
			Group:          group,
			Level:          level,
			RefUnits:       refUnits,
			EvolutionIndex: ei,
			Entities:       n,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].EvolutionIndex, out[j].EvolutionIndex
		if a.Valid != b.Valid {
			return a.Valid
		}
		if a.Valid && a.Value != b.Value {
			return a.Value > b.Value
		}
		return out[i].Group < out[j].Group
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// RegionalRankShift ranks regions by units of entity in base and in ref and
// reports how each region moved. Regions are ordered by their ref rank.
func (v *View) RegionalRankShift(entity, ref, base string) []domain.RankShift {
	if !v.validPair(ref, base) {
		return nil
	}
	refUnits := make(map[string]float64)
	baseUnits := make(map[string]float64)
	v.table.Each(func(r domain.FactRow) {
		if r.EntityName != entity {
			return
		}
		region := domain.DisplayRegion(r.Region)
		switch r.Period {
		case ref:
			refUnits[region] += r.Units
		case base:
			baseUnits[region] += r.Units
		}
	})

	regions := make(map[string]bool)
	for r := range refUnits {
		regions[r] = true
	}
	for r := range baseUnits {
		regions[r] = true
	}
	names := make([]string, 0, len(regions))
	for r := range regions {
		names = append(names, r)
	}

	refRank := rankBy(names, refUnits)
	baseRank := rankBy(names, baseUnits)

	out := make([]domain.RankShift, 0, len(names))
	for _, r := range names {
		out = append(out, domain.RankShift{
			Region:   r,
			BaseRank: baseRank[r],
			RefRank:  refRank[r],
			Movement: baseRank[r] - refRank[r],
			RefUnits: refUnits[r],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RefRank < out[j].RefRank })
	return out
}

// rankBy assigns 1-based ranks by descending value, ties by name.
func rankBy(names []string, values map[string]float64) map[string]int {
	sorted := append([]string(nil), names...)
	sort.Slice(sorted, func(i, j int) bool {
		if values[sorted[i]] != values[sorted[j]] {
			return values[sorted[i]] > values[sorted[j]]
		}
		return sorted[i] < sorted[j]
	})
	ranks := make(map[string]int, len(sorted))
	for i, n := range sorted {
		ranks[n] = i + 1
	}
	return ranks
}

func pick(v *View, entities []string) []string {
	if len(entities) == 0 {
		return v.Entities(true)
	}
	return entities
}

// RegionalBenchmark is the table-level form of View.RegionalBenchmark.
func RegionalBenchmark(table *domain.FactTable, entities []string, ref, base, region string) []domain.BenchmarkEntry {
	return NewView(table).RegionalBenchmark(entities, ref, base, region)
}
