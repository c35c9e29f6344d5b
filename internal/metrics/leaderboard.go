package metrics

import (
	"math"
	"sort"

	"github.com/samber/lo"

	"pharmapulse/pkg/contracts/domain"
)

// Direction selects which end of a ranking is returned.
type Direction string

const (
	DirectionGain Direction = "gain"
	DirectionDrop Direction = "drop"
)

// Mode selects the ranking measure.
type Mode string

const (
	ModePct   Mode = "pct"
	ModeDelta Mode = "delta"
)

// LeaderboardQuery parameterizes GrowthLeaderboard.
type LeaderboardQuery struct {
	Entities  []string
	Ref       string
	Base      string
	Direction Direction
	Mode      Mode
	TopN      int
	// ProductsOnly drops class rows when Entities is empty.
	ProductsOnly bool
}

// GrowthLeaderboard ranks entities by growth percentage or unit delta.
// Gains rank descending and drops ascending; ties are broken by entity name
// so the order is deterministic. TopN <= 0 returns every entity.
func (v *View) GrowthLeaderboard(q LeaderboardQuery) []domain.LeaderboardEntry {
	if !v.validPair(q.Ref, q.Base) {
		return nil
	}
	entities := q.Entities
	if len(entities) == 0 {
		entities = v.Entities(q.ProductsOnly)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(entities))
	for _, e := range lo.Uniq(entities) {
		ref, base := v.Units(e, q.Ref), v.Units(e, q.Base)
		entries = append(entries, domain.LeaderboardEntry{
			EntityName: e,
			EntityKind: v.Kind(e),
			BaseUnits:  base,
			RefUnits:   ref,
			Change:     ref - base,
			GrowthPct:  domain.Some(Growth(ref, base)),
		})
	}

	measure := func(le domain.LeaderboardEntry) float64 {
		if q.Mode == ModeDelta {
			return le.Change
		}
		return le.GrowthPct.Value
	}
	sort.SliceStable(entries, func(i, j int) bool {
		mi, mj := measure(entries[i]), measure(entries[j])
		if mi != mj {
			if q.Direction == DirectionDrop {
				return mi < mj
			}
			return mi > mj
		}
		return entries[i].EntityName < entries[j].EntityName
	})
	return rank(entries, q.TopN)
}

// ChurnLeaders ranks entities by the magnitude of their unit change between
// base and ref, largest first. ChangePct follows the churn convention of 0
// when the base is zero.
func (v *View) ChurnLeaders(entities []string, ref, base string, topN int) []domain.LeaderboardEntry {
	if !v.validPair(ref, base) {
		return nil
	}
	if len(entities) == 0 {
		entities = v.Entities(true)
	}
	entries := make([]domain.LeaderboardEntry, 0, len(entities))
	for _, e := range lo.Uniq(entities) {
		r, b := v.Units(e, ref), v.Units(e, base)
		if r == b {
			continue
		}
		entries = append(entries, domain.LeaderboardEntry{
			EntityName: e,
			EntityKind: v.Kind(e),
			BaseUnits:  b,
			RefUnits:   r,
			Change:     r - b,
			GrowthPct:  domain.Some(ChangePct(r, b)),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		ai, aj := math.Abs(entries[i].Change), math.Abs(entries[j].Change)
		if ai != aj {
			return ai > aj
		}
		return entries[i].EntityName < entries[j].EntityName
	})
	return rank(entries, topN)
}

func rank(entries []domain.LeaderboardEntry, topN int) []domain.LeaderboardEntry {
	if topN > 0 && len(entries) > topN {
		entries = entries[:topN]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// GrowthLeaderboard is the table-level form of View.GrowthLeaderboard.
func GrowthLeaderboard(table *domain.FactTable, q LeaderboardQuery) []domain.LeaderboardEntry {
	return NewView(table).GrowthLeaderboard(q)
}
