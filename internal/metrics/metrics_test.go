package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmapulse/pkg/contracts/domain"
)

const (
	q1 = "Q1 2024"
	q2 = "Q2 2024"
)

func fact(region, district, entity, source string, kind domain.EntityKind, period string, units float64) domain.FactRow {
	return domain.FactRow{
		Region: region, District: district, EntityName: entity, EntityKind: kind,
		Source: source, Team: "Team 1", Period: period, Units: units,
	}
}

func product(region, entity, period string, units float64) domain.FactRow {
	return fact(region, "", entity, "ANTIHIST", domain.EntityKindProduct, period, units)
}

func class(region, period string, units float64) domain.FactRow {
	return fact(region, "", "R06A0 ANTIHIST", "ANTIHIST", domain.EntityKindTherapeuticClass, period, units)
}

func TestGrowth(t *testing.T) {
	assert.Equal(t, 0.0, Growth(0, 0))
	assert.Equal(t, 100.0, Growth(50, 0))
	assert.InDelta(t, 20.0, Growth(120, 100), 1e-9)
	assert.InDelta(t, -50.0, Growth(50, 100), 1e-9)
}

func TestChangePct(t *testing.T) {
	assert.Equal(t, 0.0, ChangePct(50, 0))
	assert.InDelta(t, 10.0, ChangePct(110, 100), 1e-9)
}

func TestGrowthPctUndefinedWithoutTwoPeriods(t *testing.T) {
	v := NewView(domain.NewFactTable([]domain.FactRow{product("A", "P1", q1, 1)}))
	assert.False(t, v.GrowthPct("P1", q1, q1).Valid)
	assert.False(t, v.GrowthPct("P1", q1, "").Valid)
}

func TestMetricsUndefinedForAbsentPeriod(t *testing.T) {
	table := domain.NewFactTable([]domain.FactRow{
		class("A", q1, 100),
		product("A", "AERIUS 5MG", q1, 10),
		product("B", "AERIUS 5MG", q1, 20),
	})
	const absent = "Q3 2030"

	assert.False(t, GrowthPct(table, "AERIUS 5MG", absent, q1).Valid)
	assert.False(t, GrowthPct(table, "AERIUS 5MG", q1, absent).Valid)

	_, err := EvolutionIndex(table, "AERIUS 5MG", absent, q1)
	assert.ErrorIs(t, err, ErrUndefinedMetric)
	assert.Equal(t, ReasonInsufficientPeriods, ReasonOf(err))

	assert.Empty(t, GrowthLeaderboard(table, LeaderboardQuery{Ref: absent, Base: q1, Direction: DirectionDrop}))
	assert.Empty(t, RegionalBenchmark(table, nil, absent, q1, ""))
	v := NewView(table)
	assert.Empty(t, v.ChurnLeaders(nil, absent, q1, 0))
	assert.Empty(t, v.RegionalRankShift("AERIUS 5MG", absent, q1))
}

func TestEvolutionIndexValue(t *testing.T) {
	ei := EvolutionIndexValue(20, 0)
	require.True(t, ei.Valid)
	assert.Equal(t, 120.0, ei.Value)

	assert.False(t, EvolutionIndexValue(10, -100).Valid)
}

func TestEvolutionIndex(t *testing.T) {
	table := domain.NewFactTable([]domain.FactRow{
		class("A", q1, 100), class("A", q2, 100),
		product("A", "AERIUS 5MG", q1, 10), product("A", "AERIUS 5MG", q2, 12),
	})

	row, err := EvolutionIndex(table, "AERIUS 5MG", q2, q1)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, row.GrowthPct.Value, 1e-9)
	assert.Equal(t, domain.Some(0), row.ClassGrowthPct)
	assert.InDelta(t, 120.0, row.EvolutionIndex.Value, 1e-9)
	assert.Equal(t, 12.0, row.ReferenceUnits)
}

func TestEvolutionIndexWithoutClass(t *testing.T) {
	table := domain.NewFactTable([]domain.FactRow{
		product("A", "P1", q1, 10), product("A", "P1", q2, 12),
	})

	row, err := EvolutionIndex(table, "P1", q2, q1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUndefinedMetric)
	assert.Equal(t, ReasonNoClass, ReasonOf(err))
	assert.False(t, row.EvolutionIndex.Valid)
	assert.True(t, row.GrowthPct.Valid)
}

func TestEvolutionIndexAmbiguousClass(t *testing.T) {
	table := domain.NewFactTable([]domain.FactRow{
		class("A", q1, 100), class("A", q2, 100),
		fact("A", "", "R06A9 OTHER", "ANTIHIST", domain.EntityKindTherapeuticClass, q1, 50),
		product("A", "P1", q1, 10), product("A", "P1", q2, 12),
	})

	_, err := EvolutionIndex(table, "P1", q2, q1)
	assert.Equal(t, ReasonAmbiguousClass, ReasonOf(err))
	assert.Equal(t, map[string][]string{"ANTIHIST": {"R06A0 ANTIHIST", "R06A9 OTHER"}},
		BuildClassIndex(table).Ambiguous())
}

func TestMarketShare(t *testing.T) {
	table := domain.NewFactTable([]domain.FactRow{
		class("A", q1, 200), class("B", q1, 200),
		product("A", "P1", q1, 30), product("B", "P1", q1, 70),
		class("A", q2, 0), product("A", "P1", q2, 5),
	})
	v := NewView(table)

	ms, err := v.MarketSharePct("P1", q1)
	require.NoError(t, err)
	assert.Equal(t, "R06A0 ANTIHIST", ms.ClassName)
	assert.InDelta(t, 25.0, ms.SharePct.Value, 1e-9)

	ms, err = v.MarketSharePct("P1", q2)
	require.NoError(t, err)
	assert.Equal(t, domain.Some(0), ms.SharePct)

	ms, err = v.MarketSharePct("R06A0 ANTIHIST", q1)
	require.NoError(t, err)
	assert.Equal(t, domain.Some(100), ms.SharePct)

	_, err = v.MarketSharePct("UNKNOWN", q1)
	assert.Equal(t, ReasonUnknownEntity, ReasonOf(err))
}

func TestPortfolioEvolutionIndex(t *testing.T) {
	table := domain.NewFactTable([]domain.FactRow{
		class("A", q1, 100), class("A", q2, 100),
		// EI 120, ref units 12
		product("A", "P1", q1, 10), product("A", "P1", q2, 12),
		// EI 80, ref units 8
		product("A", "P2", q1, 10), product("A", "P2", q2, 8),
		// no class: excluded
		fact("A", "", "X1", "OTHER", domain.EntityKindProduct, q1, 1),
		fact("A", "", "X1", "OTHER", domain.EntityKindProduct, q2, 1000),
	})

	ei := PortfolioEvolutionIndex(table, []string{"P1", "P2", "X1"}, q2, q1)
	require.True(t, ei.Valid)
	// (120*12 + 80*8) / 20
	assert.InDelta(t, 104.0, ei.Value, 1e-9)

	assert.False(t, PortfolioEvolutionIndex(table, []string{"X1"}, q2, q1).Valid)
}

func TestGrowthLeaderboard(t *testing.T) {
	table := domain.NewFactTable([]domain.FactRow{
		product("A", "A", q1, 100), product("A", "A", q2, 130),
		product("A", "B", q1, 100), product("A", "B", q2, 90),
		product("A", "C", q1, 100), product("A", "C", q2, 105),
	})

	gain := GrowthLeaderboard(table, LeaderboardQuery{Ref: q2, Base: q1, Direction: DirectionGain, TopN: 2})
	require.Len(t, gain, 2)
	assert.Equal(t, "A", gain[0].EntityName)
	assert.Equal(t, "C", gain[1].EntityName)
	assert.Equal(t, 2, gain[1].Rank)

	drop := GrowthLeaderboard(table, LeaderboardQuery{Ref: q2, Base: q1, Direction: DirectionDrop, TopN: 1})
	require.Len(t, drop, 1)
	assert.Equal(t, "B", drop[0].EntityName)
}

func TestGrowthLeaderboardTiesAndDeltaMode(t *testing.T) {
	table := domain.NewFactTable([]domain.FactRow{
		product("A", "ZED", q1, 10), product("A", "ZED", q2, 20),
		product("A", "ALPHA", q1, 10), product("A", "ALPHA", q2, 20),
		product("A", "BIG", q1, 1000), product("A", "BIG", q2, 1200),
		class("A", q1, 5000), class("A", q2, 9000),
	})

	pct := GrowthLeaderboard(table, LeaderboardQuery{Ref: q2, Base: q1, Direction: DirectionGain, ProductsOnly: true})
	require.Len(t, pct, 3)
	assert.Equal(t, []string{"ALPHA", "ZED", "BIG"}, []string{pct[0].EntityName, pct[1].EntityName, pct[2].EntityName})

	delta := GrowthLeaderboard(table, LeaderboardQuery{Ref: q2, Base: q1, Direction: DirectionGain, Mode: ModeDelta, TopN: 1, ProductsOnly: true})
	require.Len(t, delta, 1)
	assert.Equal(t, "BIG", delta[0].EntityName)
	assert.Equal(t, 200.0, delta[0].Change)
}

func TestChurnLeaders(t *testing.T) {
	v := NewView(domain.NewFactTable([]domain.FactRow{
		product("A", "UP", q1, 0), product("A", "UP", q2, 50),
		product("A", "DOWN", q1, 100), product("A", "DOWN", q2, 20),
		product("A", "FLAT", q1, 5), product("A", "FLAT", q2, 5),
	}))

	got := v.ChurnLeaders(nil, q2, q1, 0)
	require.Len(t, got, 2)
	assert.Equal(t, "DOWN", got[0].EntityName)
	assert.Equal(t, -80.0, got[0].Change)
	assert.Equal(t, "UP", got[1].EntityName)
	assert.Equal(t, domain.Some(0), got[1].GrowthPct)
}

func TestRegionalBenchmark(t *testing.T) {
	table := domain.NewFactTable([]domain.FactRow{
		class("A", q1, 100), class("A", q2, 100),
		product("A", "P1", q1, 10), product("A", "P1", q2, 12),
		class("B", q1, 100), class("B", q2, 100),
		product("B", "P1", q1, 10), product("B", "P1", q2, 8),
		product("C", "P1", q1, 10), product("C", "P1", q2, 8),
	})

	got := RegionalBenchmark(table, nil, q2, q1, "")
	require.Len(t, got, 3)
	assert.Equal(t, "A", got[0].Group)
	assert.InDelta(t, 120.0, got[0].EvolutionIndex.Value, 1e-9)
	assert.Equal(t, "B", got[1].Group)
	assert.Equal(t, "C", got[2].Group)
	assert.False(t, got[2].EvolutionIndex.Valid)
	assert.Equal(t, 3, got[2].Rank)
	assert.Equal(t, "region", got[0].Level)
}

func TestRegionalBenchmarkByDistrict(t *testing.T) {
	table := domain.NewFactTable([]domain.FactRow{
		fact("A", "(AA) ONE", "R06A0 ANTIHIST", "ANTIHIST", domain.EntityKindTherapeuticClass, q1, 100),
		fact("A", "(AA) ONE", "R06A0 ANTIHIST", "ANTIHIST", domain.EntityKindTherapeuticClass, q2, 100),
		fact("A", "(AA) ONE", "P1", "ANTIHIST", domain.EntityKindProduct, q1, 10),
		fact("A", "(AA) ONE", "P1", "ANTIHIST", domain.EntityKindProduct, q2, 15),
		fact("B", "(BB) TWO", "P1", "ANTIHIST", domain.EntityKindProduct, q1, 10),
	})

	got := RegionalBenchmark(table, nil, q2, q1, "A")
	require.Len(t, got, 1)
	assert.Equal(t, "(AA) ONE", got[0].Group)
	assert.Equal(t, "district", got[0].Level)
	assert.InDelta(t, 150.0, got[0].EvolutionIndex.Value, 1e-9)
}

func TestRegionalRankShift(t *testing.T) {
	v := NewView(domain.NewFactTable([]domain.FactRow{
		product("A", "P1", q1, 100), product("A", "P1", q2, 10),
		product("B", "P1", q1, 50), product("B", "P1", q2, 60),
	}))

	got := v.RegionalRankShift("P1", q2, q1)
	require.Len(t, got, 2)
	assert.Equal(t, domain.RankShift{Region: "B", BaseRank: 2, RefRank: 1, Movement: 1, RefUnits: 60}, got[0])
	assert.Equal(t, -1, got[1].Movement)
}

func TestConfigEnabled(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.Enabled(MetricEvolutionIndex))

	cfg.ShowEvolutionIndex = false
	assert.False(t, cfg.Enabled(MetricRegionalBenchmark))
	assert.False(t, cfg.Enabled(Metric("unknown")))
}
