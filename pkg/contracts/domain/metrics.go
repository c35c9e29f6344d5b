package domain

import (
	"encoding/json"
	"strconv"
)

// OptionalFloat is a metric value that may be undefined. Undefined metrics are
// never coerced to zero; they serialize as JSON null.
type OptionalFloat struct {
	Value float64
	Valid bool
}

// Some wraps a defined value.
func Some(v float64) OptionalFloat {
	return OptionalFloat{Value: v, Valid: true}
}

// None is the undefined metric value.
func None() OptionalFloat {
	return OptionalFloat{}
}

// Get returns the value and whether it is defined.
func (o OptionalFloat) Get() (float64, bool) {
	return o.Value, o.Valid
}

// String formats the value with two decimals or "n/a".
func (o OptionalFloat) String() string {
	if !o.Valid {
		return "n/a"
	}
	return strconv.FormatFloat(o.Value, 'f', 2, 64)
}

func (o OptionalFloat) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

func (o *OptionalFloat) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = None()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

// MetricRow is a derived, never-persisted comparison of one entity between
// two periods.
type MetricRow struct {
	EntityName      string        `json:"entity_name"`
	Source          string        `json:"source,omitempty"`
	ReferencePeriod string        `json:"reference_period"`
	BasePeriod      string        `json:"base_period"`
	ReferenceUnits  float64       `json:"reference_units"`
	BaseUnits       float64       `json:"base_units"`
	GrowthPct       OptionalFloat `json:"growth_pct"`
	ClassGrowthPct  OptionalFloat `json:"class_growth_pct"`
	EvolutionIndex  OptionalFloat `json:"evolution_index"`
}

// LeaderboardEntry is one ranked entity in a growth or churn leaderboard.
type LeaderboardEntry struct {
	Rank       int           `json:"rank"`
	EntityName string        `json:"entity_name"`
	EntityKind EntityKind    `json:"entity_kind"`
	BaseUnits  float64       `json:"base_units"`
	RefUnits   float64       `json:"ref_units"`
	Change     float64       `json:"change"`
	GrowthPct  OptionalFloat `json:"growth_pct"`
}

// BenchmarkEntry is the portfolio evolution index of one geographic group.
type BenchmarkEntry struct {
	Rank           int           `json:"rank"`
	Group          string        `json:"group"`
	Level          string        `json:"level"`
	RefUnits       float64       `json:"ref_units"`
	EvolutionIndex OptionalFloat `json:"evolution_index"`
	Entities       int           `json:"entities"`
}

// RankShift describes how a region's rank for one product moved between two
// periods. A positive Movement means the region climbed.
type RankShift struct {
	Region   string  `json:"region"`
	BaseRank int     `json:"base_rank"`
	RefRank  int     `json:"ref_rank"`
	Movement int     `json:"movement"`
	RefUnits float64 `json:"ref_units"`
}

// MarketShare is the share of one entity within its matched class.
type MarketShare struct {
	EntityName string        `json:"entity_name"`
	ClassName  string        `json:"class_name,omitempty"`
	Period     string        `json:"period"`
	Units      float64       `json:"units"`
	ClassUnits float64       `json:"class_units"`
	SharePct   OptionalFloat `json:"share_pct"`
}
