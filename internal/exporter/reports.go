package exporter

import (
	"io"
	"strconv"

	"pharmapulse/pkg/contracts/domain"
)

// WriteLeaderboard writes a growth or churn leaderboard as CSV.
func WriteLeaderboard(out io.Writer, entries []domain.LeaderboardEntry) error {
	records := make([][]string, 0, len(entries))
	for _, e := range entries {
		records = append(records, []string{
			strconv.Itoa(e.Rank),
			e.EntityName,
			string(e.EntityKind),
			formatUnits(e.BaseUnits),
			formatUnits(e.RefUnits),
			formatUnits(e.Change),
			formatOptional(e.GrowthPct),
		})
	}
	return Write(out, WriteOptions{
		Headers:   []string{"Rank", "Drug_Name", "Entity_Kind", "Base_Units", "Ref_Units", "Change", "Growth_Pct"},
		Records:   records,
		BOMPrefix: true,
	})
}

// WriteBenchmark writes a regional benchmark as CSV.
func WriteBenchmark(out io.Writer, entries []domain.BenchmarkEntry) error {
	records := make([][]string, 0, len(entries))
	for _, e := range entries {
		records = append(records, []string{
			strconv.Itoa(e.Rank),
			e.Group,
			e.Level,
			formatUnits(e.RefUnits),
			formatOptional(e.EvolutionIndex),
			strconv.Itoa(e.Entities),
		})
	}
	return Write(out, WriteOptions{
		Headers:   []string{"Rank", "Group", "Level", "Ref_Units", "Evolution_Index", "Entities"},
		Records:   records,
		BOMPrefix: true,
	})
}

// WriteFacts streams a fact table as CSV.
func WriteFacts(out io.Writer, rows []domain.FactRow) error {
	return Write(out, WriteOptions{
		Headers:   FactHeaders,
		Records:   FactRecords(rows),
		BOMPrefix: true,
	})
}
