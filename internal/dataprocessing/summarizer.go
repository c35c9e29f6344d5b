package dataprocessing

import (
	"log/slog"
	"time"

	"github.com/montanaflynn/stats"

	"pharmapulse/internal/periods"
	"pharmapulse/pkg/contracts/domain"
)

// Summarizer produces reporting summaries of a fact table.
type Summarizer struct {
	logger *slog.Logger
	config SummarizerConfig
}

// SummarizerConfig holds configuration options for the Summarizer.
type SummarizerConfig struct {
	Percentile     float64 // upper percentile reported per period
	IncludeClasses bool    // include class rows in per-period distributions
}

// NewSummarizer creates a summarizer. A zero percentile defaults to 90.
func NewSummarizer(logger *slog.Logger, config SummarizerConfig) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Percentile <= 0 || config.Percentile > 100 {
		config.Percentile = 90
	}
	return &Summarizer{logger: logger, config: config}
}

// Summarize aggregates units per source and team and describes the
// distribution of entity units in each period.
func (s *Summarizer) Summarize(table *domain.FactTable) domain.Summary {
	summary := domain.Summary{
		Rows:        table.Len(),
		UnitsBySrc:  make(map[string]float64),
		UnitsByTeam: make(map[string]float64),
		GeneratedAt: time.Now(),
	}

	regions := make(map[string]bool)
	entities := make(map[string]bool)
	byPeriod := make(map[string][]float64)
	var periodLabels []string

	table.Each(func(r domain.FactRow) {
		regions[r.Region] = true
		entities[r.EntityName] = true
		periodLabels = append(periodLabels, r.Period)
		if r.IsClass() {
			if !s.config.IncludeClasses {
				return
			}
		} else {
			summary.UnitsBySrc[r.Source] += r.Units
			summary.UnitsByTeam[r.Team] += r.Units
		}
		byPeriod[r.Period] = append(byPeriod[r.Period], r.Units)
	})

	summary.Regions = len(regions)
	summary.Entities = len(entities)
	summary.Periods = periods.Sorted(periodLabels, s.logger)

	for _, p := range summary.Periods {
		values := byPeriod[p]
		if len(values) == 0 {
			continue
		}
		data := stats.LoadRawData(values)
		total, _ := data.Sum()
		mean, _ := data.Mean()
		median, _ := data.Median()
		upper, err := data.Percentile(s.config.Percentile)
		if err != nil {
			// too few values to interpolate; report the largest
			upper, _ = data.Max()
			s.logger.Debug("percentile unavailable",
				slog.String("period", p),
				slog.String("error", err.Error()))
		}
		summary.PeriodStats = append(summary.PeriodStats, domain.PeriodStats{
			Period: p,
			Total:  total,
			Mean:   mean,
			Median: median,
			P90:    upper,
			Count:  len(values),
		})
	}
	return summary
}
