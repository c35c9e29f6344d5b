package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/samber/lo"

	"pharmapulse/internal/cache"
	"pharmapulse/internal/dataprocessing"
	"pharmapulse/internal/metrics"
	"pharmapulse/internal/periods"
	"pharmapulse/pkg/contracts/domain"
)

// EngineService answers metric queries against the current snapshot.
type EngineService struct {
	cache      *cache.SnapshotCache
	config     metrics.Config
	summarizer *dataprocessing.Summarizer
	logger     *slog.Logger
}

// PeriodPair is a resolved (reference, base) comparison.
type PeriodPair struct {
	Ref  string `json:"ref"`
	Base string `json:"base"`
}

// LeaderboardRequest parameterizes ComputeGrowthLeaderboard. Zero values take
// the configured defaults.
type LeaderboardRequest struct {
	Filter    domain.FactFilter
	Entities  []string
	Ref       string
	Base      string
	Direction metrics.Direction
	Mode      metrics.Mode
	TopN      int
}

// LeaderboardResult is a ranked leaderboard with the periods it compares.
type LeaderboardResult struct {
	PeriodPair
	Direction metrics.Direction         `json:"direction,omitempty"`
	Mode      metrics.Mode              `json:"mode,omitempty"`
	Entries   []domain.LeaderboardEntry `json:"entries"`
}

// PortfolioResult is a portfolio evolution index.
type PortfolioResult struct {
	PeriodPair
	EvolutionIndex domain.OptionalFloat `json:"evolution_index"`
	Entities       int                  `json:"entities"`
}

// BenchmarkResult is a regional benchmark with its periods.
type BenchmarkResult struct {
	PeriodPair
	Entries []domain.BenchmarkEntry `json:"entries"`
}

// NewEngineService creates an engine over c.
func NewEngineService(c *cache.SnapshotCache, cfg metrics.Config, logger *slog.Logger) *EngineService {
	if logger == nil {
		logger = slog.Default()
	}
	return &EngineService{
		cache:      c,
		config:     cfg,
		summarizer: dataprocessing.NewSummarizer(logger, dataprocessing.SummarizerConfig{}),
		logger:     logger.With("component", "engine_service"),
	}
}

// Config returns the metric configuration in effect.
func (s *EngineService) Config() metrics.Config {
	return s.config
}

// GetFactTable returns the snapshot rows matched by filter.
func (s *EngineService) GetFactTable(ctx context.Context, filter domain.FactFilter) (*domain.FactTable, error) {
	snap, err := s.cache.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	if filter == (domain.FactFilter{}) {
		return snap.Table, nil
	}
	return snap.Table.Filter(filter), nil
}

// GetSortedPeriods returns the distinct periods of table in chronological
// order.
func (s *EngineService) GetSortedPeriods(table *domain.FactTable) []string {
	labels := make([]string, 0, table.Len())
	table.Each(func(r domain.FactRow) { labels = append(labels, r.Period) })
	return periods.Sorted(labels, s.logger)
}

// Periods returns the sorted periods of the filtered snapshot.
func (s *EngineService) Periods(ctx context.Context, filter domain.FactFilter) ([]string, error) {
	table, err := s.GetFactTable(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.GetSortedPeriods(table), nil
}

// ResolvePeriods fills in missing comparison periods. With neither given the
// two most recent periods are used; with only ref, its predecessor.
func (s *EngineService) ResolvePeriods(available []string, ref, base string) (PeriodPair, error) {
	if ref == "" && base == "" {
		r, b, ok := periods.Latest(available)
		if !ok {
			return PeriodPair{}, ErrInsufficientPeriods
		}
		return PeriodPair{Ref: r, Base: b}, nil
	}
	if ref == "" {
		return PeriodPair{}, fmt.Errorf("%w: base given without ref", ErrInvalidInput)
	}
	if !slices.Contains(available, ref) {
		return PeriodPair{}, fmt.Errorf("%w: %q", ErrPeriodNotFound, ref)
	}
	if base == "" {
		prev, ok := periods.Previous(ref, available)
		if !ok {
			return PeriodPair{}, fmt.Errorf("%w: nothing precedes %q", ErrInsufficientPeriods, ref)
		}
		base = prev
	}
	if !slices.Contains(available, base) {
		return PeriodPair{}, fmt.Errorf("%w: %q", ErrPeriodNotFound, base)
	}
	if ref == base {
		return PeriodPair{}, ErrSamePeriod
	}
	return PeriodPair{Ref: ref, Base: base}, nil
}

// ComputeGrowthLeaderboard ranks entities by growth between two periods.
func (s *EngineService) ComputeGrowthLeaderboard(ctx context.Context, req LeaderboardRequest) (LeaderboardResult, error) {
	if err := s.require(metrics.MetricGrowth); err != nil {
		return LeaderboardResult{}, err
	}
	view, pair, err := s.prepare(ctx, req.Filter, req.Ref, req.Base)
	if err != nil {
		return LeaderboardResult{}, err
	}

	q := metrics.LeaderboardQuery{
		Entities:     req.Entities,
		Ref:          pair.Ref,
		Base:         pair.Base,
		Direction:    lo.Ternary(req.Direction == "", metrics.DirectionGain, req.Direction),
		Mode:         lo.Ternary(req.Mode == "", s.config.GrowthMode, req.Mode),
		TopN:         lo.Ternary(req.TopN == 0, s.config.LeaderboardTopN, req.TopN),
		ProductsOnly: s.config.ExcludeClassRowsFromLeaderboards,
	}
	entries := view.GrowthLeaderboard(q)
	s.logger.DebugContext(ctx, "Leaderboard computed",
		slog.String("ref", pair.Ref),
		slog.String("base", pair.Base),
		slog.String("direction", string(q.Direction)),
		slog.Int("entries", len(entries)))

	return LeaderboardResult{PeriodPair: pair, Direction: q.Direction, Mode: q.Mode, Entries: entries}, nil
}

// ComputeMarketShare returns the share of entity within its class. An empty
// period means the most recent one.
func (s *EngineService) ComputeMarketShare(ctx context.Context, filter domain.FactFilter, entity, period string) (domain.MarketShare, error) {
	if err := s.require(metrics.MetricMarketShare); err != nil {
		return domain.MarketShare{}, err
	}
	if entity == "" {
		return domain.MarketShare{}, ErrEntityRequired
	}
	view, available, err := s.view(ctx, filter)
	if err != nil {
		return domain.MarketShare{}, err
	}
	if period == "" {
		if len(available) == 0 {
			return domain.MarketShare{}, ErrInsufficientPeriods
		}
		period = available[len(available)-1]
	} else if !view.HasPeriod(period) {
		return domain.MarketShare{}, fmt.Errorf("%w: %q", ErrPeriodNotFound, period)
	}

	ms, err := view.MarketSharePct(entity, period)
	s.logUndefined(ctx, err)
	return ms, err
}

// ComputeEvolutionIndex compares entity's growth with its class's growth.
func (s *EngineService) ComputeEvolutionIndex(ctx context.Context, filter domain.FactFilter, entity, ref, base string) (domain.MetricRow, error) {
	if err := s.require(metrics.MetricEvolutionIndex); err != nil {
		return domain.MetricRow{}, err
	}
	if entity == "" {
		return domain.MetricRow{}, ErrEntityRequired
	}
	view, pair, err := s.prepare(ctx, filter, ref, base)
	if err != nil {
		return domain.MetricRow{}, err
	}
	row, err := view.EvolutionIndex(entity, pair.Ref, pair.Base)
	s.logUndefined(ctx, err)
	return row, err
}

// ComputePortfolioEI returns the weighted evolution index of entities, or of
// every product when entities is empty.
func (s *EngineService) ComputePortfolioEI(ctx context.Context, filter domain.FactFilter, entities []string, ref, base string) (PortfolioResult, error) {
	if err := s.require(metrics.MetricEvolutionIndex); err != nil {
		return PortfolioResult{}, err
	}
	view, pair, err := s.prepare(ctx, filter, ref, base)
	if err != nil {
		return PortfolioResult{}, err
	}
	ei, n := view.PortfolioEvolutionIndex(entities, pair.Ref, pair.Base)
	return PortfolioResult{PeriodPair: pair, EvolutionIndex: ei, Entities: n}, nil
}

// ComputeRegionalBenchmark ranks regions by portfolio evolution index. When
// filter selects a region, its districts are ranked instead.
func (s *EngineService) ComputeRegionalBenchmark(ctx context.Context, filter domain.FactFilter, entities []string, ref, base string) (BenchmarkResult, error) {
	if err := s.require(metrics.MetricRegionalBenchmark); err != nil {
		return BenchmarkResult{}, err
	}
	region := filter.Region
	filter.Region = ""
	view, pair, err := s.prepare(ctx, filter, ref, base)
	if err != nil {
		return BenchmarkResult{}, err
	}
	return BenchmarkResult{
		PeriodPair: pair,
		Entries:    view.RegionalBenchmark(entities, pair.Ref, pair.Base, region),
	}, nil
}

// ComputeChurn returns the entities with the largest absolute unit change.
func (s *EngineService) ComputeChurn(ctx context.Context, filter domain.FactFilter, ref, base string, topN int) (LeaderboardResult, error) {
	if err := s.require(metrics.MetricChurn); err != nil {
		return LeaderboardResult{}, err
	}
	view, pair, err := s.prepare(ctx, filter, ref, base)
	if err != nil {
		return LeaderboardResult{}, err
	}
	if topN == 0 {
		topN = s.config.LeaderboardTopN
	}
	return LeaderboardResult{
		PeriodPair: pair,
		Entries:    view.ChurnLeaders(nil, pair.Ref, pair.Base, topN),
	}, nil
}

// ComputeRankShift reports how regions moved in their ranking for entity.
func (s *EngineService) ComputeRankShift(ctx context.Context, filter domain.FactFilter, entity, ref, base string) ([]domain.RankShift, error) {
	if err := s.require(metrics.MetricRegionalBenchmark); err != nil {
		return nil, err
	}
	if entity == "" {
		return nil, ErrEntityRequired
	}
	filter.Region = ""
	view, pair, err := s.prepare(ctx, filter, ref, base)
	if err != nil {
		return nil, err
	}
	return view.RegionalRankShift(entity, pair.Ref, pair.Base), nil
}

// Summary describes the filtered snapshot.
func (s *EngineService) Summary(ctx context.Context, filter domain.FactFilter) (domain.Summary, error) {
	table, err := s.GetFactTable(ctx, filter)
	if err != nil {
		return domain.Summary{}, err
	}
	return s.summarizer.Summarize(table), nil
}

// ClassAmbiguities lists sources that carry more than one class row.
func (s *EngineService) ClassAmbiguities(ctx context.Context) (map[string][]string, error) {
	snap, err := s.cache.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return snap.View.Classes().Ambiguous(), nil
}

func (s *EngineService) require(m metrics.Metric) error {
	if !s.config.Enabled(m) {
		return fmt.Errorf("%w: %s", metrics.ErrMetricDisabled, m)
	}
	return nil
}

// view returns the filtered view and its sorted periods.
func (s *EngineService) view(ctx context.Context, filter domain.FactFilter) (*metrics.View, []string, error) {
	snap, err := s.cache.Get(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	view := snap.View
	if filter != (domain.FactFilter{}) {
		view = view.Filter(filter)
	}
	return view, s.GetSortedPeriods(view.Table()), nil
}

func (s *EngineService) prepare(ctx context.Context, filter domain.FactFilter, ref, base string) (*metrics.View, PeriodPair, error) {
	view, available, err := s.view(ctx, filter)
	if err != nil {
		return nil, PeriodPair{}, err
	}
	pair, err := s.ResolvePeriods(available, ref, base)
	if err != nil {
		return nil, PeriodPair{}, err
	}
	return view, pair, nil
}

func (s *EngineService) logUndefined(ctx context.Context, err error) {
	if err == nil {
		return
	}
	if metrics.ReasonOf(err) == metrics.ReasonAmbiguousClass {
		s.logger.WarnContext(ctx, "Metric undefined: ambiguous class match", slog.String("error", err.Error()))
		return
	}
	s.logger.DebugContext(ctx, "Metric undefined", slog.String("error", err.Error()))
}
