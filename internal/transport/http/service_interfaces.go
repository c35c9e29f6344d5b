package http

import (
	"context"

	"pharmapulse/internal/metrics"
	"pharmapulse/internal/services"
	"pharmapulse/pkg/contracts/domain"
)

// EngineServiceInterface defines the metric queries served over HTTP
type EngineServiceInterface interface {
	Config() metrics.Config
	GetFactTable(ctx context.Context, filter domain.FactFilter) (*domain.FactTable, error)
	Periods(ctx context.Context, filter domain.FactFilter) ([]string, error)
	ComputeGrowthLeaderboard(ctx context.Context, req services.LeaderboardRequest) (services.LeaderboardResult, error)
	ComputeMarketShare(ctx context.Context, filter domain.FactFilter, entity, period string) (domain.MarketShare, error)
	ComputeEvolutionIndex(ctx context.Context, filter domain.FactFilter, entity, ref, base string) (domain.MetricRow, error)
	ComputePortfolioEI(ctx context.Context, filter domain.FactFilter, entities []string, ref, base string) (services.PortfolioResult, error)
	ComputeRegionalBenchmark(ctx context.Context, filter domain.FactFilter, entities []string, ref, base string) (services.BenchmarkResult, error)
	ComputeChurn(ctx context.Context, filter domain.FactFilter, ref, base string, topN int) (services.LeaderboardResult, error)
	ComputeRankShift(ctx context.Context, filter domain.FactFilter, entity, ref, base string) ([]domain.RankShift, error)
	Summary(ctx context.Context, filter domain.FactFilter) (domain.Summary, error)
	ClassAmbiguities(ctx context.Context) (map[string][]string, error)
}

// IngestServiceInterface defines the ingestion operations served over HTTP
type IngestServiceInterface interface {
	Run(ctx context.Context, opts services.IngestOptions) (services.IngestReport, error)
	RebuildCache(ctx context.Context) (int, error)
	IsFresh(ctx context.Context) (bool, error)
}
