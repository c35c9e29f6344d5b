// Package services implements the business logic layer of Pharma Pulse.
// It sits between the HTTP handlers and the ingestion, storage and metric
// packages so that handlers stay thin and the rules are testable.
//
// # Available Services
//
//	- EngineService: metric queries over the current fact snapshot
//	- IngestService: team folder ingestion into the master and its mirrors
//	- HealthService: health and readiness checks
//
// # Engine queries
//
// Every EngineService query reads the snapshot through cache.SnapshotCache,
// which rebuilds it when the master or the Parquet cache is newer. Period
// arguments are optional: with neither given the two most recent periods are
// compared, with only a reference period its predecessor is the base.
//
//	res, err := engine.ComputeGrowthLeaderboard(ctx, services.LeaderboardRequest{
//	    Direction: metrics.DirectionGain,
//	    TopN:      5,
//	})
//
// Metrics switched off in metrics.Config return metrics.ErrMetricDisabled.
// Metrics that cannot be computed return a *metrics.UndefinedMetricError
// alongside an absent value.
//
// # Ingestion
//
// IngestService.Run discovers spreadsheets, parses them concurrently, writes
// the master under its lock, mirrors the rows into the SQL store and the
// Parquet cache, and rebuilds the snapshot. A run is skipped when the master
// is newer than every source file unless Force is set.
package services
