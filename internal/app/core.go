package app

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"

	"pharmapulse/internal/cache"
	"pharmapulse/internal/config"
	"pharmapulse/internal/dataprocessing"
	"pharmapulse/internal/files"
	"pharmapulse/internal/hierarchy"
	"pharmapulse/internal/infrastructure"
	"pharmapulse/internal/molecules"
	"pharmapulse/internal/periods"
	"pharmapulse/internal/services"
	"pharmapulse/internal/store"
)

// Core is the ingestion and query stack shared by the web server and the
// command line tools.
type Core struct {
	Paths     *config.Paths
	Molecules *molecules.Map
	Master    *store.MasterStore
	SQL       *store.SQLStore
	Parquet   *store.ParquetCache
	Ingest    *services.IngestService
	Snapshots *cache.SnapshotCache
	Engine    *services.EngineService
	Metrics   *infrastructure.IngestMetrics
}

// CoreOptions carries the optional collaborators of a Core.
type CoreOptions struct {
	// Meter records ingestion metrics. Nil disables them.
	Meter metric.Meter
	// Hub receives ingest events. Nil disables them.
	Hub services.WebSocketHub
	// Listeners run after every snapshot rebuild.
	Listeners []func(context.Context, *cache.Snapshot)
}

// NewCore resolves paths and wires stores, the ingestion pipeline, the
// snapshot cache and the engine.
func NewCore(ctx context.Context, cfg *config.Config, paths *config.Paths, opts CoreOptions, logger *slog.Logger) (*Core, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	mols, err := molecules.Load(paths.MoleculesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load molecule map: %w", err)
	}
	logger.Info("Molecule map loaded",
		slog.String("path", paths.MoleculesFile),
		slog.Int("drugs", mols.Len()))

	c := &Core{
		Paths:     paths,
		Molecules: mols,
		Master:    store.NewMasterStore(paths.MasterFile, logger),
	}

	if cfg.Cache.UseParquet && paths.CacheFile != "" {
		c.Parquet = store.NewParquetCache(paths.CacheFile, logger)
	}

	if cfg.Store.Driver != "csv" {
		c.SQL, err = store.OpenSQLStore(ctx, cfg.Store.Driver, cfg.Store.DSN, cfg.Store.Table, logger)
		if err != nil {
			return nil, err
		}
	}

	var observer dataprocessing.Observer
	var cacheOpts []cache.Option
	if opts.Meter != nil {
		c.Metrics, err = infrastructure.NewIngestMetrics(opts.Meter)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to create ingest metrics: %w", err)
		}
		observer = c.Metrics
		cacheOpts = append(cacheOpts, cache.WithObserver(c.Metrics))
	}

	detector := periods.NewDetector(periods.DetectorOptions{
		Years:           cfg.Ingest.QuarterYears,
		FallbackColumns: cfg.Ingest.FallbackColumns,
	}, logger)
	parser := dataprocessing.NewParser(
		dataprocessing.NewWorkbookReader(logger, cfg.Ingest.SheetMarkers...),
		hierarchy.NewClassifier(),
		detector,
		logger)
	pipeline := dataprocessing.NewPipeline(
		parser,
		dataprocessing.NewAssembler(mols, logger),
		observer,
		cfg.Ingest.Workers,
		logger)

	c.Ingest, err = services.NewIngestService(services.IngestDeps{
		Discovery: files.NewDiscovery(paths.DataDir, cfg.Ingest.Teams, cfg.Ingest.DefaultTeam, logger),
		Pipeline:  pipeline,
		Master:    c.Master,
		SQL:       c.SQL,
		Parquet:   c.Parquet,
		Molecules: mols,
		Hub:       opts.Hub,
	}, logger)
	if err != nil {
		c.Close()
		return nil, err
	}

	cacheOpts = append(cacheOpts, cache.WithLogger(logger))
	for _, fn := range opts.Listeners {
		cacheOpts = append(cacheOpts, cache.OnRebuild(fn))
	}
	c.Snapshots = cache.New(c.Ingest.LoadSnapshot, c.Ingest.SourceStamp, cacheOpts...)
	c.Ingest.AttachCache(c.Snapshots)
	c.Engine = services.NewEngineService(c.Snapshots, cfg.Metrics, logger)

	return c, nil
}

// Close releases the SQL connection, if any.
func (c *Core) Close() error {
	if c.SQL != nil {
		return c.SQL.Close()
	}
	return nil
}
