package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/samber/lo"

	"pharmapulse/internal/cache"
	"pharmapulse/internal/dataprocessing"
	"pharmapulse/internal/files"
	"pharmapulse/internal/molecules"
	"pharmapulse/internal/store"
	"pharmapulse/pkg/contracts/domain"
	"pharmapulse/pkg/contracts/events"
)

// WebSocket message types published by the services.
const (
	EventIngestCompleted = events.TypeIngestCompleted
	EventIngestFailed    = events.TypeIngestFailed
	EventSnapshotRebuilt = events.TypeSnapshotRebuilt
)

// WebSocketHub interface for WebSocket communication
type WebSocketHub interface {
	Broadcast(messageType string, data interface{})
}

// IngestOptions controls one ingestion run.
type IngestOptions struct {
	// Force ingests even when the master is newer than every source file.
	Force bool
	// Merge parses only files modified since the master was written and
	// merges them into it. Otherwise the master is rebuilt from every file.
	Merge bool
}

// IngestReport describes one ingestion run.
type IngestReport struct {
	Skipped    bool                  `json:"skipped"`
	Mode       string                `json:"mode"`
	Files      int                   `json:"files"`
	Manifest   domain.IngestManifest `json:"manifest"`
	Added      int                   `json:"added"`
	Replaced   int                   `json:"replaced"`
	TotalRows  int                   `json:"total_rows"`
	UnknownMol int                   `json:"unknown_molecules"`
	Duration   time.Duration         `json:"duration_ns"`
}

// IngestService turns team spreadsheets into the persisted master and keeps
// the derived stores and the snapshot in step with it.
type IngestService struct {
	discovery *files.Discovery
	pipeline  *dataprocessing.Pipeline
	master    *store.MasterStore
	sql       *store.SQLStore
	parquet   *store.ParquetCache
	molecules *molecules.Map
	snapshots *cache.SnapshotCache
	hub       WebSocketHub
	running   atomic.Bool
	logger    *slog.Logger
}

// IngestDeps are the collaborators of an IngestService. Discovery, Pipeline
// and Master are required; the rest may be nil.
type IngestDeps struct {
	Discovery *files.Discovery
	Pipeline  *dataprocessing.Pipeline
	Master    *store.MasterStore
	SQL       *store.SQLStore
	Parquet   *store.ParquetCache
	Molecules *molecules.Map
	Hub       WebSocketHub
}

// NewIngestService creates an ingest service.
func NewIngestService(deps IngestDeps, logger *slog.Logger) (*IngestService, error) {
	if deps.Discovery == nil || deps.Pipeline == nil || deps.Master == nil {
		return nil, fmt.Errorf("%w: discovery, pipeline and master store are required", ErrInvalidInput)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestService{
		discovery: deps.Discovery,
		pipeline:  deps.Pipeline,
		master:    deps.Master,
		sql:       deps.SQL,
		parquet:   deps.Parquet,
		molecules: deps.Molecules,
		hub:       deps.Hub,
		logger:    logger.With("component", "ingest_service"),
	}, nil
}

// AttachCache makes successful runs rebuild c. The cache is built by
// LoadSnapshot, so it is attached after construction.
func (s *IngestService) AttachCache(c *cache.SnapshotCache) {
	s.snapshots = c
}

// IsFresh reports whether the master exists and is newer than every source
// spreadsheet.
func (s *IngestService) IsFresh(ctx context.Context) (bool, error) {
	masterTime, ok := s.master.ModTime()
	if !ok {
		return false, nil
	}
	found, err := s.discovery.FindSpreadsheets()
	if err != nil {
		return false, fmt.Errorf("failed to scan source files: %w", err)
	}
	newest := files.NewestModTime(found)
	fresh := !newest.After(masterTime)
	s.logger.DebugContext(ctx, "Freshness checked",
		slog.Time("master", masterTime),
		slog.Time("newest_source", newest),
		slog.Bool("fresh", fresh))
	return fresh, nil
}

// Run ingests the team folders. Only one run executes at a time; a second
// caller gets ErrIngestRunning.
func (s *IngestService) Run(ctx context.Context, opts IngestOptions) (IngestReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return IngestReport{}, ErrIngestRunning
	}
	defer s.running.Store(false)

	start := time.Now()
	report := IngestReport{Mode: lo.Ternary(opts.Merge, "merge", "full")}

	if !opts.Force {
		fresh, err := s.IsFresh(ctx)
		if err != nil {
			return report, err
		}
		if fresh {
			report.Skipped = true
			s.logger.InfoContext(ctx, "Master is up to date, skipping ingestion")
			return report, nil
		}
	}

	found, err := s.discovery.FindSpreadsheets()
	if err != nil {
		return report, fmt.Errorf("failed to scan source files: %w", err)
	}
	if opts.Merge {
		if masterTime, ok := s.master.ModTime(); ok && !opts.Force {
			found = files.ModifiedSince(found, masterTime)
		}
	}
	if len(found) == 0 {
		return report, ErrNoSourceFiles
	}
	report.Files = len(found)

	s.logger.InfoContext(ctx, "Ingestion started",
		slog.String("mode", report.Mode),
		slog.Int("files", len(found)))

	table, manifest, err := s.pipeline.Run(ctx, files.SourceFiles(found))
	report.Manifest = manifest
	if err != nil {
		s.broadcast(EventIngestFailed, events.IngestFailed{Error: err.Error(), Manifest: manifest})
		return report, err
	}
	rows := table.Rows()

	var persisted []domain.FactRow
	if opts.Merge {
		res, err := s.master.Merge(ctx, rows)
		if err != nil {
			return report, err
		}
		persisted = res.Rows
		report.Added, report.Replaced, report.TotalRows = res.Added, res.Replaced, res.TotalAfter
	} else {
		if err := s.master.Save(ctx, rows); err != nil {
			return report, err
		}
		persisted = rows
		report.Added, report.TotalRows = len(rows), len(rows)
	}

	if err := s.syncDerived(ctx, persisted); err != nil {
		return report, err
	}

	if s.molecules != nil {
		unknown := s.molecules.Unknown(productNames(persisted))
		report.UnknownMol = len(unknown)
		if len(unknown) > 0 {
			s.logger.InfoContext(ctx, "Drugs without molecule mapping",
				slog.Int("count", len(unknown)),
				slog.Any("sample", lo.Slice(unknown, 0, 10)))
		}
	}

	if s.snapshots != nil {
		if _, err := s.snapshots.Rebuild(ctx); err != nil {
			s.logger.WarnContext(ctx, "Snapshot rebuild after ingestion failed", slog.String("error", err.Error()))
		}
	}

	report.Duration = time.Since(start)
	s.logger.InfoContext(ctx, "Ingestion completed",
		slog.String("run_id", manifest.RunID),
		slog.Int("files_processed", manifest.FilesProcessed),
		slog.Int("files_failed", manifest.FilesFailed),
		slog.Int("total_rows", report.TotalRows),
		slog.Duration("duration", report.Duration))
	s.broadcast(EventIngestCompleted, report)
	return report, nil
}

// RebuildCache regenerates the Parquet cache from the master.
func (s *IngestService) RebuildCache(ctx context.Context) (int, error) {
	if s.parquet == nil {
		return 0, fmt.Errorf("%w: parquet cache disabled", ErrServiceUnavailable)
	}
	return s.parquet.Rebuild(ctx, s.master)
}

// LoadSnapshot is the snapshot builder: the Parquet cache when it is current,
// else the master, else the SQL mirror.
func (s *IngestService) LoadSnapshot(ctx context.Context) (*domain.FactTable, error) {
	if s.parquet != nil && !s.parquet.IsStale(s.master) {
		rows, err := s.parquet.Read(ctx)
		if err == nil {
			return domain.NewFactTable(rows), nil
		}
		if !errors.Is(err, store.ErrCacheMissing) {
			s.logger.WarnContext(ctx, "Parquet cache unreadable, using master", slog.String("error", err.Error()))
		}
	}

	rows, err := s.master.Load(ctx)
	if err != nil {
		return nil, err
	}
	if rows == nil && s.sql != nil {
		rows, err = s.sql.Load(ctx)
		if err != nil {
			return nil, err
		}
	}
	return domain.NewFactTable(rows), nil
}

// SourceStamp returns the newest modification time of the stores the
// snapshot is built from.
func (s *IngestService) SourceStamp(ctx context.Context) (time.Time, error) {
	var newest time.Time
	if t, ok := s.master.ModTime(); ok && t.After(newest) {
		newest = t
	}
	if s.parquet != nil {
		if t, ok := s.parquet.ModTime(); ok && t.After(newest) {
			newest = t
		}
	}
	return newest, nil
}

func (s *IngestService) syncDerived(ctx context.Context, rows []domain.FactRow) error {
	if s.sql != nil {
		if err := s.sql.ReplaceAll(ctx, rows); err != nil {
			return err
		}
	}
	if s.parquet != nil {
		if err := s.parquet.Write(ctx, rows); err != nil {
			return err
		}
	}
	return nil
}

func (s *IngestService) broadcast(messageType string, data interface{}) {
	if s.hub != nil {
		s.hub.Broadcast(messageType, data)
	}
}

func productNames(rows []domain.FactRow) []string {
	return lo.Uniq(lo.FilterMap(rows, func(r domain.FactRow, _ int) (string, bool) {
		return r.EntityName, !r.IsClass()
	}))
}
