// Package jobs runs background work on a cron schedule.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"pharmapulse/internal/cache"
	"pharmapulse/internal/config"
	"pharmapulse/internal/infrastructure"
	"pharmapulse/internal/services"
	"pharmapulse/pkg/contracts/events"
)

// Ingester is the part of services.IngestService the refresher drives.
type Ingester interface {
	IsFresh(ctx context.Context) (bool, error)
	Run(ctx context.Context, opts services.IngestOptions) (services.IngestReport, error)
}

// Snapshots is the part of cache.SnapshotCache the refresher drives.
type Snapshots interface {
	IsFresh(ctx context.Context) (bool, error)
	Peek() (*cache.Snapshot, bool)
	Rebuild(ctx context.Context) (*cache.Snapshot, error)
}

// Outcome describes what a refresh tick did.
type Outcome string

const (
	OutcomeUpToDate Outcome = "up_to_date"
	OutcomeIngested Outcome = "ingested"
	OutcomeRebuilt  Outcome = "rebuilt"
	OutcomeBusy     Outcome = "busy"
	OutcomeNoSource Outcome = "no_source"
)

// Refresher periodically brings the master and the snapshot up to date.
type Refresher struct {
	cfg       config.SchedulerConfig
	ingest    Ingester
	snapshots Snapshots
	hub       services.WebSocketHub
	logger    *slog.Logger

	cron    *cron.Cron
	entryID cron.EntryID
}

// NewRefresher validates the schedule and prepares the cron runner. ingest
// and hub may be nil.
func NewRefresher(cfg config.SchedulerConfig, ingest Ingester, snapshots Snapshots, hub services.WebSocketHub, logger *slog.Logger) (*Refresher, error) {
	if snapshots == nil {
		return nil, fmt.Errorf("%w: refresher requires a snapshot cache", services.ErrInvalidInput)
	}
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger = logger.With(slog.String("component", "refresher"))

	cl := cronLogger{logger: logger}
	r := &Refresher{
		cfg:       cfg,
		ingest:    ingest,
		snapshots: snapshots,
		hub:       hub,
		logger:    logger,
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}

	id, err := r.cron.AddFunc(cfg.Schedule, r.runScheduled)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", cfg.Schedule, err)
	}
	r.entryID = id
	return r, nil
}

// Start begins running ticks on the schedule.
func (r *Refresher) Start() {
	r.cron.Start()
	r.logger.Info("Refresher scheduled",
		slog.String("schedule", r.cfg.Schedule),
		slog.Bool("auto_ingest", r.cfg.AutoIngest),
		slog.Time("next_run", r.cron.Entry(r.entryID).Next))
}

// Stop prevents new ticks and waits for a running one, or for ctx.
func (r *Refresher) Stop(ctx context.Context) error {
	done := r.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Refresher) runScheduled() {
	ctx := infrastructure.EnsureTraceID(context.Background())
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	outcome, err := r.Tick(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Scheduled refresh failed",
			slog.String("outcome", string(outcome)),
			slog.String("error", err.Error()))
	}
}

// Tick performs one refresh: re-ingest when a spreadsheet is newer than the
// master, otherwise rebuild the snapshot when a stored source changed.
func (r *Refresher) Tick(ctx context.Context) (Outcome, error) {
	start := time.Now()

	if r.cfg.AutoIngest && r.ingest != nil {
		fresh, err := r.ingest.IsFresh(ctx)
		if err != nil {
			return OutcomeUpToDate, err
		}
		if !fresh {
			return r.reingest(ctx, start)
		}
	}

	fresh, err := r.snapshots.IsFresh(ctx)
	if err != nil {
		return OutcomeUpToDate, err
	}
	if fresh {
		r.logger.DebugContext(ctx, "Snapshot is up to date")
		return OutcomeUpToDate, nil
	}

	snap, err := r.snapshots.Rebuild(ctx)
	if err != nil {
		return OutcomeRebuilt, fmt.Errorf("snapshot rebuild: %w", err)
	}
	r.announce(ctx, OutcomeRebuilt, snap, start)
	return OutcomeRebuilt, nil
}

func (r *Refresher) reingest(ctx context.Context, start time.Time) (Outcome, error) {
	r.logger.InfoContext(ctx, "Source spreadsheets changed, re-ingesting",
		slog.Bool("merge", r.cfg.Merge))

	report, err := r.ingest.Run(ctx, services.IngestOptions{Merge: r.cfg.Merge})
	switch {
	case errors.Is(err, services.ErrIngestRunning):
		r.logger.InfoContext(ctx, "Ingestion already running, skipping tick")
		return OutcomeBusy, nil
	case errors.Is(err, services.ErrNoSourceFiles):
		r.logger.InfoContext(ctx, "No new source files to ingest")
		return OutcomeNoSource, nil
	case err != nil:
		return OutcomeIngested, err
	}
	if report.Skipped {
		return OutcomeUpToDate, nil
	}

	snap, err := r.currentSnapshot(ctx)
	if err != nil {
		return OutcomeIngested, fmt.Errorf("snapshot rebuild: %w", err)
	}
	r.announce(ctx, OutcomeIngested, snap, start)
	return OutcomeIngested, nil
}

// currentSnapshot returns the snapshot, rebuilding it unless the ingest run
// already did.
func (r *Refresher) currentSnapshot(ctx context.Context) (*cache.Snapshot, error) {
	if fresh, err := r.snapshots.IsFresh(ctx); err == nil && fresh {
		if snap, ok := r.snapshots.Peek(); ok {
			return snap, nil
		}
	}
	return r.snapshots.Rebuild(ctx)
}

func (r *Refresher) announce(ctx context.Context, outcome Outcome, snap *cache.Snapshot, start time.Time) {
	rows := 0
	if snap != nil && snap.Table != nil {
		rows = snap.Table.Len()
	}
	r.logger.InfoContext(ctx, "Snapshot refreshed",
		slog.String("outcome", string(outcome)),
		slog.Int("rows", rows),
		slog.Duration("duration", time.Since(start)))

	if r.hub == nil {
		return
	}
	data := events.SnapshotRebuilt{
		Trigger: "schedule",
		Outcome: string(outcome),
		Rows:    rows,
	}
	if snap != nil {
		data.BuiltAt = snap.BuiltAt
	}
	r.hub.Broadcast(events.TypeSnapshotRebuilt, data)
}

// cronLogger routes cron's own messages through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
