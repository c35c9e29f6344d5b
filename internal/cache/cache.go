// Package cache holds the current fact table snapshot and decides when it
// must be rebuilt.
//
// A snapshot is fresh while no source is newer than its build time. The
// comparison is on modification times only, so touching a file forces a
// rebuild even when its content is unchanged. Concurrent callers that find
// the snapshot stale share a single rebuild.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"pharmapulse/internal/metrics"
	"pharmapulse/pkg/contracts/domain"
)

// Snapshot is an immutable fact table with its derived view.
type Snapshot struct {
	Table   *domain.FactTable
	View    *metrics.View
	BuiltAt time.Time
}

// Clock abstracts time for freshness checks.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Builder produces a new fact table.
type Builder func(ctx context.Context) (*domain.FactTable, error)

// SourceStamp returns the newest modification time among the sources the
// snapshot is built from.
type SourceStamp func(ctx context.Context) (time.Time, error)

// Observer is notified after every rebuild attempt.
type Observer interface {
	CacheRebuilt(ctx context.Context, rows int, err error)
}

// Option configures a SnapshotCache.
type Option func(*SnapshotCache)

// WithClock overrides the wall clock.
func WithClock(c Clock) Option {
	return func(sc *SnapshotCache) { sc.clock = c }
}

// WithObserver reports rebuilds to o.
func WithObserver(o Observer) Option {
	return func(sc *SnapshotCache) { sc.observer = o }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(sc *SnapshotCache) { sc.logger = l }
}

// OnRebuild registers fn to run after each successful rebuild.
func OnRebuild(fn func(context.Context, *Snapshot)) Option {
	return func(sc *SnapshotCache) { sc.listeners = append(sc.listeners, fn) }
}

// SnapshotCache holds the current snapshot.
type SnapshotCache struct {
	build     Builder
	stamp     SourceStamp
	clock     Clock
	observer  Observer
	listeners []func(context.Context, *Snapshot)
	logger    *slog.Logger

	mu       sync.RWMutex
	snapshot *Snapshot

	group singleflight.Group
}

// New creates an empty cache.
func New(build Builder, stamp SourceStamp, opts ...Option) *SnapshotCache {
	sc := &SnapshotCache{
		build:  build,
		stamp:  stamp,
		clock:  SystemClock{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(sc)
	}
	sc.logger = sc.logger.With("component", "snapshot_cache")
	return sc
}

// Get returns the current snapshot, rebuilding first when it is missing or
// stale.
func (c *SnapshotCache) Get(ctx context.Context) (*Snapshot, error) {
	fresh, err := c.IsFresh(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "Freshness check failed, rebuilding", slog.String("error", err.Error()))
	}
	if fresh {
		snap, _ := c.Peek()
		return snap, nil
	}
	return c.Rebuild(ctx)
}

// Peek returns the current snapshot without checking freshness.
func (c *SnapshotCache) Peek() (*Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot, c.snapshot != nil
}

// IsFresh reports whether a snapshot exists and no source is newer than it.
func (c *SnapshotCache) IsFresh(ctx context.Context) (bool, error) {
	snap, ok := c.Peek()
	if !ok {
		return false, nil
	}
	if c.stamp == nil {
		return true, nil
	}
	newest, err := c.stamp(ctx)
	if err != nil {
		return false, err
	}
	return !newest.After(snap.BuiltAt), nil
}

// Invalidate drops the snapshot; the next Get rebuilds.
func (c *SnapshotCache) Invalidate() {
	c.mu.Lock()
	c.snapshot = nil
	c.mu.Unlock()
}

// Rebuild builds a new snapshot unconditionally. Concurrent calls share one
// build. On failure the previous snapshot is kept.
func (c *SnapshotCache) Rebuild(ctx context.Context) (*Snapshot, error) {
	ch := c.group.DoChan("rebuild", func() (any, error) {
		return c.rebuild(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

func (c *SnapshotCache) rebuild(ctx context.Context) (*Snapshot, error) {
	ctx, span := otel.Tracer("pharmapulse/cache").Start(ctx, "cache.rebuild")
	defer span.End()

	// stamp before building so sources written during the build count as newer
	builtAt := c.clock.Now()
	start := time.Now()

	table, err := c.build(ctx)
	if err == nil && table == nil {
		err = errors.New("builder returned no table")
	}
	if err != nil {
		err = fmt.Errorf("failed to rebuild snapshot: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if c.observer != nil {
			c.observer.CacheRebuilt(ctx, 0, err)
		}
		c.logger.ErrorContext(ctx, "Snapshot rebuild failed", slog.String("error", err.Error()))
		return nil, err
	}

	snap := &Snapshot{Table: table, View: metrics.NewView(table), BuiltAt: builtAt}
	c.mu.Lock()
	c.snapshot = snap
	c.mu.Unlock()

	span.SetAttributes(attribute.Int("rows", table.Len()))
	if c.observer != nil {
		c.observer.CacheRebuilt(ctx, table.Len(), nil)
	}
	c.logger.InfoContext(ctx, "Snapshot rebuilt",
		slog.Int("rows", table.Len()),
		slog.Duration("duration", time.Since(start)))

	for _, fn := range c.listeners {
		fn(ctx, snap)
	}
	return snap, nil
}
