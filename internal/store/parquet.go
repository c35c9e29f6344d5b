package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"pharmapulse/internal/dataprocessing"
	"pharmapulse/pkg/contracts/domain"
)

// ErrCacheMissing is returned by ParquetCache.Read when no cache file exists.
var ErrCacheMissing = errors.New("parquet cache not built")

// ParquetCache is the columnar cold-start copy of the master.
type ParquetCache struct {
	path   string
	logger *slog.Logger
}

// NewParquetCache creates a cache at path.
func NewParquetCache(path string, logger *slog.Logger) *ParquetCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ParquetCache{path: path, logger: logger.With("component", "parquet_cache")}
}

// Path returns the cache file location.
func (c *ParquetCache) Path() string {
	return c.path
}

// Read loads the cached facts.
func (c *ParquetCache) Read(ctx context.Context) ([]domain.FactRow, error) {
	if _, err := os.Stat(c.path); errors.Is(err, os.ErrNotExist) {
		return nil, ErrCacheMissing
	}
	rows, err := parquet.ReadFile[domain.FactRow](c.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet cache: %w", err)
	}
	c.logger.DebugContext(ctx, "Parquet cache read", slog.Int("rows", len(rows)))
	return rows, nil
}

// Write replaces the cache with rows.
func (c *ParquetCache) Write(ctx context.Context, rows []domain.FactRow) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return dataprocessing.NewPersistenceError(c.path, err)
	}
	tmp := c.path + ".tmp"
	if err := parquet.WriteFile(tmp, rows); err != nil {
		os.Remove(tmp)
		return dataprocessing.NewPersistenceError(c.path, fmt.Errorf("failed to write parquet: %w", err))
	}
	if err := os.Rename(tmp, c.path); err != nil {
		os.Remove(tmp)
		return dataprocessing.NewPersistenceError(c.path, err)
	}
	c.logger.InfoContext(ctx, "Parquet cache written", slog.Int("rows", len(rows)))
	return nil
}

// Rebuild regenerates the cache from the master and returns the row count.
func (c *ParquetCache) Rebuild(ctx context.Context, master *MasterStore) (int, error) {
	rows, err := master.Load(ctx)
	if err != nil {
		return 0, err
	}
	if err := c.Write(ctx, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// IsStale reports whether the cache is missing or older than the master.
func (c *ParquetCache) IsStale(master *MasterStore) bool {
	info, err := os.Stat(c.path)
	if err != nil {
		return true
	}
	masterTime, ok := master.ModTime()
	return ok && masterTime.After(info.ModTime())
}

// ModTime returns the cache file's modification time.
func (c *ParquetCache) ModTime() (time.Time, bool) {
	info, err := os.Stat(c.path)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}
