package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"pharmapulse/internal/dataprocessing"
	"pharmapulse/internal/exporter"
	"pharmapulse/pkg/contracts/domain"
)

// MergeResult reports the outcome of merging a batch into the master.
type MergeResult struct {
	Rows       []domain.FactRow
	Added      int
	Replaced   int
	TotalAfter int
}

// MasterStore reads and writes the master CSV.
type MasterStore struct {
	path   string
	writer *exporter.CSVWriter
	lock   fileLock
	mu     sync.Mutex
	logger *slog.Logger
}

// NewMasterStore creates a store for the master file at path.
func NewMasterStore(path string, logger *slog.Logger) *MasterStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MasterStore{
		path:   path,
		writer: exporter.NewCSVWriter(filepath.Dir(path), logger),
		lock: fileLock{
			path:  path + ".lock",
			retry: 100 * time.Millisecond,
		},
		logger: logger.With("component", "master_store"),
	}
}

// Path returns the master file location.
func (s *MasterStore) Path() string {
	return s.path
}

// Load reads every fact in the master. A missing master is an empty table.
func (s *MasterStore) Load(ctx context.Context) ([]domain.FactRow, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, dataprocessing.NewPersistenceError(s.path, err)
	}
	defer f.Close()

	rows, err := exporter.ReadFacts(f)
	if err != nil {
		return nil, dataprocessing.NewPersistenceError(s.path, err)
	}
	s.logger.DebugContext(ctx, "Master loaded", slog.Int("rows", len(rows)))
	return rows, nil
}

// Save replaces the master with rows.
func (s *MasterStore) Save(ctx context.Context, rows []domain.FactRow) error {
	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return s.save(ctx, rows)
}

// Merge appends incoming to the master under the writer lock. Rows whose
// natural key already exists are replaced by the incoming version; the
// merged result is deduplicated before it is written.
func (s *MasterStore) Merge(ctx context.Context, incoming []domain.FactRow) (MergeResult, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return MergeResult{}, err
	}
	defer release()

	existing, err := s.Load(ctx)
	if err != nil {
		return MergeResult{}, err
	}

	merged, dupes := dataprocessing.Merge(existing, incoming)
	if err := s.save(ctx, merged); err != nil {
		return MergeResult{}, err
	}

	res := MergeResult{
		Rows:       merged,
		Added:      len(merged) - len(existing),
		Replaced:   dupes,
		TotalAfter: len(merged),
	}
	s.logger.InfoContext(ctx, "Master merged",
		slog.Int("incoming", len(incoming)),
		slog.Int("replaced", res.Replaced),
		slog.Int("total", res.TotalAfter))
	return res, nil
}

// ModTime returns the master's modification time.
func (s *MasterStore) ModTime() (time.Time, bool) {
	info, err := os.Stat(s.path)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

func (s *MasterStore) acquire(ctx context.Context) (func(), error) {
	s.mu.Lock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.mu.Unlock()
		return nil, dataprocessing.NewPersistenceError(s.path, err)
	}
	releaseFile, err := s.lock.acquire(ctx)
	if err != nil {
		s.mu.Unlock()
		return nil, dataprocessing.NewPersistenceError(s.path, err)
	}
	return func() {
		releaseFile()
		s.mu.Unlock()
	}, nil
}

func (s *MasterStore) save(ctx context.Context, rows []domain.FactRow) error {
	if err := s.writer.ExportFacts(s.path, rows); err != nil {
		return dataprocessing.NewPersistenceError(s.path, fmt.Errorf("failed to write master: %w", err))
	}
	s.logger.DebugContext(ctx, "Master written", slog.Int("rows", len(rows)))
	return nil
}
