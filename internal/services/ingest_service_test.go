package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pharmapulse/internal/cache"
	"pharmapulse/internal/dataprocessing"
	"pharmapulse/internal/files"
	"pharmapulse/internal/molecules"
	"pharmapulse/internal/shared/testutil"
	"pharmapulse/internal/store"
)

// MockWebSocketHub is a mock for WebSocketHub interface
type MockWebSocketHub struct {
	mock.Mock
}

func (m *MockWebSocketHub) Broadcast(messageType string, data interface{}) {
	m.Called(messageType, data)
}

type ingestFixture struct {
	dataDir string
	service *IngestService
	master  *store.MasterStore
	parquet *store.ParquetCache
	hub     *MockWebSocketHub
}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()
	root := t.TempDir()
	dataDir := filepath.Join(root, "data")
	testutil.SofiaWorkbook(t, filepath.Join(dataDir, "Team 1", "ANTIHISTAMINES Total Q.xlsx"))

	master := store.NewMasterStore(filepath.Join(root, "master_data.csv"), nil)
	parquet := store.NewParquetCache(filepath.Join(root, "master_data.parquet"), nil)
	hub := &MockWebSocketHub{}
	hub.On("Broadcast", mock.Anything, mock.Anything).Return()

	mols := molecules.New()
	mols.Add("AERIUS 5MG", "DESLORATADINE")

	svc, err := NewIngestService(IngestDeps{
		Discovery: files.NewDiscovery(dataDir, []string{"Team 1", "Team 2"}, "Team 1", nil),
		Pipeline: dataprocessing.NewPipeline(
			dataprocessing.NewParser(nil, nil, nil, nil),
			dataprocessing.NewAssembler(mols, nil),
			nil, 2, nil),
		Master:    master,
		Parquet:   parquet,
		Molecules: mols,
		Hub:       hub,
	}, nil)
	require.NoError(t, err)

	return &ingestFixture{dataDir: dataDir, service: svc, master: master, parquet: parquet, hub: hub}
}

func TestNewIngestServiceRequiresCoreDeps(t *testing.T) {
	_, err := NewIngestService(IngestDeps{}, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestIngestRunBuildsMasterAndCache(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	report, err := f.service.Run(ctx, IngestOptions{})
	require.NoError(t, err)
	assert.False(t, report.Skipped)
	assert.Equal(t, "full", report.Mode)
	assert.Equal(t, 1, report.Files)
	assert.Equal(t, 2, report.TotalRows)
	assert.Equal(t, 1, report.Manifest.FilesProcessed)
	assert.Zero(t, report.UnknownMol)

	rows, err := f.master.Load(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "DESLORATADINE", rows[0].Molecule)
	assert.Equal(t, "Team 1", rows[0].Team)

	cached, err := f.parquet.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, rows, cached)

	f.hub.AssertCalled(t, "Broadcast", EventIngestCompleted, mock.Anything)
}

func TestIngestRunSkipsWhenFresh(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	_, err := f.service.Run(ctx, IngestOptions{})
	require.NoError(t, err)

	fresh, err := f.service.IsFresh(ctx)
	require.NoError(t, err)
	assert.True(t, fresh)

	report, err := f.service.Run(ctx, IngestOptions{})
	require.NoError(t, err)
	assert.True(t, report.Skipped)

	// forced re-ingest of the same files is idempotent
	report, err = f.service.Run(ctx, IngestOptions{Force: true})
	require.NoError(t, err)
	assert.False(t, report.Skipped)
	assert.Equal(t, 2, report.TotalRows)
}

func TestIngestMergeOnlyNewFiles(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	_, err := f.service.Run(ctx, IngestOptions{})
	require.NoError(t, err)

	added := testutil.SofiaWorkbook(t, filepath.Join(f.dataDir, "Team 2", "DECONGESTANTS Total.xlsx"))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(added, future, future))

	report, err := f.service.Run(ctx, IngestOptions{Merge: true})
	require.NoError(t, err)
	assert.Equal(t, "merge", report.Mode)
	assert.Equal(t, 1, report.Files)
	assert.Equal(t, 2, report.Added)
	assert.Equal(t, 4, report.TotalRows)

	rows, err := f.master.Load(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "DECONGESTANTS", rows[3].Source)
	assert.Equal(t, "Team 2", rows[3].Team)
}

func TestIngestWithoutSources(t *testing.T) {
	f := newIngestFixture(t)
	require.NoError(t, os.RemoveAll(f.dataDir))

	_, err := f.service.Run(context.Background(), IngestOptions{Force: true})
	assert.ErrorIs(t, err, ErrNoSourceFiles)
}

func TestIngestRejectsConcurrentRuns(t *testing.T) {
	f := newIngestFixture(t)
	f.service.running.Store(true)

	_, err := f.service.Run(context.Background(), IngestOptions{Force: true})
	assert.ErrorIs(t, err, ErrIngestRunning)
}

func TestLoadSnapshotFallsBackToMaster(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	table, err := f.service.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Zero(t, table.Len())

	_, err = f.service.Run(ctx, IngestOptions{})
	require.NoError(t, err)
	require.NoError(t, os.Remove(f.parquet.Path()))

	table, err = f.service.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())

	n, err := f.service.RebuildCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.FileExists(t, f.parquet.Path())
}

func TestIngestRebuildsAttachedCache(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	snapshots := cache.New(f.service.LoadSnapshot, f.service.SourceStamp)
	f.service.AttachCache(snapshots)

	_, err := f.service.Run(ctx, IngestOptions{})
	require.NoError(t, err)

	snap, ok := snapshots.Peek()
	require.True(t, ok)
	assert.Equal(t, 2, snap.Table.Len())

	stamp, err := f.service.SourceStamp(ctx)
	require.NoError(t, err)
	assert.False(t, stamp.IsZero())
}
