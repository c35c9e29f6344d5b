package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmapulse/internal/dataprocessing"
	"pharmapulse/pkg/contracts/domain"
)

func row(entity, period string, units float64) domain.FactRow {
	return domain.FactRow{
		Region: "SOFIA", EntityName: entity, EntityKind: domain.EntityKindProduct,
		Source: "ANTIHIST", Team: "Team 1", Period: period, Units: units,
	}
}

func TestMasterStoreLoadMissing(t *testing.T) {
	s := NewMasterStore(filepath.Join(t.TempDir(), "master.csv"), nil)
	rows, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, ok := s.ModTime()
	assert.False(t, ok)
}

func TestMasterStoreSaveLoad(t *testing.T) {
	ctx := context.Background()
	s := NewMasterStore(filepath.Join(t.TempDir(), "data", "master.csv"), nil)

	want := []domain.FactRow{row("P1", "Q1 2024", 10), row("P2", "Q1 2024", 0.5)}
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// the writer lock is released after Save
	other := flock.New(s.Path() + ".lock")
	locked, err := other.TryLock()
	require.NoError(t, err)
	assert.True(t, locked)
	require.NoError(t, other.Unlock())
}

func TestMasterStoreMergeReplacesByKey(t *testing.T) {
	ctx := context.Background()
	s := NewMasterStore(filepath.Join(t.TempDir(), "master.csv"), nil)
	require.NoError(t, s.Save(ctx, []domain.FactRow{row("P1", "Q1 2024", 10), row("P2", "Q1 2024", 20)}))

	res, err := s.Merge(ctx, []domain.FactRow{row("P1", "Q1 2024", 11), row("P3", "Q1 2024", 5)})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Replaced)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 3, res.TotalAfter)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.FactRow{row("P2", "Q1 2024", 20), row("P1", "Q1 2024", 11), row("P3", "Q1 2024", 5)}, got)

	// merging the same batch again changes nothing
	res, err = s.Merge(ctx, []domain.FactRow{row("P1", "Q1 2024", 11), row("P3", "Q1 2024", 5)})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Added)
	assert.Equal(t, 3, res.TotalAfter)
}

func TestMasterStoreConcurrentMerges(t *testing.T) {
	ctx := context.Background()
	s := NewMasterStore(filepath.Join(t.TempDir(), "master.csv"), nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Merge(ctx, []domain.FactRow{row(string(rune('A'+i)), "Q1 2024", float64(i))})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 8, "no merge may be lost")
}

func holdLock(t *testing.T, path string) *flock.Flock {
	t.Helper()
	fl := flock.New(path)
	locked, err := fl.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	t.Cleanup(func() { _ = fl.Unlock() })
	return fl
}

func TestMasterStoreHeldLock(t *testing.T) {
	s := NewMasterStore(filepath.Join(t.TempDir(), "master.csv"), nil)
	holdLock(t, s.Path()+".lock")

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	err := s.Save(ctx, []domain.FactRow{row("P1", "Q1 2024", 1)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLocked)
	assert.Equal(t, dataprocessing.ErrorTypePersistenceFailure, dataprocessing.GetErrorType(err))
	assert.NoFileExists(t, s.Path())
}

func TestMasterStoreWaitsForLockHolder(t *testing.T) {
	s := NewMasterStore(filepath.Join(t.TempDir(), "master.csv"), nil)
	held := holdLock(t, s.Path()+".lock")

	done := make(chan error, 1)
	go func() {
		done <- s.Save(context.Background(), []domain.FactRow{row("P1", "Q1 2024", 1)})
	}()

	select {
	case err := <-done:
		t.Fatalf("save finished while the lock was held: %v", err)
	case <-time.After(300 * time.Millisecond):
	}

	require.NoError(t, held.Unlock())
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("save did not proceed after the lock was released")
	}
	assert.FileExists(t, s.Path())
}

func TestMasterStoreIgnoresLeftoverLockFile(t *testing.T) {
	s := NewMasterStore(filepath.Join(t.TempDir(), "master.csv"), nil)
	// a crashed writer leaves the file behind but no OS lock
	require.NoError(t, os.WriteFile(s.Path()+".lock", []byte("999"), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Save(ctx, []domain.FactRow{row("P1", "Q1 2024", 1)}))
}

func TestMasterStoreNormalizesLegacyRegions(t *testing.T) {
	ctx := context.Background()
	s := NewMasterStore(filepath.Join(t.TempDir(), "master.csv"), nil)
	legacy := "Region,Drug_Name,Source,Team,Quarter,Units\nRegion SOFIA,P1,ANTIHIST,Team 1,Q1 2024,10\n"
	require.NoError(t, os.WriteFile(s.Path(), []byte(legacy), 0o644))

	res, err := s.Merge(ctx, []domain.FactRow{row("P1", "Q1 2024", 12)})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Replaced)
	assert.Equal(t, 1, res.TotalAfter)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "SOFIA", got[0].Region)
	assert.Equal(t, 12.0, got[0].Units)
}

func TestMasterStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.csv")
	require.NoError(t, os.WriteFile(path, []byte("Region,Drug_Name\nx,y\n"), 0o644))

	_, err := NewMasterStore(path, nil).Load(context.Background())
	assert.Equal(t, dataprocessing.ErrorTypePersistenceFailure, dataprocessing.GetErrorType(err))
}
