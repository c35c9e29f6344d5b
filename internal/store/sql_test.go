package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmapulse/pkg/contracts/domain"
)

func openSQLite(t *testing.T) *SQLStore {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "facts.db")
	s, err := OpenSQLStore(context.Background(), "sqlite", dsn, "facts", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLStoreReplaceAllAndLoad(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	first := []domain.FactRow{row("P2", "Q1 2024", 2), row("P1", "Q1 2024", 1)}
	require.NoError(t, s.ReplaceAll(ctx, first))

	second := make([]domain.FactRow, 0, 1200)
	for i := 0; i < 1200; i++ {
		r := row("P", "Q1 2024", float64(i))
		r.District = fmt.Sprintf("(DD) D%04d", i)
		second = append(second, r)
	}
	second[5].EntityKind = domain.EntityKindTherapeuticClass
	second[5].Molecule = "desloratadine"
	require.NoError(t, s.ReplaceAll(ctx, second))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1200, n)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestOpenSQLStoreValidation(t *testing.T) {
	_, err := OpenSQLStore(context.Background(), "sqlite", "file::memory:", "facts; DROP", nil)
	assert.ErrorContains(t, err, "invalid table name")

	_, err = OpenSQLStore(context.Background(), "mysql", "dsn", "facts", nil)
	assert.ErrorContains(t, err, "unsupported sql driver")
}
