package dataprocessing

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmapulse/internal/hierarchy"
	"pharmapulse/internal/periods"
	"pharmapulse/internal/shared/testutil"
	"pharmapulse/pkg/contracts/domain"
)

type staticMolecules map[string]string

func (m staticMolecules) Lookup(drug string) string { return m[drug] }

func melted(region, district, entity, period, value string, role hierarchy.RowRole) periods.MeltedRow {
	return periods.MeltedRow{
		Context:    hierarchy.Context{Region: region, District: district},
		Role:       role,
		EntityName: entity,
		Period:     period,
		Value:      value,
	}
}

func TestCoerceUnits(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"10", 10, false},
		{" 1,250.5 ", 1250.5, false},
		{"0", 0, false},
		{"", 0, true},
		{"nan", 0, true},
		{"abc", 0, true},
		{"-3", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := CoerceUnits(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAssembleBatch(t *testing.T) {
	res := &FileResult{
		Path: "ANTIHISTAMINES Total Q.xlsx",
		Rows: []periods.MeltedRow{
			melted("Region SOFIA", "(SF) CENTER", "AERIUS 5MG", "Q1 2024", "10", hierarchy.RoleProduct),
			melted("Region SOFIA", "(SF) CENTER", "R06A0 ANTIHISTAMINES", "Q1 2024", "100", hierarchy.RoleTherapeuticClass),
			melted("Region SOFIA", "(SF) CENTER", "AERIUS 5MG", "Q2 2024", "n/a", hierarchy.RoleProduct),
			melted("", "", "ORPHAN", "Q1 2024", "5", hierarchy.RoleProduct),
		},
		HasDistrict: true,
	}

	a := NewAssembler(staticMolecules{"AERIUS 5MG": "desloratadine"}, nil)
	rows, outcome := a.AssembleBatch(context.Background(), res, "ANTIHISTAMINES", "Team 1")

	require.Len(t, rows, 2)
	assert.Equal(t, 1, outcome.Dropped)
	assert.Equal(t, 1, outcome.Rejected)
	assert.Equal(t, 2, outcome.Rows)

	assert.Equal(t, domain.FactRow{
		Region: "SOFIA", District: "(SF) CENTER", EntityName: "AERIUS 5MG",
		EntityKind: domain.EntityKindProduct, Source: "ANTIHISTAMINES", Team: "Team 1",
		Period: "Q1 2024", Units: 10, Molecule: "desloratadine",
	}, rows[0])
	assert.Equal(t, domain.EntityKindTherapeuticClass, rows[1].EntityKind)
}

func TestAssembleReportsFailuresWithoutAborting(t *testing.T) {
	good := &FileResult{
		Path: "GOOD.xlsx",
		Rows: []periods.MeltedRow{melted("Region A", "", "P1", "Q1 2024", "1", hierarchy.RoleProduct)},
	}
	empty := &FileResult{
		Path: "EMPTY.xlsx",
		Rows: []periods.MeltedRow{melted("Region A", "", "P1", "Q1 2024", "", hierarchy.RoleProduct)},
	}

	table, manifest, err := NewAssembler(nil, nil).Assemble(context.Background(), []Batch{
		{Path: "GOOD.xlsx", Source: "GOOD", Team: "Team 1", Result: good},
		{Path: "EMPTY.xlsx", Source: "EMPTY", Team: "Team 1", Result: empty},
		{Path: "BROKEN.xlsx", Source: "BROKEN", Team: "Team 1", Err: NewPeriodDetectionError("BROKEN.xlsx")},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, table.Len())
	assert.Equal(t, 1, manifest.FilesProcessed)
	assert.Equal(t, 2, manifest.FilesFailed)
	assert.Equal(t, 2, manifest.RowsRead)
	assert.Equal(t, 1, manifest.RowsDropped)
	assert.NotEmpty(t, manifest.RunID)
	require.Len(t, manifest.Files, 3)
	assert.True(t, manifest.Files[1].Failed)
	assert.Equal(t, 1, manifest.DropReasons[string(ErrorTypePeriodDetectionFailure)])
}

func TestAssembleNoValidData(t *testing.T) {
	table, manifest, err := NewAssembler(nil, nil).Assemble(context.Background(), []Batch{
		{Path: "BROKEN.xlsx", Err: errors.New("boom")},
	})
	assert.ErrorIs(t, err, ErrNoValidData)
	assert.Zero(t, table.Len())
	assert.Equal(t, 1, manifest.FilesFailed)
}

func TestDedupKeepsLast(t *testing.T) {
	rows := []domain.FactRow{
		{Region: "A", EntityName: "P1", Source: "S", Period: "Q1 2024", Units: 1},
		{Region: "A", EntityName: "P2", Source: "S", Period: "Q1 2024", Units: 2},
		{Region: "A", EntityName: "P1", Source: "S", Period: "Q1 2024", Units: 3},
		{Region: "A", EntityName: "P1", Source: "S", Period: "Q1 2024", Team: "Team 2", Units: 4},
	}

	out, removed := Dedup(rows)

	assert.Equal(t, 1, removed)
	require.Len(t, out, 3)
	assert.Equal(t, "P2", out[0].EntityName)
	assert.Equal(t, 3.0, out[1].Units)
	assert.Equal(t, "Team 2", out[2].Team)
}

func TestMergeReplacesEarlierRows(t *testing.T) {
	existing := []domain.FactRow{{Region: "A", EntityName: "P1", Source: "S", Period: "Q1 2024", Units: 1}}
	incoming := []domain.FactRow{
		{Region: "A", EntityName: "P1", Source: "S", Period: "Q1 2024", Units: 5},
		{Region: "A", EntityName: "P1", Source: "S", Period: "Q2 2024", Units: 6},
	}

	merged, removed := Merge(existing, incoming)

	assert.Equal(t, 1, removed)
	require.Len(t, merged, 2)
	assert.Equal(t, 5.0, merged[0].Units)
}

func TestPipelineEndToEnd(t *testing.T) {
	dir := t.TempDir()
	path := testutil.SofiaWorkbook(t, filepath.Join(dir, "Team 1", "ANTIHISTAMINES Total Q.xlsx"))

	pipe := NewPipeline(NewParser(nil, nil, nil, nil), NewAssembler(nil, nil), nil, 2, nil)
	table, manifest, err := pipe.Run(context.Background(), []SourceFile{{Path: path, Team: "Team 1"}})
	require.NoError(t, err)

	rows := table.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "SOFIA", rows[0].Region)
	assert.Equal(t, "AERIUS 5MG", rows[0].EntityName)
	assert.Equal(t, "Q1 2024", rows[0].Period)
	assert.Equal(t, 10.0, rows[0].Units)
	assert.Equal(t, "Q2 2024", rows[1].Period)
	assert.Equal(t, 15.0, rows[1].Units)
	assert.Equal(t, "ANTIHISTAMINES", rows[0].Source)
	assert.Equal(t, "Team 1", rows[0].Team)
	assert.Equal(t, 1, manifest.FilesProcessed)
}

func TestPipelineIdempotentReingest(t *testing.T) {
	dir := t.TempDir()
	path := testutil.SofiaWorkbook(t, filepath.Join(dir, "Team 1", "ANTIHISTAMINES.xlsx"))
	pipe := NewPipeline(NewParser(nil, nil, nil, nil), NewAssembler(nil, nil), nil, 2, nil)

	once, _, err := pipe.Run(context.Background(), []SourceFile{{Path: path, Team: "Team 1"}})
	require.NoError(t, err)
	twice, manifest, err := pipe.Run(context.Background(), []SourceFile{
		{Path: path, Team: "Team 1"},
		{Path: path, Team: "Team 1"},
	})
	require.NoError(t, err)

	assert.Equal(t, once.Rows(), twice.Rows())
	assert.Equal(t, 2, manifest.Duplicates)
}
