package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmapulse/internal/services"
	"pharmapulse/internal/shared/testutil"
	"pharmapulse/pkg/contracts/domain"
)

func setupRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	t.Setenv("PHARMA_PATHS_ROOT_DIR", root)
	t.Setenv("PHARMA_LOGGING_OUTPUT", "stdout")
	t.Setenv("PHARMA_LOGGING_LEVEL", "error")
	return root
}

func TestRunIngestsSpreadsheets(t *testing.T) {
	root := setupRoot(t)
	testutil.SofiaWorkbook(t, filepath.Join(root, "data", "Team 1", "ANTIHISTAMINES Total Q.xlsx"))

	var out bytes.Buffer
	err := run(context.Background(), []string{"-env", "", "-force"}, &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "1 processed, 0 failed")
	assert.Contains(t, out.String(), "2 total")
	assert.FileExists(t, filepath.Join(root, "data", "master_data.csv"))
	assert.FileExists(t, filepath.Join(root, "data", "master_data.parquet"))
}

func TestRunWithoutSpreadsheets(t *testing.T) {
	setupRoot(t)

	var out bytes.Buffer
	err := run(context.Background(), []string{"-env", ""}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "No spreadsheets to ingest")
}

func TestRunRejectsUnknownFlag(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"-bogus"}, &out)
	assert.Error(t, err)
}

func TestPrintReport(t *testing.T) {
	tests := []struct {
		name   string
		report services.IngestReport
		want   []string
	}{
		{
			name:   "skipped",
			report: services.IngestReport{Skipped: true},
			want:   []string{"up to date"},
		},
		{
			name: "full run with drops",
			report: services.IngestReport{
				Mode:       "full",
				TotalRows:  40,
				Added:      40,
				UnknownMol: 3,
				Duration:   1500 * time.Millisecond,
				Manifest: domain.IngestManifest{
					RunID:          "run-1",
					FilesProcessed: 2,
					RowsRead:       50,
					RowsDropped:    10,
					DropReasons:    map[string]int{"zero_units": 7, "total_row": 3},
				},
			},
			want: []string{"run-1 (full)", "2 processed", "50 read, 10 dropped", "3 drugs", "total_row", "zero_units"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			printReport(&out, tt.report)
			for _, s := range tt.want {
				assert.Contains(t, out.String(), s)
			}
		})
	}
}
