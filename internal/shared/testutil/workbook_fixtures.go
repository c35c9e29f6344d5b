package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

// SheetFixture is the content of one worksheet; the first row is the header.
type SheetFixture struct {
	Name string
	Rows [][]any
}

// WriteWorkbook saves an .xlsx file at path with the given sheets, creating
// parent directories as needed.
func WriteWorkbook(t *testing.T, path string, sheets ...SheetFixture) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create fixture dir: %v", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, sh := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sh.Name); err != nil {
				t.Fatalf("failed to rename sheet: %v", err)
			}
		} else if _, err := f.NewSheet(sh.Name); err != nil {
			t.Fatalf("failed to add sheet %q: %v", sh.Name, err)
		}
		for r, row := range sh.Rows {
			for c, val := range row {
				if val == nil {
					continue
				}
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					t.Fatalf("bad cell coordinates: %v", err)
				}
				if err := f.SetCellValue(sh.Name, cell, val); err != nil {
					t.Fatalf("failed to set %s: %v", cell, err)
				}
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		t.Fatalf("failed to save workbook: %v", err)
	}
	return path
}

// BrickSheet returns a "Bricks" sheet with quarter headers and the given
// label rows. Each row is a label followed by one value per quarter.
func BrickSheet(quarters []string, rows ...[]any) SheetFixture {
	header := make([]any, 0, len(quarters)+1)
	header = append(header, "Label")
	for _, q := range quarters {
		header = append(header, q+" Units")
	}
	all := make([][]any, 0, len(rows)+1)
	all = append(all, header)
	all = append(all, rows...)
	return SheetFixture{Name: "Bricks", Rows: all}
}

// SofiaWorkbook writes the minimal single-region, single-product workbook
// used by end-to-end tests: Region SOFIA / AERIUS 5MG with Q1 2024=10 and
// Q2 2024=15.
func SofiaWorkbook(t *testing.T, path string) string {
	t.Helper()
	return WriteWorkbook(t, path, BrickSheet(
		[]string{"Q1 2024", "Q2 2024"},
		[]any{"Region SOFIA"},
		[]any{"AERIUS 5MG", 10, 15},
	))
}
