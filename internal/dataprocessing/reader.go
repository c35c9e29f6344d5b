package dataprocessing

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"
)

// Sheet is the cell text of one worksheet.
type Sheet struct {
	Name string
	Rows [][]string
}

// WorkbookReader loads the preferred worksheet of .xlsx and legacy .xls
// exports.
type WorkbookReader struct {
	// PreferredMarkers are matched case-insensitively against sheet names. The
	// first sheet containing any marker is read; otherwise the first sheet.
	PreferredMarkers []string
	logger           *slog.Logger
}

// NewWorkbookReader creates a reader preferring brick-level sheets.
func NewWorkbookReader(logger *slog.Logger, markers ...string) *WorkbookReader {
	if logger == nil {
		logger = slog.Default()
	}
	if len(markers) == 0 {
		markers = []string{"Bricks"}
	}
	return &WorkbookReader{PreferredMarkers: markers, logger: logger}
}

// IsSpreadsheet reports whether path has a supported extension and is not an
// office lock file.
func IsSpreadsheet(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, "~$") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".xlsx", ".xlsm", ".xls":
		return true
	}
	return false
}

// ReadSheet reads the preferred worksheet of the workbook at path.
func (r *WorkbookReader) ReadSheet(path string) (*Sheet, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xls":
		return r.readXLS(path)
	case ".xlsx", ".xlsm":
		return r.readXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported spreadsheet extension %q", filepath.Ext(path))
	}
}

// ChooseSheet returns the index of the preferred sheet among names.
func (r *WorkbookReader) ChooseSheet(names []string) int {
	for i, name := range names {
		lower := strings.ToLower(name)
		for _, m := range r.PreferredMarkers {
			if strings.Contains(lower, strings.ToLower(m)) {
				return i
			}
		}
	}
	return 0
}

func (r *WorkbookReader) readXLSX(path string) (*Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	names := f.GetSheetList()
	if len(names) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	name := names[r.ChooseSheet(names)]

	rows, err := f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", name, err)
	}

	r.logger.Debug("read worksheet",
		slog.String("file", filepath.Base(path)),
		slog.String("sheet", name),
		slog.Int("sheets", len(names)),
		slog.Int("rows", len(rows)))

	return &Sheet{Name: name, Rows: rows}, nil
}

func (r *WorkbookReader) readXLS(path string) (*Sheet, error) {
	wb, err := xls.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open xls file: %w", err)
	}

	count := wb.GetNumberSheets()
	if count == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	names := make([]string, 0, count)
	for i := 0; i < count; i++ {
		sh, err := wb.GetSheet(i)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %d: %w", i, err)
		}
		names = append(names, sh.GetName())
	}
	idx := r.ChooseSheet(names)

	sheet, err := wb.GetSheet(idx)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", names[idx], err)
	}

	var rows [][]string
	for _, row := range sheet.GetRows() {
		cols := row.GetCols()
		cells := make([]string, 0, len(cols))
		for _, col := range cols {
			cells = append(cells, col.GetString())
		}
		rows = append(rows, cells)
	}

	r.logger.Debug("read legacy worksheet",
		slog.String("file", filepath.Base(path)),
		slog.String("sheet", names[idx]),
		slog.Int("rows", len(rows)))

	return &Sheet{Name: names[idx], Rows: rows}, nil
}
