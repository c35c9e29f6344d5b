package dataprocessing

import (
	"context"
	"log/slog"
	"path/filepath"

	"pharmapulse/internal/hierarchy"
	"pharmapulse/internal/periods"
)

// headerScanRows bounds the search for the period header row.
const headerScanRows = 10

// FileResult is the melted content of one source file together with the
// tags that assembly stamps on it.
type FileResult struct {
	Path        string
	Sheet       string
	Source      string
	Team        string
	Mode        periods.DetectionMode
	Periods     []string
	Rows        []periods.MeltedRow
	HasDistrict bool
	Ambiguous   int
	Fill        hierarchy.FillStatistics
}

// Parser turns one workbook into melted rows: read, classify, fill, reshape.
type Parser struct {
	reader     *WorkbookReader
	classifier *hierarchy.Classifier
	filler     *hierarchy.Filler
	detector   *periods.Detector
	logger     *slog.Logger
}

// NewParser wires a parser. Nil components are replaced with defaults.
func NewParser(reader *WorkbookReader, classifier *hierarchy.Classifier, detector *periods.Detector, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	if reader == nil {
		reader = NewWorkbookReader(logger)
	}
	if classifier == nil {
		classifier = hierarchy.NewClassifier()
	}
	if detector == nil {
		detector = periods.NewDetector(periods.DefaultDetectorOptions(), logger)
	}
	return &Parser{
		reader:     reader,
		classifier: classifier,
		filler:     hierarchy.NewFiller(logger),
		detector:   detector,
		logger:     logger,
	}
}

// ParseFile reads the workbook at path and returns its melted rows. Source and
// Team are left for the caller to set.
func (p *Parser) ParseFile(ctx context.Context, path string) (*FileResult, error) {
	sheet, err := p.reader.ReadSheet(path)
	if err != nil {
		return nil, NewUnreadableFileError(path, err)
	}
	return p.ParseSheet(ctx, path, sheet)
}

// ParseSheet processes already loaded sheet content.
func (p *Parser) ParseSheet(ctx context.Context, path string, sheet *Sheet) (*FileResult, error) {
	result := &FileResult{Path: path, Sheet: sheet.Name}

	headerIdx, cols, mode := p.findHeader(sheet.Rows)
	if mode == periods.ModeNone {
		return nil, NewPeriodDetectionError(path)
	}
	result.Mode = mode
	for _, c := range cols {
		result.Periods = append(result.Periods, c.Period)
	}

	var raw []hierarchy.RawRow
	for i := headerIdx + 1; i < len(sheet.Rows); i++ {
		cells := sheet.Rows[i]
		if len(cells) == 0 {
			continue
		}
		raw = append(raw, hierarchy.RawRow{Index: i + 1, Label: cells[0], Cells: cells[1:]})
	}

	classified := make([]hierarchy.ClassifiedRow, len(raw))
	for i, r := range raw {
		c := p.classifier.Explain(r.Label)
		if c.Ambiguous() {
			result.Ambiguous++
			p.logger.DebugContext(ctx, "ambiguous row label treated as ignorable",
				slog.String("file", filepath.Base(path)),
				slog.Int("row", r.Index),
				slog.String("label", r.Label))
		}
		classified[i] = hierarchy.ClassifiedRow{Role: c.Role, Row: r}
	}

	filled, stats := p.filler.FillWithStats(classified)
	result.Fill = stats
	result.HasDistrict = stats.DistrictsSeen > 0
	result.Rows = periods.Melt(filled, cols)

	p.logger.InfoContext(ctx, "parsed source file",
		slog.String("file", filepath.Base(path)),
		slog.String("sheet", sheet.Name),
		slog.String("period_mode", string(mode)),
		slog.Int("periods", len(cols)),
		slog.Int("data_rows", stats.EmittedRows),
		slog.Int("regions", stats.RegionsSeen),
		slog.Int("districts", stats.DistrictsSeen),
		slog.Int("melted_rows", len(result.Rows)))

	return result, nil
}

// findHeader locates the header row: the first of the leading rows whose
// cells after the label column contain quarter or month headers. When none
// does, the first non-empty row is used with whatever the detector falls back
// to.
func (p *Parser) findHeader(rows [][]string) (int, []periods.Column, periods.DetectionMode) {
	first := -1
	for i := 0; i < len(rows) && i < headerScanRows; i++ {
		if len(rows[i]) < 2 {
			continue
		}
		if first < 0 {
			first = i
		}
		if hasRecognizedPeriod(rows[i][1:]) {
			cols, mode := p.detector.Detect(rows[i][1:])
			if mode == periods.ModeQuarter || mode == periods.ModeMonth {
				return i, cols, mode
			}
		}
	}
	if first < 0 {
		return 0, nil, periods.ModeNone
	}
	cols, mode := p.detector.Detect(rows[first][1:])
	return first, cols, mode
}

func hasRecognizedPeriod(cells []string) bool {
	for _, c := range cells {
		if periods.Parse(c).Known() {
			return true
		}
	}
	return false
}
