package periods

import (
	"log/slog"
	"strings"

	"pharmapulse/internal/hierarchy"
)

// DetectionMode records which rule selected the period columns of a sheet.
type DetectionMode string

const (
	ModeQuarter  DetectionMode = "quarter"
	ModeMonth    DetectionMode = "month"
	ModeFallback DetectionMode = "fallback"
	ModeNone     DetectionMode = "none"
)

// Column is a period-bearing column. Index addresses RawRow.Cells.
type Column struct {
	Index  int
	Header string
	Period string
}

// DetectorOptions tunes period column detection.
type DetectorOptions struct {
	// Years whitelists the years accepted in quarter headers.
	Years []int
	// FallbackColumns is the number of columns after the label column treated
	// as periods when no header matches.
	FallbackColumns int
}

// DefaultDetectorOptions returns the settings used by the brick exports.
func DefaultDetectorOptions() DetectorOptions {
	return DetectorOptions{
		Years:           []int{2023, 2024, 2025, 2026},
		FallbackColumns: 12,
	}
}

// Detector finds period columns in a header row.
type Detector struct {
	opts   DetectorOptions
	years  map[int]bool
	logger *slog.Logger
}

// NewDetector creates a detector. A nil logger falls back to slog.Default.
func NewDetector(opts DetectorOptions, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	years := make(map[int]bool, len(opts.Years))
	for _, y := range opts.Years {
		years[y] = true
	}
	return &Detector{opts: opts, years: years, logger: logger}
}

// Detect returns the period columns of header, which excludes the label
// column. Quarter headers win over month headers; when neither is present
// the first FallbackColumns columns are used and a warning is logged. An
// empty result means no period columns could be found.
func (d *Detector) Detect(header []string) ([]Column, DetectionMode) {
	var quarters, months []Column
	for i, h := range header {
		label := CleanLabel(h)
		if label == "" {
			continue
		}
		p := Parse(label)
		switch {
		case p.Granularity == Quarter && d.years[p.Key.Year]:
			quarters = append(quarters, Column{Index: i, Header: h, Period: label})
		case p.Granularity == Month:
			months = append(months, Column{Index: i, Header: h, Period: label})
		}
	}
	if len(quarters) > 0 {
		return quarters, ModeQuarter
	}
	if len(months) > 0 {
		return months, ModeMonth
	}

	n := d.opts.FallbackColumns
	if n > len(header) {
		n = len(header)
	}
	cols := make([]Column, 0, n)
	for i := 0; i < n; i++ {
		label := CleanLabel(header[i])
		if label == "" {
			continue
		}
		cols = append(cols, Column{Index: i, Header: header[i], Period: label})
	}
	if len(cols) == 0 {
		return nil, ModeNone
	}
	d.logger.Warn("no quarter or month headers found, using leading columns as periods",
		slog.Int("columns", len(cols)),
		slog.Any("headers", header[:n]))
	return cols, ModeFallback
}

// MeltedRow is one (entity, period, value) triple with the hierarchy context
// of the row it came from. Value is the raw cell text; numeric coercion is
// left to assembly.
type MeltedRow struct {
	Context    hierarchy.Context
	Role       hierarchy.RowRole
	RowIndex   int
	EntityName string
	Period     string
	Value      string
}

// Melt expands each row into one MeltedRow per period column, preserving row
// order and then column order. Missing cells melt to an empty value.
func Melt(rows []hierarchy.FilledRow, cols []Column) []MeltedRow {
	out := make([]MeltedRow, 0, len(rows)*len(cols))
	for _, r := range rows {
		for _, c := range cols {
			var v string
			if c.Index < len(r.Row.Cells) {
				v = strings.TrimSpace(r.Row.Cells[c.Index])
			}
			out = append(out, MeltedRow{
				Context:    r.Context,
				Role:       r.Role,
				RowIndex:   r.Row.Index,
				EntityName: r.Row.Label,
				Period:     c.Period,
				Value:      v,
			})
		}
	}
	return out
}
