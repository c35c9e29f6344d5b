package hierarchy

import "log/slog"

// RawRow is one row as read from a source sheet. Cells excludes the label
// column and is aligned with the sheet header minus its first column.
type RawRow struct {
	Index int
	Label string
	Cells []string
}

// ClassifiedRow pairs a row with the role assigned by the classifier.
type ClassifiedRow struct {
	Role RowRole
	Row  RawRow
}

// State is the position of the filler within the hierarchy.
type State int

const (
	StateNoRegion State = iota
	StateInRegion
	StateInRegionDistrict
)

func (s State) String() string {
	switch s {
	case StateInRegion:
		return "InRegion"
	case StateInRegionDistrict:
		return "InRegionDistrict"
	default:
		return "NoRegion"
	}
}

// Context is the hierarchy in effect for a data row. Empty fields are absent.
type Context struct {
	Region   string
	District string
}

// FilledRow is a data row stamped with the context active when it was read.
type FilledRow struct {
	Context Context
	Role    RowRole
	Row     RawRow
}

// Orphan reports whether the row was read before any region row.
func (f FilledRow) Orphan() bool {
	return f.Context.Region == ""
}

// Transition applies one classified row to the current state and context.
// It returns the next state and context and whether the row is emitted as a
// data row.
func Transition(state State, ctx Context, role RowRole, label string) (State, Context, bool) {
	switch role {
	case RoleRegion:
		return StateInRegion, Context{Region: label}, false
	case RoleDistrict:
		ctx.District = label
		if state == StateNoRegion {
			return StateNoRegion, ctx, false
		}
		return StateInRegionDistrict, ctx, false
	case RoleProduct, RoleTherapeuticClass:
		return state, ctx, true
	default:
		return state, ctx, false
	}
}

// FillStatistics mirrors the counters tracked by a fill pass.
type FillStatistics struct {
	TotalRows     int
	EmittedRows   int
	DroppedRows   int
	OrphanRows    int
	RegionsSeen   int
	DistrictsSeen int
}

// Filler walks classified rows in order, propagating region and district
// context onto data rows. Input order matters; rows must not be shuffled.
type Filler struct {
	logger *slog.Logger
}

// NewFiller creates a filler. A nil logger falls back to slog.Default.
func NewFiller(logger *slog.Logger) *Filler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Filler{logger: logger}
}

// Fill returns the data rows with their context.
func (f *Filler) Fill(rows []ClassifiedRow) []FilledRow {
	out, _ := f.FillWithStats(rows)
	return out
}

// FillWithStats fills rows and reports counters for the pass.
func (f *Filler) FillWithStats(rows []ClassifiedRow) ([]FilledRow, FillStatistics) {
	stats := FillStatistics{TotalRows: len(rows)}
	out := make([]FilledRow, 0, len(rows))

	state := StateNoRegion
	var ctx Context
	for _, cr := range rows {
		label := NormalizeLabel(cr.Row.Label)
		switch cr.Role {
		case RoleRegion:
			stats.RegionsSeen++
		case RoleDistrict:
			stats.DistrictsSeen++
		case RoleIgnorable:
			stats.DroppedRows++
		}

		var emit bool
		state, ctx, emit = Transition(state, ctx, cr.Role, label)
		if !emit {
			continue
		}

		row := cr.Row
		row.Label = label
		filled := FilledRow{Context: ctx, Role: cr.Role, Row: row}
		if filled.Orphan() {
			stats.OrphanRows++
			f.logger.Debug("data row before any region",
				slog.Int("row", cr.Row.Index),
				slog.String("label", label))
		}
		out = append(out, filled)
		stats.EmittedRows++
	}
	return out, stats
}

// ClassifyRows applies c to each row label in order.
func ClassifyRows(c *Classifier, rows []RawRow) []ClassifiedRow {
	out := make([]ClassifiedRow, len(rows))
	for i, r := range rows {
		out[i] = ClassifiedRow{Role: c.Classify(r.Label), Row: r}
	}
	return out
}
