package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pharmapulse/internal/hierarchy"
	"pharmapulse/pkg/contracts/domain"
)

// MoleculeLookup maps a drug name to its active molecule. Unknown drugs map
// to "".
type MoleculeLookup interface {
	Lookup(drug string) string
}

// Batch is the input for one source file: either its parse result or the
// error that prevented parsing.
type Batch struct {
	Path   string
	Source string
	Team   string
	Result *FileResult
	Err    error
}

// Assembler converts melted batches into a deduplicated fact table.
type Assembler struct {
	molecules MoleculeLookup
	logger    *slog.Logger
}

// NewAssembler creates an assembler. molecules may be nil.
func NewAssembler(molecules MoleculeLookup, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{molecules: molecules, logger: logger}
}

// CoerceUnits parses a cell as a non-negative number. Thousands separators
// and surrounding whitespace are ignored.
func CoerceUnits(value string) (float64, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(value), ",", "")
	clean = strings.ReplaceAll(clean, " ", "")
	if clean == "" || strings.EqualFold(clean, "nan") {
		return 0, fmt.Errorf("empty value")
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", value)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("negative value: %q", value)
	}
	f, _ := d.Float64()
	return f, nil
}

// AssembleBatch stamps one file's melted rows with source and team, coerces
// units and rejects rows without a region. Regions are stored without their
// "Region " prefix. It does not deduplicate.
func (a *Assembler) AssembleBatch(ctx context.Context, result *FileResult, source, team string) ([]domain.FactRow, domain.FileOutcome) {
	outcome := domain.FileOutcome{
		Path:        result.Path,
		Sheet:       result.Sheet,
		Source:      source,
		Team:        team,
		PeriodMode:  string(result.Mode),
		Periods:     result.Periods,
		HasDistrict: result.HasDistrict,
	}

	rows := make([]domain.FactRow, 0, len(result.Rows))
	for _, m := range result.Rows {
		if m.Context.Region == "" {
			outcome.Rejected++
			continue
		}
		units, err := CoerceUnits(m.Value)
		if err != nil {
			outcome.Dropped++
			continue
		}

		row := domain.FactRow{
			Region:     domain.DisplayRegion(m.Context.Region),
			EntityName: m.EntityName,
			EntityKind: entityKind(m.Role),
			Source:     source,
			Team:       team,
			Period:     m.Period,
			Units:      units,
		}
		if result.HasDistrict {
			row.District = m.Context.District
		}
		if a.molecules != nil {
			row.Molecule = a.molecules.Lookup(row.EntityName)
		}
		rows = append(rows, row)
	}
	outcome.Rows = len(rows)

	if outcome.Dropped > 0 || outcome.Rejected > 0 {
		a.logger.WarnContext(ctx, "rows removed during assembly",
			slog.String("file", filepath.Base(result.Path)),
			slog.Int("numeric_coercion_failures", outcome.Dropped),
			slog.Int("missing_region", outcome.Rejected),
			slog.Int("kept", outcome.Rows))
	}
	return rows, outcome
}

// Assemble builds a fact table from all batches. Per-file failures are
// recorded in the manifest and do not abort the run; ErrNoValidData is
// returned only when no file produced a row.
func (a *Assembler) Assemble(ctx context.Context, batches []Batch) (*domain.FactTable, domain.IngestManifest, error) {
	manifest := domain.IngestManifest{
		RunID:       uuid.New().String(),
		StartedAt:   time.Now(),
		DropReasons: make(map[string]int),
	}

	var all []domain.FactRow
	for _, b := range batches {
		if b.Err != nil || b.Result == nil {
			err := b.Err
			if err == nil {
				err = NewEmptyFileError(b.Path)
			}
			manifest.FilesFailed++
			manifest.Files = append(manifest.Files, domain.FileOutcome{
				Path: b.Path, Source: b.Source, Team: b.Team, Failed: true, Error: err.Error(),
			})
			if t := GetErrorType(err); t != "" {
				manifest.DropReasons[string(t)]++
			}
			a.logger.WarnContext(ctx, "source file failed",
				slog.String("file", filepath.Base(b.Path)),
				slog.String("error", err.Error()))
			continue
		}

		rows, outcome := a.AssembleBatch(ctx, b.Result, b.Source, b.Team)
		manifest.RowsRead += len(b.Result.Rows)
		manifest.RowsDropped += outcome.Dropped
		manifest.RowsRejected += outcome.Rejected
		if outcome.Dropped > 0 {
			manifest.DropReasons[string(ErrorTypeNumericCoercionFailure)] += outcome.Dropped
		}
		if outcome.Rejected > 0 {
			manifest.DropReasons[string(ErrorTypeMissingHierarchyContext)] += outcome.Rejected
		}
		if b.Result.Ambiguous > 0 {
			manifest.DropReasons[string(ErrorTypeClassificationAmbiguity)] += b.Result.Ambiguous
		}

		if len(rows) == 0 {
			outcome.Failed = true
			outcome.Error = NewEmptyFileError(b.Path).Error()
			manifest.FilesFailed++
			manifest.DropReasons[string(ErrorTypeEmptyFile)]++
		} else {
			manifest.FilesProcessed++
			all = append(all, rows...)
		}
		manifest.Files = append(manifest.Files, outcome)
	}

	deduped, dups := Dedup(all)
	manifest.Duplicates = dups
	if dups > 0 {
		manifest.DropReasons[string(ErrorTypeDuplicateKeyCollision)] = dups
	}
	manifest.CompletedAt = time.Now()

	a.logger.InfoContext(ctx, "fact table assembled",
		slog.String("run_id", manifest.RunID),
		slog.Int("files_processed", manifest.FilesProcessed),
		slog.Int("files_failed", manifest.FilesFailed),
		slog.Int("rows_read", manifest.RowsRead),
		slog.Int("rows_dropped", manifest.RowsDropped),
		slog.Int("rows_rejected", manifest.RowsRejected),
		slog.Int("duplicates", dups),
		slog.Int("facts", len(deduped)))

	if len(deduped) == 0 {
		return domain.NewFactTable(nil), manifest, ErrNoValidData
	}
	return domain.NewFactTable(deduped), manifest, nil
}

// Dedup removes rows sharing a natural key, keeping the last occurrence in the
// position it occupied. It returns the number of rows removed.
func Dedup(rows []domain.FactRow) ([]domain.FactRow, int) {
	last := make(map[domain.FactKey]int, len(rows))
	for i, r := range rows {
		last[r.Key()] = i
	}
	out := make([]domain.FactRow, 0, len(last))
	for i, r := range rows {
		if last[r.Key()] == i {
			out = append(out, r)
		}
	}
	return out, len(rows) - len(out)
}

// Merge appends incoming to existing and deduplicates, so that re-ingested
// rows replace earlier ones.
func Merge(existing, incoming []domain.FactRow) ([]domain.FactRow, int) {
	all := make([]domain.FactRow, 0, len(existing)+len(incoming))
	all = append(all, existing...)
	all = append(all, incoming...)
	return Dedup(all)
}

func entityKind(role hierarchy.RowRole) domain.EntityKind {
	if role == hierarchy.RoleTherapeuticClass {
		return domain.EntityKindTherapeuticClass
	}
	return domain.EntityKindProduct
}
