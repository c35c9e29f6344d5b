package domain

import (
	"encoding/json"
	"strings"
)

// EntityKind distinguishes measure-bearing entities in the fact table.
// Therapeutic class rows are kept as facts; they are the market total
// used as the denominator for share and evolution index.
type EntityKind string

const (
	EntityKindProduct          EntityKind = "Product"
	EntityKindTherapeuticClass EntityKind = "TherapeuticClass"
)

// IsValid reports whether k is one of the known kinds.
func (k EntityKind) IsValid() bool {
	return k == EntityKindProduct || k == EntityKindTherapeuticClass
}

// FactRow is the canonical long-format unit produced by ingestion.
//
// Region is never empty and carries the display form, without the "Region "
// prefix of the source exports. District is empty only for layouts that do not expose
// district granularity. Units is always a non-negative number; rows that fail
// numeric coercion are dropped before they become a FactRow.
type FactRow struct {
	Region     string     `json:"region" csv:"Region" db:"region" parquet:"region" validate:"required"`
	District   string     `json:"district,omitempty" csv:"District" db:"district" parquet:"district"`
	EntityName string     `json:"entity_name" csv:"Drug_Name" db:"entity_name" parquet:"entity_name" validate:"required"`
	EntityKind EntityKind `json:"entity_kind" csv:"Entity_Kind" db:"entity_kind" parquet:"entity_kind"`
	Source     string     `json:"source" csv:"Source" db:"source" parquet:"source"`
	Team       string     `json:"team" csv:"Team" db:"team" parquet:"team"`
	Period     string     `json:"period" csv:"Quarter" db:"period" parquet:"period" validate:"required"`
	Units      float64    `json:"units" csv:"Units" db:"units" parquet:"units" validate:"min=0"`
	Molecule   string     `json:"molecule,omitempty" csv:"Molecule" db:"molecule" parquet:"molecule"`
}

// FactKey is the composite natural key used for deduplication.
type FactKey struct {
	Region     string
	EntityName string
	Source     string
	Period     string
	District   string
	Team       string
}

// Key returns the natural key of the row.
func (r FactRow) Key() FactKey {
	return FactKey{
		Region:     r.Region,
		EntityName: r.EntityName,
		Source:     r.Source,
		Period:     r.Period,
		District:   r.District,
		Team:       r.Team,
	}
}

// HasDistrict reports whether the row carries district granularity.
func (r FactRow) HasDistrict() bool {
	return r.District != ""
}

// IsClass reports whether the row is a therapeutic class aggregate.
func (r FactRow) IsClass() bool {
	return r.EntityKind == EntityKindTherapeuticClass
}

// DisplayRegion strips the "Region " prefix used by the source exports.
func DisplayRegion(region string) string {
	return strings.TrimSpace(strings.TrimPrefix(region, "Region "))
}

// FactFilter selects a view of a FactTable. Empty fields match everything.
type FactFilter struct {
	Region   string `json:"region,omitempty"`
	District string `json:"district,omitempty"`
	Team     string `json:"team,omitempty"`
	Source   string `json:"source,omitempty"`
}

// Matches reports whether row passes the filter. Region is compared on its
// display form so that both "Region SOFIA" and "SOFIA" select the same rows.
func (f FactFilter) Matches(row FactRow) bool {
	if f.Region != "" && DisplayRegion(row.Region) != DisplayRegion(f.Region) {
		return false
	}
	if f.District != "" && row.District != f.District {
		return false
	}
	if f.Team != "" && row.Team != f.Team {
		return false
	}
	if f.Source != "" && row.Source != f.Source {
		return false
	}
	return true
}

// FactTable is an immutable snapshot of facts. Queries never modify it;
// a new snapshot is produced by re-running assembly.
type FactTable struct {
	rows []FactRow
}

// NewFactTable takes ownership of rows.
func NewFactTable(rows []FactRow) *FactTable {
	return &FactTable{rows: rows}
}

// Len returns the number of rows.
func (t *FactTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Rows returns a copy of the table rows.
func (t *FactTable) Rows() []FactRow {
	if t == nil {
		return nil
	}
	out := make([]FactRow, len(t.rows))
	copy(out, t.rows)
	return out
}

// Each calls fn for every row in order without copying.
func (t *FactTable) Each(fn func(FactRow)) {
	if t == nil {
		return
	}
	for _, r := range t.rows {
		fn(r)
	}
}

// Filter returns a new table containing only rows matched by f.
func (t *FactTable) Filter(f FactFilter) *FactTable {
	if t == nil {
		return NewFactTable(nil)
	}
	out := make([]FactRow, 0, len(t.rows))
	for _, r := range t.rows {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	return NewFactTable(out)
}

// Where returns a new table containing rows for which keep returns true.
func (t *FactTable) Where(keep func(FactRow) bool) *FactTable {
	if t == nil {
		return NewFactTable(nil)
	}
	out := make([]FactRow, 0, len(t.rows))
	for _, r := range t.rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return NewFactTable(out)
}

// MarshalJSON renders the table as a plain array of rows.
func (t *FactTable) MarshalJSON() ([]byte, error) {
	if t == nil || t.rows == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t.rows)
}
