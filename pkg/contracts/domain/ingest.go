package domain

import "time"

// IngestManifest summarizes one ingestion run. It is returned to callers in
// place of raw errors.
type IngestManifest struct {
	RunID          string         `json:"run_id"`
	StartedAt      time.Time      `json:"started_at"`
	CompletedAt    time.Time      `json:"completed_at"`
	RowsRead       int            `json:"rows_read"`
	RowsDropped    int            `json:"rows_dropped"`
	RowsRejected   int            `json:"rows_rejected"`
	Duplicates     int            `json:"duplicates"`
	FilesProcessed int            `json:"files_processed"`
	FilesFailed    int            `json:"files_failed"`
	Files          []FileOutcome  `json:"files"`
	DropReasons    map[string]int `json:"drop_reasons,omitempty"`
}

// FileOutcome records the result of ingesting a single source file.
type FileOutcome struct {
	Path        string   `json:"path"`
	Sheet       string   `json:"sheet,omitempty"`
	Source      string   `json:"source"`
	Team        string   `json:"team"`
	Rows        int      `json:"rows"`
	Dropped     int      `json:"dropped"`
	Rejected    int      `json:"rejected"`
	PeriodMode  string   `json:"period_mode,omitempty"`
	Periods     []string `json:"periods,omitempty"`
	Failed      bool     `json:"failed"`
	Error       string   `json:"error,omitempty"`
	HasDistrict bool     `json:"has_district"`
}

// Summary aggregates a fact table for reporting.
type Summary struct {
	Rows        int                `json:"rows"`
	Periods     []string           `json:"periods"`
	Regions     int                `json:"regions"`
	Entities    int                `json:"entities"`
	UnitsBySrc  map[string]float64 `json:"units_by_source"`
	UnitsByTeam map[string]float64 `json:"units_by_team"`
	PeriodStats []PeriodStats      `json:"period_stats"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// PeriodStats describes the distribution of product units within a period.
type PeriodStats struct {
	Period string  `json:"period"`
	Total  float64 `json:"total"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P90    float64 `json:"p90"`
	Count  int     `json:"count"`
}
