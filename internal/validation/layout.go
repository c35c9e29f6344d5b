// Package validation checks the on-disk layout the ingestion stack relies on:
// team folders, writable output directories and the master CSV header.
package validation

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pharmapulse/internal/config"
	"pharmapulse/internal/dataprocessing"
	"pharmapulse/internal/exporter"
)

// LayoutReport summarizes a layout check. Warnings never stop the server;
// callers decide whether they are fatal.
type LayoutReport struct {
	Spreadsheets map[string]int `json:"spreadsheets"`
	MasterExists bool           `json:"master_exists"`
	Warnings     []string       `json:"warnings,omitempty"`
}

// OK reports whether the check produced no warnings.
func (r LayoutReport) OK() bool {
	return len(r.Warnings) == 0
}

// Err joins the warnings into a single error, or returns nil.
func (r LayoutReport) Err() error {
	if r.OK() {
		return nil
	}
	return fmt.Errorf("layout check: %s", strings.Join(r.Warnings, "; "))
}

// FileValidator inspects files and directories, logging what it finds.
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{logger: logger.With(slog.String("component", "file_validator"))}
}

// CheckLayout validates every location in paths. Team folders and output
// directories must exist; the master, when present, must carry the
// required columns.
func (v *FileValidator) CheckLayout(paths *config.Paths) LayoutReport {
	report := LayoutReport{Spreadsheets: make(map[string]int, len(paths.TeamDirs))}

	for _, dir := range []string{paths.DataDir, paths.LogsDir, filepath.Dir(paths.MasterFile)} {
		if dir == "" || dir == "." {
			continue
		}
		if err := v.ValidateWritableDir(dir); err != nil {
			report.Warnings = append(report.Warnings, err.Error())
		}
	}

	teams := make([]string, 0, len(paths.TeamDirs))
	for team := range paths.TeamDirs {
		teams = append(teams, team)
	}
	sort.Strings(teams)
	for _, team := range teams {
		n, err := v.CountSpreadsheets(paths.TeamDirs[team])
		if err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("team folder %s: %v", team, err))
			continue
		}
		report.Spreadsheets[team] = n
	}

	if config.FileExists(paths.MasterFile) {
		report.MasterExists = true
		if err := v.ValidateMasterHeader(paths.MasterFile); err != nil {
			report.Warnings = append(report.Warnings, err.Error())
		}
	}
	return report
}

// CountSpreadsheets returns the number of spreadsheets directly or
// indirectly under dir. Temporary Excel lock files are not counted.
func (v *FileValidator) CountSpreadsheets(dir string) (int, error) {
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("%s does not exist", dir)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("%s is not a directory", dir)
	}

	count := 0
	err = filepath.WalkDir(dir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() && dataprocessing.IsSpreadsheet(path) {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	if count == 0 {
		v.logger.Info("No spreadsheets found", slog.String("directory", dir))
	} else {
		v.logger.Debug("Spreadsheets counted",
			slog.String("directory", dir),
			slog.Int("count", count))
	}
	return count, nil
}

// ValidateWritableDir ensures dir exists or can be created and accepts new
// files.
func (v *FileValidator) ValidateWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		v.logger.Error("Failed to create directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	probe, err := os.CreateTemp(dir, ".write_test_*")
	if err != nil {
		v.logger.Error("Directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("directory %s is not writable: %w", dir, err)
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)
	return nil
}

// ValidateMasterHeader checks that the master CSV at path is readable and
// that its header carries every required column. An empty file passes.
func (v *FileValidator) ValidateMasterHeader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("master %s is not readable: %w", path, err)
	}
	defer f.Close()

	header, err := csv.NewReader(f).Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("master %s has an unreadable header: %w", path, err)
	}

	if missing := exporter.MissingFactColumns(header); len(missing) > 0 {
		v.logger.Error("Master is missing required columns",
			slog.String("file", path),
			slog.Any("missing", missing))
		return fmt.Errorf("master %s is missing columns %s", path, strings.Join(missing, ", "))
	}
	return nil
}
