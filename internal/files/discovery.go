package files

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"pharmapulse/internal/dataprocessing"
)

// FileInfo represents information about a discovered file
type FileInfo struct {
	Path    string
	Name    string
	Team    string
	Size    int64
	ModTime time.Time
}

// Discovery finds source spreadsheets under the data directory.
type Discovery struct {
	dataDir     string
	teams       []string
	defaultTeam string
	logger      *slog.Logger
}

// NewDiscovery creates a discovery rooted at dataDir. Files outside any team
// folder are tagged with defaultTeam.
func NewDiscovery(dataDir string, teams []string, defaultTeam string, logger *slog.Logger) *Discovery {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discovery{dataDir: dataDir, teams: teams, defaultTeam: defaultTeam, logger: logger}
}

// FindSpreadsheets walks the data directory and returns every spreadsheet,
// sorted by path so ingestion order is stable. A missing data directory
// yields no files.
func (d *Discovery) FindSpreadsheets() ([]FileInfo, error) {
	var files []FileInfo
	err := filepath.WalkDir(d.dataDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == d.dataDir && os.IsNotExist(err) {
				return fs.SkipAll
			}
			return err
		}
		if entry.IsDir() || !dataprocessing.IsSpreadsheet(path) {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			d.logger.Warn("Skipping unreadable file", slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}

		rel, relErr := filepath.Rel(d.dataDir, path)
		if relErr != nil {
			rel = path
		}
		files = append(files, FileInfo{
			Path:    path,
			Name:    entry.Name(),
			Team:    dataprocessing.TeamFromPath(rel, d.teams, d.defaultTeam),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", d.dataDir, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// SourceFiles converts discovered files into pipeline inputs.
func SourceFiles(files []FileInfo) []dataprocessing.SourceFile {
	out := make([]dataprocessing.SourceFile, len(files))
	for i, f := range files {
		out[i] = dataprocessing.SourceFile{Path: f.Path, Team: f.Team}
	}
	return out
}

// GetLatestFile returns the most recently modified file from a list
func GetLatestFile(files []FileInfo) (FileInfo, bool) {
	if len(files) == 0 {
		return FileInfo{}, false
	}
	latest := files[0]
	for _, file := range files[1:] {
		if file.ModTime.After(latest.ModTime) {
			latest = file
		}
	}
	return latest, true
}

// NewestModTime returns the newest modification time among files, or the
// zero time for an empty list.
func NewestModTime(files []FileInfo) time.Time {
	latest, ok := GetLatestFile(files)
	if !ok {
		return time.Time{}
	}
	return latest.ModTime
}

// ModifiedSince returns the files modified strictly after t.
func ModifiedSince(files []FileInfo, t time.Time) []FileInfo {
	var out []FileInfo
	for _, f := range files {
		if f.ModTime.After(t) {
			out = append(out, f)
		}
	}
	return out
}
