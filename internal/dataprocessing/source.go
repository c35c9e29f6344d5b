package dataprocessing

import (
	"path/filepath"
	"strings"
)

// sourceSuffixes are stripped, in order, from a file stem to obtain the
// category identifier. " Total Q" must be tried before " Total".
var sourceSuffixes = []string{" Total Q", " Total", " total", "_melted"}

// SourceName derives the Source category from a file path, e.g.
// "Team 1/ANTIHISTAMINES Total Q.xlsx" -> "ANTIHISTAMINES".
func SourceName(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for _, suffix := range sourceSuffixes {
		stem = strings.ReplaceAll(stem, suffix, "")
	}
	return strings.TrimSpace(stem)
}

// TeamFromPath returns the first path element that names one of teams, or
// fallback if none does.
func TeamFromPath(path string, teams []string, fallback string) string {
	dir := filepath.Dir(path)
	for dir != "." && dir != string(filepath.Separator) && dir != "" {
		base := filepath.Base(dir)
		for _, t := range teams {
			if strings.EqualFold(base, t) {
				return t
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return fallback
}
