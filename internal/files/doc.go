// Package files locates source spreadsheets.
//
// Discovery walks the data directory, tags each spreadsheet with the team
// folder it lives in and reports modification times for cache freshness.
package files
