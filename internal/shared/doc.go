// Package shared holds code used by several packages that belongs to none
// of them. Today that is only testutil: slog capture helpers and spreadsheet
// fixtures for tests.
package shared
