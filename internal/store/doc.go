// Package store persists the fact table.
//
// MasterStore owns the row-oriented master CSV, the source of truth. Every
// write goes through a single writer: an in-process mutex plus an OS file lock
// (gofrs/flock) beside the master, so two ingestion runs cannot interleave their
// read-modify-write cycles. Files are replaced atomically.
//
// SQLStore mirrors the master into SQLite (modernc.org/sqlite) or PostgreSQL
// (lib/pq) through sqlx. ParquetCache is a columnar copy used only for fast
// cold starts; it is always rebuilt from the master and never written to
// directly by ingestion.
package store
