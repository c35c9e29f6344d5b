// Package dataprocessing turns brick-level sales workbooks into the canonical
// long-format fact table.
//
// # Architecture
//
// The package is organized into four components:
//
// 1. WorkbookReader: loads the preferred sheet from .xlsx (excelize) or .xls files
// 2. Parser: classifies rows, fills the hierarchy and melts period columns
// 3. Assembler: stamps Source and Team, coerces units, rejects orphan rows and deduplicates
// 4. Summarizer: per-period distributions and per-source totals
//
// Pipeline runs the parser over many files concurrently and assembles the
// results in input order.
//
// # Usage
//
//	parser := dataprocessing.NewParser(nil, nil, nil, logger)
//	pipeline := dataprocessing.NewPipeline(parser, dataprocessing.NewAssembler(nil, logger), nil, 4, logger)
//	table, manifest, err := pipeline.Run(ctx, files)
//
// # Data Flow
//
//	Workbook → Sheet → RawRow → ClassifiedRow → FilledRow → MeltedRow → FactRow
//
// # Error Handling
//
// Row and file problems are recovered locally and counted in the
// IngestManifest. A file without period columns or without any valid row is
// reported as failed while the rest of the batch continues. ErrNoValidData is
// returned only when nothing survives.
package dataprocessing
