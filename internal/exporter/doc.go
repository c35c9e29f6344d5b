// Package exporter writes and reads the CSV artifacts of Pharma Pulse.
//
// CSVWriter handles file output with optional UTF-8 BOM for Excel and an
// atomic mode (temp file plus rename) used for the master fact file.
// ReadFacts and ExportFacts define the master CSV layout:
//
//	Region,District,Drug_Name,Entity_Kind,Source,Team,Quarter,Units,Molecule
//
// WriteLeaderboard, WriteBenchmark and WriteFacts render API results for
// CSV downloads.
package exporter
