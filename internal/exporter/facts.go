package exporter

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"pharmapulse/pkg/contracts/domain"
)

// FactHeaders is the column layout of the master CSV.
var FactHeaders = []string{
	"Region", "District", "Drug_Name", "Entity_Kind", "Source", "Team", "Quarter", "Units", "Molecule",
}

// FactToCSVRow converts a fact to a master CSV row.
func FactToCSVRow(r domain.FactRow) []string {
	return []string{
		r.Region,
		r.District,
		r.EntityName,
		string(r.EntityKind),
		r.Source,
		r.Team,
		r.Period,
		formatUnits(r.Units),
		r.Molecule,
	}
}

// FactRecords converts facts to CSV records in table order.
func FactRecords(rows []domain.FactRow) [][]string {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, FactToCSVRow(r))
	}
	return records
}

// ExportFacts writes rows to filePath. The file is replaced atomically.
func (w *CSVWriter) ExportFacts(filePath string, rows []domain.FactRow) error {
	return w.WriteCSV(filePath, WriteOptions{
		Headers: FactHeaders,
		Records: FactRecords(rows),
		Atomic:  true,
	})
}

// RequiredFactColumns must be present in every master CSV header.
var RequiredFactColumns = []string{"Region", "Drug_Name", "Source", "Quarter", "Units"}

// MissingFactColumns returns the required columns absent from header.
func MissingFactColumns(header []string) []string {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[strings.TrimSpace(strings.TrimPrefix(h, string(utf8BOM)))] = true
	}
	var missing []string
	for _, c := range RequiredFactColumns {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	return missing
}

// ReadFacts decodes a master CSV. Columns are matched by header name, so
// files without District or Entity_Kind columns load with those fields
// empty (kind defaults to Product). A leading UTF-8 BOM is tolerated.
func ReadFacts(in io.Reader) ([]domain.FactRow, error) {
	data, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	if missing := MissingFactColumns(header); len(missing) > 0 {
		return nil, fmt.Errorf("missing required column %q", missing[0])
	}

	get := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var rows []domain.FactRow
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		units, err := strconv.ParseFloat(get(rec, "Units"), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid units %q: %w", line, get(rec, "Units"), err)
		}
		kind := domain.EntityKind(get(rec, "Entity_Kind"))
		if !kind.IsValid() {
			kind = domain.EntityKindProduct
		}

		rows = append(rows, domain.FactRow{
			Region:     domain.DisplayRegion(get(rec, "Region")),
			District:   get(rec, "District"),
			EntityName: get(rec, "Drug_Name"),
			EntityKind: kind,
			Source:     get(rec, "Source"),
			Team:       get(rec, "Team"),
			Period:     get(rec, "Quarter"),
			Units:      units,
			Molecule:   get(rec, "Molecule"),
		})
	}
	return rows, nil
}
