package exporter

import (
	"strconv"

	"pharmapulse/pkg/contracts/domain"
)

// formatUnits keeps full precision so a master file round-trips exactly.
func formatUnits(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// formatFloat formats a derived metric with two decimals.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

// formatOptional renders an undefined metric as an empty cell.
func formatOptional(v domain.OptionalFloat) string {
	if !v.Valid {
		return ""
	}
	return formatFloat(v.Value)
}
