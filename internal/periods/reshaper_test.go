package periods

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmapulse/internal/hierarchy"
)

func TestDetectQuarterColumns(t *testing.T) {
	d := NewDetector(DefaultDetectorOptions(), nil)
	header := []string{"Q1 2024 Units", "Q2 2024 Units", "Jan 2024", "Q1 2019", "Comment"}

	cols, mode := d.Detect(header)

	assert.Equal(t, ModeQuarter, mode)
	require.Len(t, cols, 2)
	assert.Equal(t, Column{Index: 0, Header: "Q1 2024 Units", Period: "Q1 2024"}, cols[0])
	assert.Equal(t, "Q2 2024", cols[1].Period)
}

func TestDetectMonthColumns(t *testing.T) {
	d := NewDetector(DefaultDetectorOptions(), nil)
	cols, mode := d.Detect([]string{"Jan 2024", "Feb 2024", "Notes"})

	assert.Equal(t, ModeMonth, mode)
	require.Len(t, cols, 2)
	assert.Equal(t, 1, cols[1].Index)
}

func TestDetectFallback(t *testing.T) {
	d := NewDetector(DetectorOptions{FallbackColumns: 2}, nil)
	cols, mode := d.Detect([]string{"P1", "P2", "P3"})

	assert.Equal(t, ModeFallback, mode)
	require.Len(t, cols, 2)
	assert.Equal(t, "P2", cols[1].Period)
}

func TestDetectNone(t *testing.T) {
	d := NewDetector(DefaultDetectorOptions(), nil)
	cols, mode := d.Detect([]string{"", " "})

	assert.Equal(t, ModeNone, mode)
	assert.Empty(t, cols)
}

func TestMeltRoundTrip(t *testing.T) {
	const entities, periodCount = 4, 3

	cols := make([]Column, periodCount)
	for j := range cols {
		cols[j] = Column{Index: j, Period: fmt.Sprintf("Q%d 2024", j+1)}
	}
	grid := make(map[string]map[string]string)
	var rows []hierarchy.FilledRow
	for i := 0; i < entities; i++ {
		name := fmt.Sprintf("PRODUCT %c", 'A'+i)
		grid[name] = map[string]string{}
		cells := make([]string, periodCount)
		for j := range cells {
			cells[j] = fmt.Sprintf("%d", (i+1)*10+j)
			grid[name][cols[j].Period] = cells[j]
		}
		rows = append(rows, hierarchy.FilledRow{
			Context: hierarchy.Context{Region: "Region A"},
			Role:    hierarchy.RoleProduct,
			Row:     hierarchy.RawRow{Index: i, Label: name, Cells: cells},
		})
	}

	melted := Melt(rows, cols)
	require.Len(t, melted, entities*periodCount)

	pivot := make(map[string]map[string]string)
	for _, m := range melted {
		if pivot[m.EntityName] == nil {
			pivot[m.EntityName] = map[string]string{}
		}
		pivot[m.EntityName][m.Period] = m.Value
	}
	assert.Equal(t, grid, pivot)
}

func TestMeltShortRow(t *testing.T) {
	rows := []hierarchy.FilledRow{{
		Context: hierarchy.Context{Region: "Region A"},
		Role:    hierarchy.RoleProduct,
		Row:     hierarchy.RawRow{Label: "P1", Cells: []string{" 5 "}},
	}}
	melted := Melt(rows, []Column{{Index: 0, Period: "Q1 2024"}, {Index: 3, Period: "Q2 2024"}})

	require.Len(t, melted, 2)
	assert.Equal(t, "5", melted[0].Value)
	assert.Equal(t, "", melted[1].Value)
	assert.Equal(t, "Region A", melted[1].Context.Region)
}
