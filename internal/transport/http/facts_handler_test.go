package http

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmapulse/internal/metrics"
)

func TestFactsHandler_GetFacts(t *testing.T) {
	r := newTestRouter(t, metrics.DefaultConfig())

	tests := []struct {
		name      string
		target    string
		wantCount float64
		wantTotal float64
	}{
		{"all rows", "/api/facts", 10, 10},
		{"region display name", "/api/facts?region=B", 4, 4},
		{"full region name", "/api/facts?region=Region+A", 6, 6},
		{"period filter", "/api/facts?period=Q1+2024", 5, 5},
		{"limited", "/api/facts?limit=3", 3, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, r, tt.target)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			body := decodeData(t, rec)
			assert.Equal(t, tt.wantCount, body["count"])
			assert.Equal(t, tt.wantTotal, body["total"])
		})
	}
}

func TestFactsHandler_GetFactsCSV(t *testing.T) {
	r := newTestRouter(t, metrics.DefaultConfig())

	rec := get(t, r, "/api/facts?format=csv&region=B")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "facts_B.csv")

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Len(t, lines, 5)

	rec = get(t, r, "/api/facts?format=xml")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFactsHandler_PeriodsSummaryClasses(t *testing.T) {
	r := newTestRouter(t, metrics.DefaultConfig())

	rec := get(t, r, "/api/periods")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{"Q1 2024", "Q2 2024"}, decodeData(t, rec)["data"])

	rec = get(t, r, "/api/summary?team=Team+1")
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decodeData(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, float64(10), summary["rows"])

	rec = get(t, r, "/api/classes/ambiguous")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decodeData(t, rec)["count"])
}
