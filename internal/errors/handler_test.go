package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmapulse/internal/dataprocessing"
	"pharmapulse/internal/infrastructure"
	"pharmapulse/internal/metrics"
	"pharmapulse/internal/services"
	"pharmapulse/internal/shared/testutil"
)

func TestErrorHandler_ErrorToProblem(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, TypeTimeout},
		{"metric disabled", fmt.Errorf("churn: %w", metrics.ErrMetricDisabled), http.StatusNotFound, TypeMetricDisabled},
		{"period not found", fmt.Errorf("Q9 2030: %w", services.ErrPeriodNotFound), http.StatusNotFound, TypePeriodNotFound},
		{"no sources", services.ErrNoSourceFiles, http.StatusNotFound, TypeNoSourceFiles},
		{"insufficient periods", services.ErrInsufficientPeriods, http.StatusUnprocessableEntity, TypePeriodInsufficient},
		{"no valid data", dataprocessing.ErrNoValidData, http.StatusUnprocessableEntity, TypeNoValidData},
		{"same period", services.ErrSamePeriod, http.StatusBadRequest, TypeValidation},
		{"entity required", services.ErrEntityRequired, http.StatusBadRequest, TypeValidation},
		{"ingest running", services.ErrIngestRunning, http.StatusConflict, TypeIngestRunning},
		{"unavailable", services.ErrServiceUnavailable, http.StatusServiceUnavailable, TypeServiceDown},
		{"persistence", dataprocessing.NewPersistenceError("master.csv", assert.AnError), http.StatusInternalServerError, TypePersistence},
		{"api error", ErrValidation("top", "must be an integer"), http.StatusBadRequest, TypeValidation},
		{"api not found", NotFoundError("entity"), http.StatusNotFound, TypeNotFound},
		{"api conflict", New(http.StatusConflict, CodeConflict, "busy"), http.StatusConflict, TypeConflict},
		{"unknown", assert.AnError, http.StatusInternalServerError, TypeInternal},
	}

	h := NewErrorHandler(nil, false)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/metrics/growth", nil)
			problem := h.ErrorToProblem(tt.err, r)
			assert.Equal(t, tt.wantStatus, problem.Status)
			assert.Equal(t, tt.wantType, problem.Type)
			assert.Equal(t, "/api/metrics/growth", problem.Instance)
		})
	}
}

func TestErrorHandler_UndefinedMetricCarriesReason(t *testing.T) {
	h := NewErrorHandler(nil, false)
	r := httptest.NewRequest(http.MethodGet, "/api/metrics/evolution-index", nil)

	err := &metrics.UndefinedMetricError{
		Metric: "evolution_index",
		Entity: "AERIUS 5MG",
		Reason: metrics.ReasonNoClass,
	}
	problem := h.ErrorToProblem(fmt.Errorf("query: %w", err), r)

	assert.Equal(t, http.StatusUnprocessableEntity, problem.Status)
	assert.Equal(t, "no_matching_class", problem.Extensions["reason"])
	assert.Equal(t, "AERIUS 5MG", problem.Extensions["entity"])
}

func TestErrorHandler_HandleError(t *testing.T) {
	logger, records := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, true)

	r := httptest.NewRequest(http.MethodGet, "/api/metrics/market-share", nil)
	r = r.WithContext(infrastructure.WithTraceID(r.Context(), "trace-123"))
	w := httptest.NewRecorder()

	h.HandleError(w, r, services.ErrEntityRequired)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, TypeValidation, body["type"])
	assert.Equal(t, "trace-123", body["trace_id"])
	assert.NotContains(t, body, "stack")
	testutil.AssertLogContains(t, records, slog.LevelWarn, "request failed")

	// nil errors write nothing
	w = httptest.NewRecorder()
	h.HandleError(w, r, nil)
	assert.Zero(t, w.Body.Len())
}

func TestRecoverer(t *testing.T) {
	h := NewErrorHandler(nil, false)
	handler := h.Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/periods", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, ProblemContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), TypeInternal)
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestErrorHandler_NotFoundAndMethodNotAllowed(t *testing.T) {
	h := NewErrorHandler(nil, false)

	w := httptest.NewRecorder()
	h.NotFound(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	h.MethodNotAllowed(w, httptest.NewRequest(http.MethodDelete, "/api/periods", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Contains(t, w.Body.String(), "DELETE")
}
