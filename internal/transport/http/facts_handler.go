package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	apierrors "pharmapulse/internal/errors"
	"pharmapulse/internal/exporter"
	"pharmapulse/internal/middleware"
	"pharmapulse/pkg/contracts/domain"
)

// FactsHandler serves the fact table and its descriptive views
type FactsHandler struct {
	service      EngineServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	queries      queryDecoder
}

// NewFactsHandler creates a new facts handler
func NewFactsHandler(service EngineServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler, validator *middleware.ValidationMiddleware) *FactsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FactsHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "facts_handler")),
		errorHandler: errorHandler,
		queries:      queryDecoder{validator: validator, errorHandler: errorHandler},
	}
}

// GetFacts handles GET /api/facts
func (h *FactsHandler) GetFacts(w http.ResponseWriter, r *http.Request) {
	var q factsQuery
	if !h.queries.decode(w, r, &q) {
		return
	}

	table, err := h.service.GetFactTable(r.Context(), q.toFilter())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if q.Period != "" {
		table = table.Where(func(row domain.FactRow) bool { return row.Period == q.Period })
	}

	rows := table.Rows()
	total := len(rows)
	if q.Limit > 0 && q.Limit < total {
		rows = rows[:q.Limit]
	}

	h.logger.DebugContext(r.Context(), "serving facts",
		slog.Int("total", total),
		slog.Int("returned", len(rows)),
		slog.String("format", q.Format))

	if q.Format == "csv" {
		startCSV(w, csvFilename("facts", q.Region, q.Source, q.Period))
		if err := exporter.WriteFacts(w, rows); err != nil {
			h.logger.ErrorContext(r.Context(), "failed to stream facts csv",
				slog.String("error", err.Error()))
		}
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   rows,
		"count":  len(rows),
		"total":  total,
	})
}

// GetPeriods handles GET /api/periods
func (h *FactsHandler) GetPeriods(w http.ResponseWriter, r *http.Request) {
	var q filterQuery
	if !h.queries.decode(w, r, &q) {
		return
	}

	periods, err := h.service.Periods(r.Context(), q.toFilter())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	respondList(w, r, periods, len(periods))
}

// GetSummary handles GET /api/summary
func (h *FactsHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	var q filterQuery
	if !h.queries.decode(w, r, &q) {
		return
	}

	summary, err := h.service.Summary(r.Context(), q.toFilter())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	respondData(w, r, summary)
}

// GetAmbiguousClasses handles GET /api/classes/ambiguous
func (h *FactsHandler) GetAmbiguousClasses(w http.ResponseWriter, r *http.Request) {
	ambiguous, err := h.service.ClassAmbiguities(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	respondList(w, r, ambiguous, len(ambiguous))
}
