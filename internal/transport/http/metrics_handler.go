package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "pharmapulse/internal/errors"
	"pharmapulse/internal/exporter"
	"pharmapulse/internal/metrics"
	"pharmapulse/internal/middleware"
	"pharmapulse/internal/services"
)

// MetricsHandler serves the derived metrics computed over the fact snapshot
type MetricsHandler struct {
	service      EngineServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	queries      queryDecoder
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(service EngineServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler, validator *middleware.ValidationMiddleware) *MetricsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MetricsHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "metrics_handler")),
		errorHandler: errorHandler,
		queries:      queryDecoder{validator: validator, errorHandler: errorHandler},
	}
}

// Routes returns the metric routes
func (h *MetricsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/config", h.GetConfig)
	r.Get("/leaderboard", h.GetLeaderboard)
	r.Get("/market-share", h.GetMarketShare)
	r.Get("/evolution-index", h.GetEvolutionIndex)
	r.Get("/portfolio-ei", h.GetPortfolioEI)
	r.Get("/regional-benchmark", h.GetRegionalBenchmark)
	r.Get("/rank-shift", h.GetRankShift)
	r.Get("/churn", h.GetChurn)

	return r
}

// GetConfig handles GET /api/metrics/config
func (h *MetricsHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, h.service.Config())
}

// GetLeaderboard handles GET /api/metrics/leaderboard
func (h *MetricsHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	var q leaderboardQuery
	if !h.queries.decode(w, r, &q) {
		return
	}

	result, err := h.service.ComputeGrowthLeaderboard(r.Context(), services.LeaderboardRequest{
		Filter:    q.toFilter(),
		Entities:  q.Entities,
		Ref:       q.Ref,
		Base:      q.Base,
		Direction: metrics.Direction(q.Direction),
		Mode:      metrics.Mode(q.Mode),
		TopN:      q.TopN,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	if q.Format == "csv" {
		startCSV(w, csvFilename("leaderboard", string(result.Direction), result.Ref, result.Base))
		if err := exporter.WriteLeaderboard(w, result.Entries); err != nil {
			h.logger.ErrorContext(r.Context(), "failed to stream leaderboard csv",
				slog.String("error", err.Error()))
		}
		return
	}
	respondData(w, r, result)
}

// GetMarketShare handles GET /api/metrics/market-share
func (h *MetricsHandler) GetMarketShare(w http.ResponseWriter, r *http.Request) {
	var q marketShareQuery
	if !h.queries.decode(w, r, &q) {
		return
	}

	share, err := h.service.ComputeMarketShare(r.Context(), q.toFilter(), q.Entity, q.Period)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	respondData(w, r, share)
}

// GetEvolutionIndex handles GET /api/metrics/evolution-index
func (h *MetricsHandler) GetEvolutionIndex(w http.ResponseWriter, r *http.Request) {
	var q evolutionQuery
	if !h.queries.decode(w, r, &q) {
		return
	}

	row, err := h.service.ComputeEvolutionIndex(r.Context(), q.toFilter(), q.Entity, q.Ref, q.Base)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	respondData(w, r, row)
}

// GetPortfolioEI handles GET /api/metrics/portfolio-ei
func (h *MetricsHandler) GetPortfolioEI(w http.ResponseWriter, r *http.Request) {
	var q portfolioQuery
	if !h.queries.decode(w, r, &q) {
		return
	}

	result, err := h.service.ComputePortfolioEI(r.Context(), q.toFilter(), q.Entities, q.Ref, q.Base)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	respondData(w, r, result)
}

// GetRegionalBenchmark handles GET /api/metrics/regional-benchmark. With a
// region filter the districts of that region are ranked.
func (h *MetricsHandler) GetRegionalBenchmark(w http.ResponseWriter, r *http.Request) {
	var q portfolioQuery
	if !h.queries.decode(w, r, &q) {
		return
	}

	result, err := h.service.ComputeRegionalBenchmark(r.Context(), q.toFilter(), q.Entities, q.Ref, q.Base)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	if q.Format == "csv" {
		startCSV(w, csvFilename("benchmark", q.Region, result.Ref, result.Base))
		if err := exporter.WriteBenchmark(w, result.Entries); err != nil {
			h.logger.ErrorContext(r.Context(), "failed to stream benchmark csv",
				slog.String("error", err.Error()))
		}
		return
	}
	respondData(w, r, result)
}

// GetRankShift handles GET /api/metrics/rank-shift
func (h *MetricsHandler) GetRankShift(w http.ResponseWriter, r *http.Request) {
	var q evolutionQuery
	if !h.queries.decode(w, r, &q) {
		return
	}

	shifts, err := h.service.ComputeRankShift(r.Context(), q.toFilter(), q.Entity, q.Ref, q.Base)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	respondList(w, r, shifts, len(shifts))
}

// GetChurn handles GET /api/metrics/churn
func (h *MetricsHandler) GetChurn(w http.ResponseWriter, r *http.Request) {
	var q churnQuery
	if !h.queries.decode(w, r, &q) {
		return
	}

	result, err := h.service.ComputeChurn(r.Context(), q.toFilter(), q.Ref, q.Base, q.TopN)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	if q.Format == "csv" {
		startCSV(w, csvFilename("churn", result.Ref, result.Base))
		if err := exporter.WriteLeaderboard(w, result.Entries); err != nil {
			h.logger.ErrorContext(r.Context(), "failed to stream churn csv",
				slog.String("error", err.Error()))
		}
		return
	}
	respondData(w, r, result)
}
