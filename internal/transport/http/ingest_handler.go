package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "pharmapulse/internal/errors"
	"pharmapulse/internal/services"
)

// IngestHandler triggers ingestion of the team folders already on disk
type IngestHandler struct {
	service      IngestServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// IngestRequest is the optional body of POST /api/ingest/rebuild
type IngestRequest struct {
	Force bool `json:"force"`
	Merge bool `json:"merge"`
}

// NewIngestHandler creates a new ingest handler
func NewIngestHandler(service IngestServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *IngestHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "ingest_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the ingest routes
func (h *IngestHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/status", h.GetStatus)
	r.Post("/rebuild", h.Rebuild)
	r.Post("/cache", h.RebuildCache)

	return r
}

// GetStatus handles GET /api/ingest/status
func (h *IngestHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	fresh, err := h.service.IsFresh(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	respondData(w, r, map[string]bool{"fresh": fresh})
}

// Rebuild handles POST /api/ingest/rebuild. It rescans the data directory
// and runs synchronously; the run survives a client disconnect.
func (h *IngestHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := render.DecodeJSON(r.Body, &req); err != nil && err != io.EOF {
			h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
			return
		}
	}

	h.logger.InfoContext(r.Context(), "ingest requested",
		slog.Bool("force", req.Force),
		slog.Bool("merge", req.Merge))

	report, err := h.service.Run(context.WithoutCancel(r.Context()), services.IngestOptions{
		Force: req.Force,
		Merge: req.Merge,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	respondData(w, r, report)
}

// RebuildCache handles POST /api/ingest/cache
func (h *IngestHandler) RebuildCache(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.RebuildCache(context.WithoutCancel(r.Context()))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	respondData(w, r, map[string]int{"rows": rows})
}
