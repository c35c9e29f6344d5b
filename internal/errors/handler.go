package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"

	"pharmapulse/internal/dataprocessing"
	"pharmapulse/internal/infrastructure"
	"pharmapulse/internal/metrics"
	"pharmapulse/internal/services"
)

// Common error types following RFC 7807
const (
	TypeValidation   = "/errors/validation"
	TypeNotFound     = "/errors/not-found"
	TypeRateLimit    = "/errors/rate-limit"
	TypeInternal     = "/errors/internal"
	TypeServiceDown  = "/errors/service-unavailable"
	TypeTimeout      = "/errors/timeout"
	TypeConflict     = "/errors/conflict"
	TypeMethodDenied = "/errors/method-not-allowed"
)

// Domain-specific error types
const (
	TypeMetricDisabled     = "/errors/metric/disabled"
	TypeMetricUndefined    = "/errors/metric/undefined"
	TypePeriodNotFound     = "/errors/period/not-found"
	TypePeriodInsufficient = "/errors/period/insufficient"
	TypeNoSourceFiles      = "/errors/ingest/no-sources"
	TypeNoValidData        = "/errors/ingest/no-valid-data"
	TypeIngestRunning      = "/errors/ingest/already-running"
	TypePersistence        = "/errors/ingest/persistence"
)

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	traceID := requestTraceID(r)
	problem := h.ErrorToProblem(err, r)
	problem.WithExtension("trace_id", traceID)

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	if h.includeStack && problem.Status >= http.StatusInternalServerError {
		problem.WithExtension("stack", getStackTrace())
	}

	problem.Write(w)
}

// ErrorToProblem converts an error to RFC 7807 Problem Details
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	path := r.URL.Path

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return h.apiErrorToProblem(apiErr, r)
	}

	var undefined *metrics.UndefinedMetricError
	if errors.As(err, &undefined) {
		return NewProblemDetails(http.StatusUnprocessableEntity, TypeMetricUndefined,
			"Metric Undefined", err.Error(), path).
			WithExtension("metric", undefined.Metric).
			WithExtension("entity", undefined.Entity).
			WithExtension("reason", string(undefined.Reason))
	}

	var ingestErr *dataprocessing.IngestError
	if errors.As(err, &ingestErr) && ingestErr.Type == dataprocessing.ErrorTypePersistenceFailure {
		return NewProblemDetails(http.StatusInternalServerError, TypePersistence,
			"Persistence Failure", "The fact table could not be written", path).
			WithExtension("target", ingestErr.File)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return NewProblemDetails(http.StatusGatewayTimeout, TypeTimeout,
			"Request Timeout", "The request took too long to process and was cancelled", path)

	case errors.Is(err, metrics.ErrMetricDisabled):
		return NewProblemDetails(http.StatusNotFound, TypeMetricDisabled,
			"Metric Disabled", err.Error(), path)

	case errors.Is(err, metrics.ErrUndefinedMetric):
		return NewProblemDetails(http.StatusUnprocessableEntity, TypeMetricUndefined,
			"Metric Undefined", err.Error(), path).
			WithExtension("reason", string(metrics.ReasonOf(err)))

	case errors.Is(err, services.ErrPeriodNotFound):
		return NewProblemDetails(http.StatusNotFound, TypePeriodNotFound,
			"Period Not Found", err.Error(), path)

	case errors.Is(err, services.ErrNoSourceFiles):
		return NewProblemDetails(http.StatusNotFound, TypeNoSourceFiles,
			"No Source Files", err.Error(), path)

	case errors.Is(err, services.ErrInsufficientPeriods):
		return NewProblemDetails(http.StatusUnprocessableEntity, TypePeriodInsufficient,
			"Insufficient Periods", err.Error(), path)

	case errors.Is(err, dataprocessing.ErrNoValidData):
		return NewProblemDetails(http.StatusUnprocessableEntity, TypeNoValidData,
			"No Valid Data", err.Error(), path)

	case errors.Is(err, services.ErrSamePeriod),
		errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrEntityRequired):
		return NewProblemDetails(http.StatusBadRequest, TypeValidation,
			"Invalid Request", err.Error(), path)

	case errors.Is(err, services.ErrIngestRunning):
		return NewProblemDetails(http.StatusConflict, TypeIngestRunning,
			"Ingestion Running", err.Error(), path)

	case errors.Is(err, services.ErrServiceUnavailable):
		return NewProblemDetails(http.StatusServiceUnavailable, TypeServiceDown,
			"Service Unavailable", err.Error(), path).
			WithExtension("retry_after", 30)

	default:
		return NewProblemDetails(http.StatusInternalServerError, TypeInternal,
			"Internal Server Error",
			"An unexpected error occurred while processing your request", path)
	}
}

// apiErrorToProblem converts APIError to ProblemDetails
func (h *ErrorHandler) apiErrorToProblem(apiErr *APIError, r *http.Request) *ProblemDetails {
	problem := NewProblemDetails(
		apiErr.StatusCode,
		problemType(apiErr.ErrorCode),
		http.StatusText(apiErr.StatusCode),
		apiErr.Message,
		r.URL.Path,
	).WithExtension("error_code", apiErr.ErrorCode)

	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}
	return problem
}

// HandlePanic recovers from panics and returns RFC 7807 error
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	traceID := requestTraceID(r)

	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred",
		r.URL.Path,
	).WithExtension("trace_id", traceID)

	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
		problem.WithExtension("stack", getStackTrace())
	}

	problem.Write(w)
}

// NotFound returns a standard 404 error
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusNotFound,
		TypeNotFound,
		"Not Found",
		"The requested resource was not found",
		r.URL.Path,
	).WithExtension("trace_id", requestTraceID(r))

	problem.Write(w)
}

// MethodNotAllowed returns a standard 405 error
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusMethodNotAllowed,
		TypeMethodDenied,
		"Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method),
		r.URL.Path,
	).WithExtension("trace_id", requestTraceID(r))

	problem.Write(w)
}

// Recoverer turns a panic in a downstream handler into a 500 problem.
// http.ErrAbortHandler is re-raised so the server can abort the response.
func (h *ErrorHandler) Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				h.HandlePanic(w, r, rvr)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func requestTraceID(r *http.Request) string {
	if id := infrastructure.GetTraceID(r.Context()); id != "" {
		return id
	}
	return middleware.GetReqID(r.Context())
}

// getStackTrace returns the current stack trace
func getStackTrace() string {
	buf := make([]byte, 1024*8)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
