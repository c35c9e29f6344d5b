package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"pharmapulse/internal/config"
	apierrors "pharmapulse/internal/errors"
	"pharmapulse/internal/infrastructure"
	"pharmapulse/internal/jobs"
	customMiddleware "pharmapulse/internal/middleware"
	"pharmapulse/internal/services"
	"pharmapulse/internal/validation"
	handlers "pharmapulse/internal/transport/http"
	ws "pharmapulse/internal/websocket"
	"pharmapulse/pkg/contracts"
)

const (
	VERSION = contracts.Version
	AppName = "Pharma Pulse"
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	WebSocketHub  *ws.Hub
	Core          *Core
	HealthService *services.HealthService
	Refresher     *jobs.Refresher
	ErrorHandler  *apierrors.ErrorHandler
}

// NewApplication wires every component for cfg. The WebSocket hub is
// started; the HTTP server and the refresher start with Start.
func NewApplication(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", VERSION))

	paths, err := config.GetPaths(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to get paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution(logger)

	otelProviders, err := infrastructure.InitializeOTel(cfg.Telemetry, VERSION, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: otelProviders,
		ErrorHandler:  apierrors.NewErrorHandler(logger, cfg.Logging.Development),
	}

	if err := app.initializeServices(); err != nil {
		app.release(context.Background())
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()
	return app, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	wsMetrics, err := ws.NewMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create websocket metrics: %w", err)
	}
	hub := ws.NewHub(a.Logger, wsMetrics)
	hub.Start()
	a.WebSocketHub = hub

	core, err := NewCore(context.Background(), a.Config, a.Paths, CoreOptions{
		Meter: a.OTelProviders.Meter,
		Hub:   hub,
	}, a.Logger)
	if err != nil {
		return err
	}
	a.Core = core

	a.HealthService = services.NewHealthService(VERSION, contracts.BuildTime, services.HealthDeps{
		DataDir:   a.Paths.DataDir,
		Master:    core.Master,
		Snapshots: core.Snapshots,
		Clients:   hub,
	}, a.Logger)

	if a.Config.Scheduler.Enabled {
		a.Refresher, err = jobs.NewRefresher(a.Config.Scheduler, core.Ingest, core.Snapshots, hub, a.Logger)
		if err != nil {
			return err
		}
	}
	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// RequestID and RealIP don't wrap the ResponseWriter, so the upgrade
	// route below still sees a hijackable connection
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	r.Handle("/ws", ws.NewHandler(a.WebSocketHub, a.Config.Security.AllowedOrigins, a.Logger))

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	r.Group(func(r chi.Router) {
		otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders)
		if err != nil {
			a.Logger.Error("Failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
		} else {
			r.Use(otelMiddleware.Handler)
		}

		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(a.ErrorHandler.Recoverer)
		r.Use(customMiddleware.SecurityHeaders)
		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(a.getCORSConfig()))
		}
		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}
		r.Use(customMiddleware.Compress(5))

		a.setupAPIRoutes(r)
	})

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	validation := customMiddleware.NewValidationMiddleware(a.Logger, a.ErrorHandler)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
		r.Mount("/health", healthHandler.Routes())
		r.Get("/version", healthHandler.Version)

		// queries answer from the in-memory snapshot
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(a.Config.Server.RequestTimeout))

			factsHandler := handlers.NewFactsHandler(a.Core.Engine, a.Logger, a.ErrorHandler, validation)
			r.Get("/facts", factsHandler.GetFacts)
			r.Get("/periods", factsHandler.GetPeriods)
			r.Get("/summary", factsHandler.GetSummary)
			r.Get("/classes/ambiguous", factsHandler.GetAmbiguousClasses)

			metricsHandler := handlers.NewMetricsHandler(a.Core.Engine, a.Logger, a.ErrorHandler, validation)
			r.Mount("/metrics", metricsHandler.Routes())
		})

		// ingestion runs detached from the request and has no timeout here
		r.Group(func(r chi.Router) {
			r.Use(validation.JSONBody)
			ingestHandler := handlers.NewIngestHandler(a.Core.Ingest, a.Logger, a.ErrorHandler)
			r.Mount("/ingest", ingestHandler.Routes())
		})
	})
}

// getCORSConfig returns the CORS configuration for the dashboard origins
func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	origins := a.Config.Security.AllowedOrigins
	if a.Config.Logging.Development {
		origins = append(origins,
			"http://localhost:3000",
			"http://127.0.0.1:3000",
		)
	}
	a.Logger.Info("CORS configured", slog.Any("allowed_origins", origins))

	return customMiddleware.CORSConfig{
		AllowedOrigins: origins,
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		AllowCredentials: false,
		MaxAge:           300,
		Logger:           a.Logger,
	}
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start warms the snapshot, starts the refresher and serves HTTP in the
// background. A listen failure calls cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", VERSION),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Startup health check warnings", slog.String("warnings", err.Error()))
	}

	// a missing master is not fatal; the first ingest creates it
	if snap, err := a.Core.Snapshots.Get(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Initial snapshot not built", slog.String("error", err.Error()))
	} else {
		a.Logger.InfoContext(ctx, "Initial snapshot built", slog.Int("rows", snap.Table.Len()))
	}

	if a.Refresher != nil {
		a.Refresher.Start()
	}

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	a.release(shutdownCtx)
	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// release stops background work and closes stores. Safe on a partially
// initialized application.
func (a *Application) release(ctx context.Context) {
	if a.Refresher != nil {
		if err := a.Refresher.Stop(ctx); err != nil {
			a.Logger.ErrorContext(ctx, "Refresher did not stop in time", slog.String("error", err.Error()))
		}
	}
	if a.WebSocketHub != nil {
		a.WebSocketHub.Stop()
	}
	if a.Core != nil {
		if err := a.Core.Close(); err != nil {
			a.Logger.ErrorContext(ctx, "Error closing store", slog.String("error", err.Error()))
		}
	}
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(ctx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
		a.Logger.InfoContext(ctx, "Server stopped unexpectedly")
	}

	return a.Stop(context.Background())
}

// performStartupHealthCheck checks the data layout and logs the
// spreadsheets waiting in each team folder.
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	report := validation.NewFileValidator(a.Logger).CheckLayout(a.Paths)

	for team, n := range report.Spreadsheets {
		a.Logger.InfoContext(ctx, "Team folder scanned",
			slog.String("team", team),
			slog.String("path", a.Paths.TeamDirs[team]),
			slog.Int("spreadsheets", n))
	}
	if !report.MasterExists {
		a.Logger.InfoContext(ctx, "Master file not found, run an ingest to create it",
			slog.String("path", a.Paths.MasterFile))
	}
	if err := report.Err(); err != nil {
		return err
	}

	a.Logger.InfoContext(ctx, "Startup health check passed")
	return nil
}
