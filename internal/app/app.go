package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"salesforecast/internal/config"
	apierrors "salesforecast/internal/errors"
	"salesforecast/internal/infrastructure"
	customMiddleware "salesforecast/internal/middleware"
	"salesforecast/internal/model"
	"salesforecast/internal/services"
	"salesforecast/internal/session"
	handlers "salesforecast/internal/transport/http"
	"salesforecast/pkg/contracts"
)

const (
	AppName = "Sales Forecast"

	// APIBasePath is the mount point of the versioned API
	APIBasePath = "/api/v1"

	// uploadOverhead covers multipart framing and form fields around the file
	uploadOverhead = 1 << 20
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.Metrics
	Models        *model.Registry
	Sessions      *session.Store
	Services      *ServiceContainer

	mu            sync.Mutex
	listener      net.Listener
	stopJanitor   context.CancelFunc
	janitorDone   chan struct{}
	serverStopped chan struct{}
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Forecast *services.ForecastService
	Health   *services.HealthService
}

// NewApplication loads the configuration, initializes the process logger and
// builds the application
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return New(cfg, logger)
}

// New builds the application from an explicit configuration
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.String("model_path", cfg.Model.Path))

	otelProviders, err := infrastructure.InitializeOTel(cfg.Telemetry, contracts.Version, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	metrics, err := infrastructure.NewMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	app.setupRouter()
	app.createServer()
	return app, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	a.Models = model.NewRegistryWithLoader(a.Config.Model.Path, a.loadModel, a.Logger)

	store, err := session.NewStore(a.Config.Session.Capacity, a.Config.Session.TTL)
	if err != nil {
		return fmt.Errorf("failed to create session store: %w", err)
	}
	a.Sessions = store

	a.Services = &ServiceContainer{
		Forecast: services.NewForecastService(a.Config.Forecast, a.Models, a.Sessions, a.Logger,
			services.WithTracer(a.OTelProviders.Tracer),
			services.WithMetrics(a.Metrics),
		),
		Health: services.NewHealthService(a.Models, a.Sessions, a.Logger),
	}
	return nil
}

// loadModel reads the artifact and counts the attempt
func (a *Application) loadModel(path string) (model.Model, error) {
	m, err := model.LoadArtifact(path)
	a.Metrics.RecordModelLoad(context.Background(), err)
	return m, err
}

// warmUpModel loads the model before the first request. A failure is logged
// and the server keeps running; uploads answer 503 until the artifact loads.
func (a *Application) warmUpModel(ctx context.Context) {
	if !a.Config.Model.WarmUp {
		return
	}
	if _, err := a.Models.Get(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Model warm-up failed",
			slog.String("path", a.Config.Model.Path),
			slog.String("error", err.Error()))
	}
}

// setupRouter builds the router. Middleware order:
// RequestID → RealIP → OTel → Logger → Recoverer → security → CORS → rate limit
func (a *Application) setupRouter() {
	r := chi.NewRouter()
	errorHandler := apierrors.NewErrorHandler(a.Logger)

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	// Scrape endpoint outside the middleware group
	metricsHandler := handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP, a.Sessions)
	r.Mount("/metrics", metricsHandler.Routes())

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics).Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(apierrors.RecoveryMiddleware(errorHandler))
		r.Use(customMiddleware.DefaultSecureHeaders().Handler)
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

		healthHandler := handlers.NewHealthHandler(a.Services.Health, a.Logger)
		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/health/ready", healthHandler.ReadinessCheck)
		r.Get("/health/live", healthHandler.LivenessCheck)
		r.Get("/version", healthHandler.Version)

		a.setupAPIRoutes(r, errorHandler)
	})

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router, errorHandler *apierrors.ErrorHandler) {
	r.Route(APIBasePath, func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(customMiddleware.MaxBodySize(a.Config.Forecast.MaxUploadBytes + uploadOverhead))
		if a.Config.Server.RequestTimeout > 0 {
			r.Use(middleware.Timeout(a.Config.Server.RequestTimeout))
		}

		healthHandler := handlers.NewHealthHandler(a.Services.Health, a.Logger)
		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/version", healthHandler.Version)

		forecastHandler := handlers.NewForecastHandler(
			a.Services.Forecast,
			customMiddleware.NewValidator(),
			a.Logger,
			errorHandler,
			APIBasePath+"/forecasts",
		)
		r.Mount("/forecasts", forecastHandler.Routes())
	})
}

func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			customMiddleware.RequestIDHeader,
		},
		ExposedHeaders: []string{
			customMiddleware.RequestIDHeader,
			"Content-Disposition",
			"Location",
		},
		MaxAge: 300,
	}
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           a.Config.Server.Addr(),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(a.Logger.Handler(), slog.LevelWarn),
	}
}

// Addr returns the bound listen address once started
func (a *Application) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return a.Server.Addr
	}
	return a.listener.Addr().String()
}

// Start binds the listen address, starts the session janitor and serves in
// the background. cancel is called if the server stops unexpectedly.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}

	a.mu.Lock()
	a.listener = ln
	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	a.stopJanitor = stopJanitor
	a.janitorDone = make(chan struct{})
	a.serverStopped = make(chan struct{})
	a.mu.Unlock()

	go func() {
		defer close(a.janitorDone)
		a.Sessions.RunJanitor(janitorCtx, a.Config.Session.CleanupInterval)
	}()

	go func() {
		defer close(a.serverStopped)
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.warmUpModel(ctx)

	a.Logger.InfoContext(ctx, "Application started",
		slog.String("address", ln.Addr().String()),
		slog.Bool("model_loaded", a.Models.Loaded()),
		slog.Any("horizons", a.Config.Forecast.Horizons),
		slog.String("level", a.Config.Logging.Level))
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	a.mu.Lock()
	stopJanitor, janitorDone, serverStopped := a.stopJanitor, a.janitorDone, a.serverStopped
	a.mu.Unlock()
	if serverStopped != nil {
		<-serverStopped
	}
	if stopJanitor != nil {
		stopJanitor()
		<-janitorDone
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	stats := a.Sessions.Stats()
	a.Logger.InfoContext(ctx, "Application shutdown complete",
		slog.Int("sessions", stats.Size),
		slog.Uint64("session_hits", stats.Hits),
		slog.Uint64("session_misses", stats.Misses))
	return errors.Join(errs...)
}

// Run runs the application until SIGINT or SIGTERM
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case sig := <-sigChan:
		a.Logger.InfoContext(ctx, "Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		a.Logger.WarnContext(ctx, "Server stopped unexpectedly")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout+5*time.Second)
	defer stopCancel()
	return a.Stop(stopCtx)
}
