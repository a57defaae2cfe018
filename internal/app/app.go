package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel/metric"

	"github.com/scscodes/flsd/internal/config"
	apierrors "github.com/scscodes/flsd/internal/errors"
	"github.com/scscodes/flsd/internal/files"
	"github.com/scscodes/flsd/internal/history"
	"github.com/scscodes/flsd/internal/infrastructure"
	customMiddleware "github.com/scscodes/flsd/internal/middleware"
	"github.com/scscodes/flsd/internal/pipeline"
	"github.com/scscodes/flsd/internal/services"
	handlers "github.com/scscodes/flsd/internal/transport/http"
	"github.com/scscodes/flsd/internal/validation"
)

// Application holds every long-lived component of one FLSD process.
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.PipelineMetrics
	History       *history.Store // nil when the ledger is disabled

	Dispatcher       *pipeline.Dispatcher
	Selector         *pipeline.Selector
	IngestService    *services.IngestService
	DataService      *services.DataService
	DashboardService *services.DashboardService
	HealthService    *services.HealthService

	errorHandler  *apierrors.ErrorHandler
	systemMetrics metric.Registration
	now           func() time.Time
}

// Option configures an Application.
type Option func(*Application)

// WithClock replaces the wall clock used by the pipeline and dashboard.
func WithClock(now func() time.Time) Option {
	return func(a *Application) { a.now = now }
}

// New builds an Application from cfg. The data layout is created if missing.
// Callers must Close the result.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Application, error) {
	if logger == nil {
		logger = infrastructure.NewDiscardLogger()
	}

	a := &Application{
		Config: cfg,
		Logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	paths, err := cfg.ResolvePaths()
	if err != nil {
		return nil, apierrors.NewConfigError("failed to resolve paths", err)
	}
	if err := paths.EnsureDirectories(logger); err != nil {
		return nil, apierrors.NewStorageError("failed to create data directories", err)
	}
	a.Paths = paths

	providers, err := infrastructure.InitializeOTel(infrastructure.NewOTelConfig(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	a.OTelProviders = providers

	metrics, err := infrastructure.CreatePipelineMetrics(providers.Meter)
	if err != nil {
		a.shutdownTelemetry(context.Background())
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}
	a.Metrics = metrics

	if a.systemMetrics, err = infrastructure.RegisterSystemMetrics(providers.Meter, time.Now()); err != nil {
		a.shutdownTelemetry(context.Background())
		return nil, fmt.Errorf("failed to register system metrics: %w", err)
	}

	if err := a.initializeServices(); err != nil {
		a.Close(context.Background())
		return nil, err
	}

	a.errorHandler = apierrors.NewErrorHandler(logger, cfg.Logging.Development)
	return a, nil
}

// initializeServices wires the pipeline and the services on top of it
func (a *Application) initializeServices() error {
	var reader services.HistoryReader
	dispatchOpts := []pipeline.DispatcherOption{
		pipeline.WithMetrics(a.Metrics),
		pipeline.WithTracer(a.OTelProviders.Tracer),
	}

	if a.Config.History.Enabled {
		store, err := history.Open(a.Config.HistoryPath(a.Paths), a.Logger)
		if err != nil {
			return apierrors.NewStorageError("failed to open ingestion history", err)
		}
		a.History = store
		reader = store
		dispatchOpts = append(dispatchOpts, pipeline.WithRecorder(store))
	}

	env := pipeline.Env{Logger: a.Logger, Now: a.now}
	publisher := pipeline.NewPublisher(a.Paths.ProcessedDir, env,
		pipeline.WithAtomicLatest(a.Config.Publish.AtomicLatest))

	a.Dispatcher = pipeline.NewDispatcher(env, publisher, dispatchOpts...)
	a.Selector = pipeline.NewSelector(a.Paths.DataDir, a.Dispatcher, a.Logger)

	uploads := files.NewManager(a.Paths, a.Logger)
	a.IngestService = services.NewIngestService(uploads, a.Dispatcher, a.Selector, a.Paths.RawDir, a.Logger)
	a.DataService = services.NewDataService(a.Paths, reader, a.Logger)
	a.DashboardService = services.NewDashboardService(a.Paths, a.Config.Dashboard.PreviewRows, a.now, a.Logger)
	a.HealthService = services.NewHealthService(a.Config.Telemetry.ServiceName, config.AppVersion, a.Paths, a.Logger)
	return nil
}

// APIRouter builds the upload and data API.
func (a *Application) APIRouter() http.Handler {
	r := chi.NewRouter()

	// RequestID → RealIP → CORS → OTel → Logger → Recoverer → SecurityHeaders → RateLimit → Timeout
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	// Preflight requests match no route, so CORS must run on the root mux
	if a.Config.Security.EnableCORS {
		r.Use(customMiddleware.CORS(a.getCORSConfig()))
	}

	r.Group(func(r chi.Router) {
		a.useCommon(r)

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
				a.errorHandler,
			).Handler)
		}

		if a.Config.Server.RequestTimeout > 0 {
			r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout, a.errorHandler))
		}

		r.Use(render.SetContentType(render.ContentTypeJSON))
		a.setupAPIRoutes(r)
	})

	// Prometheus exposition stays outside the instrumented group
	r.Handle("/metrics", handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP))

	r.NotFound(a.errorHandler.NotFound)
	r.MethodNotAllowed(a.errorHandler.MethodNotAllowed)
	return r
}

// setupAPIRoutes registers the JSON endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	upload := handlers.NewUploadHandler(
		a.IngestService,
		customMiddleware.NewValidator(a.Logger),
		a.Logger,
		a.errorHandler,
	)
	data := handlers.NewDataHandler(a.DataService, a.Logger, a.errorHandler)
	health := handlers.NewHealthHandler(a.HealthService)

	r.With(
		customMiddleware.MaxBodySize(a.Config.Server.MaxUploadBytes),
		customMiddleware.ContentTypeValidator(a.errorHandler, "multipart/form-data"),
	).Post("/upload/", upload.Upload)
	r.Post("/ingest/latest", upload.IngestLatest)
	r.Mount("/data", data.Routes())
	r.Get("/health", health.HealthCheck)
}

// DashboardRouter builds the HTML dashboard.
func (a *Application) DashboardRouter() (http.Handler, error) {
	dashboard, err := handlers.NewDashboardHandler(a.DashboardService, a.Logger, a.errorHandler)
	if err != nil {
		return nil, fmt.Errorf("failed to create dashboard handler: %w", err)
	}
	health := handlers.NewHealthHandler(a.HealthService)

	r := chi.NewRouter()
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	r.Group(func(r chi.Router) {
		a.useCommon(r)

		r.Get("/", dashboard.Index)
		r.Get("/type/{data_type}", dashboard.Type)
		r.Get("/export/latest.xlsx", dashboard.ExportLatest)
		r.Get("/health", health.HealthCheck)
	})

	r.NotFound(a.errorHandler.NotFound)
	r.MethodNotAllowed(a.errorHandler.MethodNotAllowed)
	return r, nil
}

// useCommon installs the middleware shared by both routers
func (a *Application) useCommon(r chi.Router) {
	r.Use(customMiddleware.NewTelemetry(a.OTelProviders.Tracer, a.Metrics).Handler)
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(a.errorHandler))
	r.Use(customMiddleware.SecurityHeaders)
}

// getCORSConfig maps the security section onto the CORS middleware
func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			customMiddleware.RequestIDHeader,
		},
		ExposedHeaders: []string{customMiddleware.RequestIDHeader},
		MaxAge:         300,
		Logger:         a.Logger,
	}
}

// APIServer returns the HTTP server for the upload API.
func (a *Application) APIServer() *http.Server {
	return a.newServer(a.Config.APIAddr(), a.APIRouter())
}

// DashboardServer returns the HTTP server for the dashboard.
func (a *Application) DashboardServer() (*http.Server, error) {
	router, err := a.DashboardRouter()
	if err != nil {
		return nil, err
	}
	return a.newServer(a.Config.DashboardAddr(), router), nil
}

func (a *Application) newServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:           addr,
		Handler:        handler,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(a.Logger.Handler(), slog.LevelError),
	}
}

// Nightly runs one selector pass over the raw directory.
func (a *Application) Nightly(ctx context.Context) (*pipeline.Outcome, error) {
	return a.IngestService.RunLatest(infrastructure.EnsureTraceID(ctx), pipeline.TriggerNightly)
}

// Process validates and dispatches one file. An empty label is inferred from
// the file name.
func (a *Application) Process(ctx context.Context, filePath, label string) (*pipeline.Result, error) {
	if err := validation.NewFileValidator(a.Logger).ValidateCSVFile(filePath); err != nil {
		return nil, apierrors.NewAppError(apierrors.ErrTypeValidation, "invalid input file", err).WithOp("process")
	}
	if label == "" {
		label = pipeline.InferDataType(filePath)
	}
	ctx = pipeline.WithTrigger(infrastructure.EnsureTraceID(ctx), pipeline.TriggerCLI)
	return a.Dispatcher.Dispatch(ctx, filePath, label)
}

// Close releases the ledger and flushes telemetry.
func (a *Application) Close(ctx context.Context) error {
	var errs []error

	if a.History != nil {
		if err := a.History.Close(); err != nil {
			errs = append(errs, fmt.Errorf("history close: %w", err))
		}
		a.History = nil
	}

	if err := a.shutdownTelemetry(ctx); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("application close errors: %v", errs)
	}
	return nil
}

func (a *Application) shutdownTelemetry(ctx context.Context) error {
	if a.systemMetrics != nil {
		_ = a.systemMetrics.Unregister()
		a.systemMetrics = nil
	}
	if a.OTelProviders == nil {
		return nil
	}
	err := a.OTelProviders.Shutdown(ctx)
	a.OTelProviders = nil
	if err != nil {
		a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
	}
	return err
}
