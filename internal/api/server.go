package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/eshaffer321/booking-sync-backend/internal/adapters/providers"
	"github.com/eshaffer321/booking-sync-backend/internal/api/handlers"
	"github.com/eshaffer321/booking-sync-backend/internal/api/middleware"
	"github.com/eshaffer321/booking-sync-backend/internal/application/bookings"
	"github.com/eshaffer321/booking-sync-backend/internal/application/service"
	appsync "github.com/eshaffer321/booking-sync-backend/internal/application/sync"
	"github.com/eshaffer321/booking-sync-backend/internal/infrastructure/storage"
)

// Config holds API server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string
	// WriteTimeout bounds a whole response; batches run synchronously so it
	// must exceed the longest expected batch.
	WriteTimeout time.Duration
}

// DefaultConfig returns sensible defaults for the API server.
func DefaultConfig() Config {
	return Config{
		Port:           8085,
		AllowedOrigins: []string{"http://localhost:3000"},
		WriteTimeout:   5 * time.Minute,
	}
}

// Dependencies are the application services the routes are served from.
// Jobs and Bookings may be nil; their routes are then not mounted.
type Dependencies struct {
	Repo         storage.Repository
	Registry     *providers.Registry
	Orchestrator *appsync.Orchestrator
	Bookings     *bookings.Service
	Jobs         *service.JobService
}

// Server is the HTTP API server.
type Server struct {
	config     Config
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
	deps       Dependencies
}

// NewServer creates a new API server.
func NewServer(cfg Config, deps Dependencies, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}

	s := &Server{
		config: cfg,
		router: chi.NewRouter(),
		logger: logger,
		deps:   deps,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures global middleware.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.Recoverer)

	corsConfig := middleware.DefaultCORSConfig()
	if len(s.config.AllowedOrigins) > 0 {
		corsConfig.AllowedOrigins = s.config.AllowedOrigins
	}
	s.router.Use(middleware.CORS(corsConfig))

	s.router.Use(middleware.Logging(s.logger))
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check (no /api prefix - for load balancers)
	var checker handlers.ProviderChecker
	if s.deps.Registry != nil {
		checker = s.deps.Registry
	}
	var pinger handlers.Pinger
	if s.deps.Repo != nil {
		pinger = s.deps.Repo
	}
	s.router.Get("/health", handlers.NewHealthHandler(pinger, checker).ServeHTTP)

	s.router.Route("/api", func(r chi.Router) {
		// Sync runs (historical)
		if s.deps.Repo != nil {
			runsHandler := handlers.NewRunsHandler(s.deps.Repo, s.logger)
			r.Get("/runs", runsHandler.List)
			r.Get("/runs/{id}", runsHandler.Get)
		}

		if s.deps.Orchestrator == nil {
			return
		}

		// Per-booking sync and provider actions
		var actions handlers.BookingActions
		if s.deps.Bookings != nil {
			actions = s.deps.Bookings
		}
		bookingsHandler := handlers.NewBookingsHandler(s.deps.Orchestrator, actions, s.logger)
		r.Route("/bookings/{id}", func(r chi.Router) {
			r.Post("/sync", bookingsHandler.Sync)
			r.Get("/sync-status", bookingsHandler.SyncStatus)
			if actions != nil {
				r.Get("/cancellation-quote", bookingsHandler.CancellationQuote)
				r.Post("/cancel", bookingsHandler.Cancel)
				r.Get("/services", bookingsHandler.AvailableServices)
				r.Post("/services", bookingsHandler.AddServices)
			}
		})

		// Batch sync, synchronous and as background jobs
		var jobs handlers.JobManager
		if s.deps.Jobs != nil {
			jobs = s.deps.Jobs
		}
		syncHandler := handlers.NewSyncHandler(s.deps.Orchestrator, jobs, s.logger)
		r.Post("/sync/batch", syncHandler.RunBatch)
		if jobs != nil {
			r.Post("/sync/jobs", syncHandler.StartJob)
			r.Get("/sync/jobs", syncHandler.ListJobs)
			r.Get("/sync/jobs/{jobId}", syncHandler.GetJob)
			r.Delete("/sync/jobs/{jobId}", syncHandler.CancelJob)
		}
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")

	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}
