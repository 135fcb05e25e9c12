// Package server provides the HTTP server and routing for signalscope.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/signalscope/internal/database"
	"github.com/aristath/signalscope/internal/events"
	"github.com/aristath/signalscope/internal/metrics"
	"github.com/aristath/signalscope/internal/modules/pipeline"
	pipelinehandlers "github.com/aristath/signalscope/internal/modules/pipeline/handlers"
	"github.com/aristath/signalscope/internal/reliability"
	"github.com/aristath/signalscope/internal/scheduler"
)

// Config holds server configuration.
type Config struct {
	Log       zerolog.Logger
	Port      int
	DevMode   bool
	DataDir   string
	Databases map[string]*database.DB
	Pipeline  *pipeline.Service
	Scheduler *scheduler.Scheduler
	Events    *events.Manager
	Metrics   *metrics.Recorder
	Backups   *reliability.BackupService // nil when backups are disabled
}

// Server represents the HTTP server.
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	port           int
	databases      map[string]*database.DB
	pipeline       *pipeline.Service
	events         *events.Manager
	metrics        *metrics.Recorder
	systemHandlers *SystemHandlers
	statusMonitor  *StatusMonitor
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	systemHandlers := NewSystemHandlers(
		cfg.Log,
		cfg.DataDir,
		cfg.Databases,
		cfg.Scheduler,
		cfg.Backups,
		cfg.Events,
	)

	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		port:           cfg.Port,
		databases:      cfg.Databases,
		pipeline:       cfg.Pipeline,
		events:         cfg.Events,
		metrics:        cfg.Metrics,
		systemHandlers: systemHandlers,
		statusMonitor:  NewStatusMonitor(cfg.Events, cfg.Databases, cfg.Log),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware.
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5, "application/json", "text/plain"))
	}
}

// setupRoutes configures all routes.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", s.metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		// Streams are long-lived and must not sit behind the request timeout
		r.Group(func(r chi.Router) {
			stream := NewEventsStreamHandler(s.events.Bus(), s.log)
			r.Get("/events/stream", stream.ServeHTTP)
			r.Get("/events/ws", stream.ServeWebSocket)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(5 * time.Minute))

			pipelinehandlers.NewHandler(s.pipeline, s.log).RegisterRoutes(r)

			r.Route("/system", func(r chi.Router) {
				h := s.systemHandlers
				r.Get("/status", h.HandleSystemStatus)
				r.Get("/databases", h.HandleDatabaseStats)
				r.Get("/disk", h.HandleDiskUsage)
				r.Get("/jobs", h.HandleJobsStatus)
				r.Post("/jobs/{name}/run", h.HandleTriggerJob)
				r.Get("/backups", h.HandleListBackups)
			})
		})
	})
}

// Start starts the HTTP server and background monitors.
func (s *Server) Start() error {
	s.statusMonitor.Start(time.Minute)

	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	s.statusMonitor.Stop()
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
