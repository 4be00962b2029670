// Package server provides the HTTP server and routing for the trading desk.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/tradingdesk/internal/config"
	"github.com/aristath/tradingdesk/internal/di"
	bothandlers "github.com/aristath/tradingdesk/internal/modules/bot/handlers"
	decisionhandlers "github.com/aristath/tradingdesk/internal/modules/decision/handlers"
	markethourshandlers "github.com/aristath/tradingdesk/internal/modules/market_hours/handlers"
	portfoliohandlers "github.com/aristath/tradingdesk/internal/modules/portfolio/handlers"
	settingshandlers "github.com/aristath/tradingdesk/internal/modules/settings/handlers"
	tradinghandlers "github.com/aristath/tradingdesk/internal/modules/trading/handlers"
	"github.com/aristath/tradingdesk/internal/scheduler"
	"github.com/aristath/tradingdesk/pkg/embedded"
)

// Version is reported by /health
const Version = "1.0.0"

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Config    *config.Config
	Container *di.Container
	Jobs      *di.JobInstances
	Port      int
	DevMode   bool
}

// Server represents the HTTP server
type Server struct {
	router        *chi.Mux
	server        *http.Server
	log           zerolog.Logger
	cfg           *config.Config
	port          int
	container     *di.Container
	jobs          *di.JobInstances
	statusMonitor *StatusMonitor
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		cfg:       cfg.Config,
		port:      cfg.Port,
		container: cfg.Container,
		jobs:      cfg.Jobs,
	}
	s.statusMonitor = NewStatusMonitor(cfg.Container.Gateway, cfg.Container.EventManager, cfg.Log)

	s.setupMiddleware()
	s.setupRoutes(cfg.DevMode)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       15 * time.Second,
		// No WriteTimeout: the activity stream is long-lived. Regular routes
		// are bounded by the timeout middleware.
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Router exposes the handler for tests
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes(devMode bool) {
	c := s.container

	activity := NewActivityHandler(c.EventManager, s.log)

	// Streams stay outside the request timeout and compression.
	s.router.Route("/api/stream", func(r chi.Router) {
		activity.RegisterStreamRoutes(r)
	})

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		if !devMode {
			r.Use(middleware.Compress(5))
		}

		r.Get("/health", s.handleHealth)
		r.Get("/", s.handleDashboard)

		r.Route("/api", func(r chi.Router) {
			settingshandlers.NewHandler(c.SettingsService, s.log).RegisterRoutes(r)
			markethourshandlers.NewHandler(c.Gateway, c.MarketHours, s.log).RegisterRoutes(r)
			portfoliohandlers.NewHandler(c.PortfolioService, c.HoldingRepo, c.Reconciler(), c.EventManager, s.log).RegisterRoutes(r)
			tradinghandlers.NewHandler(c.TradeRepo, s.log).RegisterRoutes(r)
			bothandlers.NewHandler(c.BotScheduler, s.log).RegisterRoutes(r)
			decisionhandlers.NewHandler(c.Gateway, c.ProviderRepo, c.AIFactory, s.log).RegisterRoutes(r)
			activity.RegisterRoutes(r)

			jobs := map[string]scheduler.Job{}
			if s.jobs != nil {
				jobs = s.jobs.All()
			}
			NewSystemHandlers(SystemDeps{
				DataDir:       s.cfg.DataDir,
				ExecutionMode: string(s.cfg.ExecutionMode),
				Databases:     c.Databases(),
				Jobs:          jobs,
				Runner:        c.CronScheduler,
				Work:          c.WorkProcessor,
				WorkTypes:     c.WorkRegistry,
				Completion:    c.WorkCompletion,
				Market:        c.Gateway,
				Bot:           c.BotScheduler,
			}, s.log).RegisterRoutes(r)
		})
	})
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.statusMonitor.Start(60 * time.Second)

	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	s.statusMonitor.Stop()
	return s.server.Shutdown(ctx)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	response := map[string]interface{}{
		"status":         "healthy",
		"version":        Version,
		"service":        "tradingdesk",
		"execution_mode": s.cfg.ExecutionMode,
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.container.DeskDB.HealthCheck(ctx); err != nil {
		s.log.Error().Err(err).Msg("Health check failed")
		status = http.StatusServiceUnavailable
		response["status"] = "unhealthy"
		response["error"] = err.Error()
	}

	s.writeJSON(w, status, response)
}

// handleDashboard serves the dashboard from the embedded filesystem
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	frontendFS, err := fs.Sub(embedded.Files, "frontend/dist")
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to create frontend filesystem from embedded files")
		http.Error(w, "Frontend not available", http.StatusInternalServerError)
		return
	}

	indexFile, err := frontendFS.Open("index.html")
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to open embedded index.html")
		http.Error(w, "Frontend not available", http.StatusInternalServerError)
		return
	}
	defer indexFile.Close()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := io.Copy(w, indexFile); err != nil {
		s.log.Error().Err(err).Msg("Failed to write dashboard")
	}
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
