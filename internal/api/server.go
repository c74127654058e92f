package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/buildmaster/internal/events"
	"github.com/mattjoyce/buildmaster/internal/storage"
	"github.com/mattjoyce/buildmaster/internal/supervisor"
)

//go:generate mockgen -destination=mocks/mock_ports.go -package=mocks github.com/mattjoyce/buildmaster/internal/api BuilderRegistry,HistoryReader

// BuilderRegistry is the part of supervisor.Registry the API serves.
type BuilderRegistry interface {
	GetOrCreate(name string) (supervisor.View, error)
	Snapshot(name string) (supervisor.View, bool)
	Status(name string) (supervisor.Status, bool)
	Redeploy(name string) error
	Terminate(name string) error
	KnownNames() ([]string, error)
	Running() []string
}

// HistoryReader lists recorded deployments of a builder.
type HistoryReader interface {
	List(ctx context.Context, builder string, limit int) ([]storage.Deployment, error)
}

// Config holds API server configuration
type Config struct {
	Listen string
}

// Server represents the HTTP API server
type Server struct {
	config    Config
	registry  BuilderRegistry
	history   HistoryReader
	events    *events.Hub
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates the API server. history may be nil when history is disabled.
func New(config Config, registry BuilderRegistry, history HistoryReader, hub *events.Hub, logger *slog.Logger) *Server {
	if hub == nil {
		hub = events.NewHub(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:    config,
		registry:  registry,
		history:   history,
		events:    hub,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.server = &http.Server{
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout: /events streams for as long as the client stays.
		IdleTimeout: 60 * time.Second,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	s.logger.Info("API server starting", "listen", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler { return s.setupRoutes() }

func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/openapi.json", s.handleOpenAPI)
	r.Get("/events", s.handleEvents)

	r.Route("/builders", func(r chi.Router) {
		r.Get("/", s.handleListBuilders)
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", s.handleGetBuilder)
			r.Post("/redeploy", s.handleRedeploy)
			r.Post("/terminate", s.handleTerminate)
			r.Get("/history", s.handleHistory)
		})
	})

	return r
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
