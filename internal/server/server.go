package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/miadp/fmrgate/internal/handler"
	"github.com/miadp/fmrgate/internal/mcp"
	"github.com/miadp/fmrgate/internal/openapi"
	"github.com/miadp/fmrgate/internal/server/middleware"
	"github.com/miadp/fmrgate/internal/service"
	"github.com/miadp/fmrgate/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	// APIKeyHeader names the request header that carries the API key.
	APIKeyHeader string
	// BaseURL is advertised in the OpenAPI document. Empty means it is
	// derived from each docs request.
	BaseURL string
	Version string
	// EnableMCP mounts the MCP Streamable HTTP transport at /mcp, behind
	// the same API key gate as the REST endpoints.
	EnableMCP bool
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"*"},
		APIKeyHeader:    middleware.DefaultAPIKeyHeader,
		Version:         "dev",
		EnableMCP:       true,
	}
}

// Addr returns the host:port the server listens on.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Server is the top-level HTTP server. It owns the chi router, the record
// store and the API key gate.
type Server struct {
	cfg        Config
	router     chi.Router
	store      *store.Store
	authSvc    *service.AuthService
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, st *store.Store, authSvc *service.AuthService, logger *slog.Logger) *Server {
	if cfg.APIKeyHeader == "" {
		cfg.APIKeyHeader = middleware.DefaultAPIKeyHeader
	}
	s := &Server{
		cfg:     cfg,
		store:   st,
		authSvc: authSvc,
		logger:  logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(s.logger, "/healthz", "/readyz"))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", s.cfg.APIKeyHeader, "Mcp-Session-Id", "X-Requested-With"},
		ExposedHeaders: []string{"X-Request-ID", "Mcp-Session-Id"},
		MaxAge:         300,
	}))
	r.Use(chimw.Compress(5))

	sysHandler := handler.NewSystemHandler(s.store)
	subHandler := handler.NewSubprojectHandler(s.store, s.logger)
	docsHandler := handler.NewDocsHandler(openapi.Options{
		BaseURL:      s.cfg.BaseURL,
		APIKeyHeader: s.cfg.APIKeyHeader,
		Version:      s.cfg.Version,
	})
	gate := middleware.Authenticate(s.authSvc, s.cfg.APIKeyHeader, s.logger)

	// --- Health checks (no auth required) ---
	r.Get("/healthz", sysHandler.Healthz)
	r.Get("/readyz", sysHandler.Readyz)

	// --- Docs (no auth required) ---
	r.Get("/docs", docsHandler.ServePage)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/seed", sysHandler.Seed)
		r.Get("/docs", docsHandler.ServeSpec)

		r.Group(func(r chi.Router) {
			r.Use(gate)
			r.Get("/subprojects", subHandler.List)
			r.Get("/miadp-fmr", sysHandler.Hello)
		})
	})

	if s.cfg.EnableMCP {
		mcpHandler := mcp.NewMCPServer(s.store, s.logger, s.cfg.Version).Handler()
		r.With(gate).Handle("/mcp", mcpHandler)
	}

	s.router = r
}

// ListenAndServe starts the HTTP server and blocks until ctx is done or a
// SIGINT or SIGTERM is received. It then drains in-flight requests and
// waits for pending last-used writes before returning.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := s.cfg.Addr()

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.authSvc.Wait()
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
