// Package server wires the HTTP listener, endpoint registry, and
// background services together.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jackzampolin/narrio/internal/api"
	"github.com/jackzampolin/narrio/internal/auth"
	"github.com/jackzampolin/narrio/internal/books"
	"github.com/jackzampolin/narrio/internal/cleanup"
	"github.com/jackzampolin/narrio/internal/config"
	"github.com/jackzampolin/narrio/internal/home"
	"github.com/jackzampolin/narrio/internal/jobs"
	"github.com/jackzampolin/narrio/internal/providers"
	"github.com/jackzampolin/narrio/internal/server/endpoints"
	"github.com/jackzampolin/narrio/internal/svcctx"
)

// Server is the main Narrio HTTP server. It owns the conversion
// runner, the book service, and the cleanup sweeper, and shuts them
// down with the listener.
type Server struct {
	httpServer  *http.Server
	homeDir     *home.Dir
	registry    *providers.Registry
	jobRegistry *jobs.Registry
	runner      *jobs.Runner
	books       *books.Service
	verifier    auth.Verifier
	sweeper     *cleanup.Sweeper
	configMgr   *config.Manager
	logger      *slog.Logger

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 5005)
	Port string
	// HomeDir is the narrio home directory (uploads, output, cache)
	HomeDir string
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// SwaggerSpecPath overrides the swagger.json location
	SwaggerSpecPath string
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "5005"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ConfigManager == nil {
		return nil, errors.New("config manager is required")
	}
	appCfg := cfg.ConfigManager.Get()

	homeDir, err := home.New(cfg.HomeDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve home directory: %w", err)
	}

	// Create provider registry with hot reload on config change.
	registry := providers.NewRegistry()
	registry.SetLogger(cfg.Logger)
	registry.Reload(appCfg.ToProviderRegistryConfig())
	cfg.ConfigManager.OnChange(func(c *config.Config) {
		registry.Reload(c.ToProviderRegistryConfig())
		cfg.Logger.Info("provider registry reloaded from config")
	})

	jobRegistry := jobs.NewRegistry(cfg.Logger)
	runner := jobs.NewRunner(jobRegistry, registry, jobs.RunnerConfig{
		MaxConcurrent: appCfg.Limits.MaxConcurrent,
	}, cfg.Logger)

	s := &Server{
		homeDir:     homeDir,
		registry:    registry,
		jobRegistry: jobRegistry,
		runner:      runner,
		books:       books.NewService(jobRegistry, runner, homeDir, cfg.ConfigManager, cfg.Logger),
		verifier:    auth.NewVerifier(appCfg.Auth, cfg.Logger),
		sweeper: cleanup.New(homeDir, jobRegistry,
			appCfg.Cleanup.MaxAgeMinutes, appCfg.Cleanup.IntervalMinutes, cfg.Logger),
		configMgr: cfg.ConfigManager,
		logger:    cfg.Logger,
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{SwaggerSpecPath: cfg.SwaggerSpecPath}) {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:        net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:     s.withServices(mux),
		ReadTimeout: 30 * time.Second,
		// No write timeout: progress streams and downloads are
		// long-lived.
		IdleTimeout: 120 * time.Second,
	}

	return s, nil
}

// Start starts the server and its background services. It blocks
// until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if err := s.homeDir.EnsureExists(); err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to create home directory: %w", err)
	}

	// Jobs launched from request handlers outlive the request, so
	// they run under the server context instead.
	s.mu.Lock()
	s.services = &svcctx.Services{
		Config:   s.configMgr,
		Home:     s.homeDir,
		Registry: s.registry,
		Jobs:     s.jobRegistry,
		Runner:   s.runner,
		Books:    s.books,
		Auth:     s.verifier,
		Logger:   s.logger,
		BaseCtx:  ctx,
	}
	s.mu.Unlock()

	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		s.sweeper.Run(ctx)
	}()

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown(sweepDone)
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown(sweepDone)
}

// shutdown performs graceful shutdown of the HTTP server and waits
// for in-flight conversion jobs to observe cancellation.
func (s *Server) shutdown(sweepDone <-chan struct{}) error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	s.logger.Info("waiting for conversion jobs")
	s.runner.Wait()
	<-sweepDone

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Registry returns the provider registry.
func (s *Server) Registry() *providers.Registry {
	return s.registry
}

// Jobs returns the job registry.
func (s *Server) Jobs() *jobs.Registry {
	return s.jobRegistry
}

// Books returns the book service.
func (s *Server) Books() *books.Service {
	return s.books
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		services := s.services
		s.mu.RUnlock()

		ctx := r.Context()
		if services != nil {
			ctx = svcctx.WithServices(ctx, services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully
// initialized before work endpoints run.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		ready := s.services != nil
		s.mu.RUnlock()

		if !ready {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
