// Package http exposes the progression engine over a JSON REST API.
package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/career-roadmap/roadmap-hub/config"
	"github.com/career-roadmap/roadmap-hub/internal/domain/progression"
	"github.com/career-roadmap/roadmap-hub/internal/interface/http/handlers"
	"github.com/career-roadmap/roadmap-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// ShutdownTimeout bounds graceful shutdown in Run.
	ShutdownTimeout time.Duration

	AllowedOrigins []string

	// RateLimitRPS - requests per second per client on write endpoints
	// (0 = disabled).
	RateLimitRPS   float64
	RateLimitBurst int

	AppName string
	Version string
	Debug   bool

	// MetricsPath - where Prometheus metrics are served (empty = disabled).
	MetricsPath string
}

// ConfigFrom builds a server Config from the application config.
func ConfigFrom(cfg *config.Config) Config {
	c := Config{
		Addr:            cfg.HTTP.Addr(),
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		IdleTimeout:     cfg.HTTP.IdleTimeout,
		ShutdownTimeout: cfg.App.ShutdownTimeout,
		AllowedOrigins:  cfg.HTTP.AllowedOrigins,
		RateLimitRPS:    cfg.HTTP.RateLimitRPS,
		RateLimitBurst:  cfg.HTTP.RateLimitBurst,
		AppName:         cfg.App.Name,
		Version:         cfg.App.Version,
		Debug:           cfg.App.Debug,
	}
	if cfg.Observability.MetricsEnabled {
		c.MetricsPath = cfg.Observability.MetricsPath
	}
	return c
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Dependencies contains everything the routes need.
type Dependencies struct {
	Progress    handlers.ProgressReader
	AwardXP     handlers.XPAwarder
	Activity    handlers.ActivityRecorder
	Profiles    handlers.ProfileEnsurer
	Leaderboard handlers.LeaderboardReader
	Curve       *progression.Curve

	Verifier TokenVerifier
	Health   *handlers.HealthChecker

	// Limiter overrides the in-process limiter (e.g. a Redis one).
	Limiter Limiter

	Metrics        RequestMetrics
	MetricsHandler http.Handler

	Logger *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config     Config
	engine     *gin.Engine
	httpServer *http.Server
	logger     *logger.Logger

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a server and registers all routes.
func NewServer(cfg Config, deps Dependencies) *Server {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	log = log.Named("http")
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(
		requestID(),
		requestLogger(log, deps.Metrics),
		recovery(log),
		corsMiddleware(cfg.AllowedOrigins),
	)

	s := &Server{config: cfg, engine: engine, logger: log}
	s.routes(deps)
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    1 << 20,
	}
	return s
}

func (s *Server) routes(deps Dependencies) {
	r := s.engine

	health := handlers.NewHealthHandler(deps.Health, s.config.AppName, s.config.Version)
	r.GET("/health", health.Liveness)
	r.GET("/health/detailed", health.Detailed)
	if s.config.MetricsPath != "" && deps.MetricsHandler != nil {
		r.GET(s.config.MetricsPath, gin.WrapH(deps.MetricsHandler))
	}

	board := handlers.NewLeaderboardHandler(deps.Leaderboard, deps.Curve)
	r.GET("/leaderboard", board.Top)
	r.GET("/levels", board.Levels)

	users := handlers.NewUsersHandler(deps.Profiles)
	r.GET("/users/check", optionalAuth(deps.Verifier), users.Check)

	authed := r.Group("/", requireAuth(deps.Verifier))
	authed.GET("/users/me", users.Me)

	progress := handlers.NewProgressHandler(deps.Progress, deps.AwardXP, deps.Activity, deps.Profiles)
	authed.GET("/progress/me", progress.Get)

	writes := authed.Group("/progress/me")
	if l := s.limiter(deps); l != nil {
		writes.Use(rateLimit(l))
	}
	writes.POST("/xp", progress.AwardXP)
	writes.POST("/activity", progress.RecordActivity)
}

func (s *Server) limiter(deps Dependencies) Limiter {
	if deps.Limiter != nil {
		return deps.Limiter
	}
	if s.config.RateLimitRPS <= 0 {
		return nil
	}
	return NewLocalLimiter(s.config.RateLimitRPS, s.config.RateLimitBurst)
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", logger.String("addr", s.config.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// IsRunning returns whether the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Uptime returns how long the server has been running.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}
