// Package server hosts the todo handlers behind gin with the usual HTTP
// middleware, health probes and a Prometheus endpoint.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"todo-api/internal/config"
	"todo-api/internal/handlers"
	"todo-api/internal/middleware"
	"todo-api/internal/monitoring"
)

// Dependencies are the pieces built by the caller and mounted by the server.
type Dependencies struct {
	Handler      *handlers.TodoHandler
	HealthChecks map[string]monitoring.HealthCheckFunc
	Collectors   []prometheus.Collector
	// Stats backs /debug/stats. Nil leaves the route unmounted.
	Stats        map[string]monitoring.StatsFunc
}

type Server struct {
	cfg     *config.Config
	log     *logrus.Logger
	router  *gin.Engine
	limiter *middleware.RateLimiter
	metrics *monitoring.Metrics
	health  *monitoring.HealthChecker
	srv     *http.Server
}

func New(cfg *config.Config, deps Dependencies, logger *logrus.Logger) (*Server, error) {
	if deps.Handler == nil {
		return nil, errors.New("server: todo handler is required")
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:     cfg,
		log:     logger,
		metrics: monitoring.NewMetrics(),
		health:  monitoring.NewHealthChecker(2 * time.Second),
	}
	if err := s.metrics.Register(deps.Collectors...); err != nil {
		return nil, err
	}
	for name, check := range deps.HealthChecks {
		s.health.Register(name, check)
	}
	if cfg.RateLimit.Enabled {
		s.limiter = middleware.NewRateLimiter(middleware.RateLimitConfig{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMin,
			Burst:             cfg.RateLimit.BurstSize,
			CleanupInterval:   cfg.RateLimit.CleanupInterval,
		})
	}

	s.router = s.routes(deps.Handler, deps.Stats)
	s.srv = &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s, nil
}

func (s *Server) routes(h *handlers.TodoHandler, stats map[string]monitoring.StatsFunc) *gin.Engine {
	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.RequestLogger(s.log),
		s.metrics.Middleware(),
		middleware.RecoveryWithLog(s.log),
		cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     handlers.AllowedMethods(),
			AllowHeaders:     append(handlers.AllowedHeaders(), middleware.RequestIDHeader),
			ExposeHeaders:    []string{middleware.RequestIDHeader},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}),
	)

	router.GET("/health/live", s.metrics.LivenessHandler())
	router.GET("/health/ready", s.health.ReadinessHandler())
	router.GET("/metrics", s.metrics.Handler())
	if len(stats) > 0 {
		router.GET("/debug/stats", monitoring.StatsHandler(stats))
	}

	api := router.Group("/")
	if s.limiter != nil {
		api.Use(s.limiter.Middleware())
	}
	if s.cfg.Auth.Enabled() {
		api.Use(middleware.AuthzMiddleware(middleware.AuthzConfig{
			Secret:            s.cfg.Auth.JWTSecret,
			Issuer:            s.cfg.Auth.JWTIssuer,
			MethodPermissions: middleware.DefaultMethodPermissions(),
		}))
	}
	handlers.RegisterRoutes(api, h)

	return router
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then drains in-flight requests for up
// to the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	if s.limiter != nil {
		go s.limiter.Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.srv.Addr).Info("HTTP server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info("HTTP server stopped gracefully")
	return nil
}
