package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shopcore/internal/logging"
)

// Pinger is implemented by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wraps the HTTP server setup.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// New builds a Server with the API routes.
func New(addr string, logger *zap.Logger, db Pinger, deps Deps) (*Server, error) {
	logger = logging.OrNop(logger)
	router, err := buildRouter(logger, db, deps)
	if err != nil {
		return nil, err
	}

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Server{
		httpServer: httpSrv,
		logger:     logger,
	}, nil
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// readinessCheck is one dependency probed by /readyz.
type readinessCheck struct {
	name  string
	probe func(ctx context.Context) error
}

func dbCheck(db Pinger) readinessCheck {
	return readinessCheck{name: "database", probe: func(ctx context.Context) error {
		if db == nil {
			return errNotConfigured
		}
		return db.Ping(ctx)
	}}
}

var errNotConfigured = errors.New("not configured")

// readyHandler probes every check within one second and reports each result.
func readyHandler(logger *zap.Logger, checks ...readinessCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(gin.H, len(checks))
		for _, chk := range checks {
			if err := chk.probe(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[chk.name] = err.Error()
				logger.Warn("readiness check failed", zap.String("check", chk.name), zap.Error(err))
				continue
			}
			results[chk.name] = "ok"
		}
		if status != http.StatusOK {
			c.JSON(status, gin.H{"status": "unavailable", "checks": results})
			return
		}
		c.JSON(status, gin.H{"status": "ready", "checks": results})
	}
}
