// Package httpapi exposes the browsing-control operations over a JSON REST
// API. Authentication is handled by the layer fronting this service; it
// passes the resolved identity in the X-User-ID header, and the identity
// middleware loads the user once per request. Authorization (admin-only
// routes) is enforced here, outside the decision engine.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rnProCoder/ControlledBrowsing/internal/control/common/log"
	"github.com/rnProCoder/ControlledBrowsing/internal/control/repos/rules"
	"github.com/rnProCoder/ControlledBrowsing/internal/control/services/engine"
	"github.com/rnProCoder/ControlledBrowsing/internal/control/services/recorder"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	engine   *engine.Engine
	store    rules.Store
	recorder *recorder.Recorder
	logger   log.Logger
	router   *gin.Engine
	addr     string
}

// Options configures a Server.
type Options struct {
	Addr     string
	Engine   *engine.Engine
	Store    rules.Store
	Recorder *recorder.Recorder
	Logger   log.Logger
}

// New constructs a Server and builds its routes.
func New(opts Options) *Server {
	l := opts.Logger
	if l == nil {
		l = log.NewNoopLogger()
	}
	s := &Server{
		engine:   opts.Engine,
		store:    opts.Store,
		recorder: opts.Recorder,
		logger:   l,
		addr:     opts.Addr,
	}
	s.router = s.buildRouter()
	return s
}

// Router returns the underlying gin engine, used directly by tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) buildRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	api := r.Group("/api", s.identity())
	{
		api.GET("/website-rules", s.listRules)
		api.POST("/website-rules", s.requireAdmin(), s.createRule)
		api.PUT("/website-rules/:id", s.requireAdmin(), s.updateRule)
		api.DELETE("/website-rules/:id", s.requireAdmin(), s.deleteRule)

		api.GET("/users", s.requireAdmin(), s.listUsers)
		api.POST("/users", s.requireAdmin(), s.createUser)

		api.GET("/browsing-activities", s.listActivities)
		api.GET("/recent-activities", s.requireAdmin(), s.listRecentActivities)

		api.POST("/check-access", s.checkAccess)

		api.GET("/settings", s.requireAdmin(), s.getSettings)
		api.PUT("/settings", s.requireAdmin(), s.updateSettings)
	}
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// requestLogger emits one structured line per request.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug(map[string]any{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}, "http request")
	}
}
