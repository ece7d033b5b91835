package endpoint

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inclusion-scoring/internal/common/config"
	apperrors "inclusion-scoring/internal/common/errors"
	"inclusion-scoring/internal/common/logger"
	"inclusion-scoring/internal/models"
)

const requestIDHeader = "X-Request-ID"

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Route is one entry of the server's routing table.
type Route struct {
	Method  string
	Path    string
	Handler gin.HandlerFunc
}

// Server exposes a Handler over HTTP.
type Server struct {
	handler *Handler
	engine  *gin.Engine
	log     logger.Logger
	maxBody int64
	checks  []ReadinessCheck
}

func NewServer(h *Handler, cfg config.ServerConfig, log logger.Logger, checks ...ReadinessCheck) *Server {
	s := &Server{
		handler: h,
		log:     log,
		maxBody: cfg.MaxBodyBytes,
		checks:  checks,
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger())

	for _, r := range s.routes() {
		engine.Handle(r.Method, r.Path, r.Handler)
	}
	s.engine = engine
	return s
}

func (s *Server) routes() []Route {
	return []Route{
		{Method: http.MethodPost, Path: "/score", Handler: s.score},
		{Method: http.MethodGet, Path: "/model", Handler: s.model},
		{Method: http.MethodGet, Path: "/health", Handler: s.health},
		{Method: http.MethodGet, Path: "/ready", Handler: s.ready},
		{Method: http.MethodGet, Path: "/metrics", Handler: gin.WrapH(promhttp.Handler())},
	}
}

// Handler returns the http.Handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) score(c *gin.Context) {
	body := c.Request.Body
	if s.maxBody > 0 {
		body = http.MaxBytesReader(c.Writer, body, s.maxBody)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		status, resp := apperrors.ToResponse(apperrors.NewParseError(err.Error(), err))
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		c.JSON(status, resp)
		return
	}

	requestID := c.GetHeader(requestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header(requestIDHeader, requestID)

	status, out := s.handler.Respond(c.Request.Context(), raw, models.SourceHTTP, requestID)
	c.Data(status, "application/json", out)
}

func (s *Server) model(c *gin.Context) {
	c.JSON(http.StatusOK, s.handler.Info())
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	failures := map[string]string{}
	for _, check := range s.checks {
		if err := check.Check(ctx); err != nil {
			failures[check.Name] = err.Error()
		}
	}
	if len(failures) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "checks": failures})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "model": s.handler.Info().Name})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("http request", map[string]interface{}{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
	}
}
