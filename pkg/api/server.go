// Package api exposes the inspector over HTTP: the JSON API, the websocket
// stream, health and metrics endpoints, and the embedded web UI.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/agent-protocol/a2a-inspector/pkg/config"
	"github.com/agent-protocol/a2a-inspector/pkg/inspector"
	"github.com/agent-protocol/a2a-inspector/pkg/metrics"
)

const serviceName = "a2a-inspector"

// Inspector is the set of operations the API serves.
type Inspector interface {
	LoadAgentCard(ctx context.Context, url string) inspector.Envelope[json.RawMessage]
	InspectAgentCard(ctx context.Context, url string) inspector.Envelope[inspector.InspectionReport]
	SendChatMessage(ctx context.Context, url, message string) inspector.Envelope[json.RawMessage]
	StreamChatMessage(ctx context.Context, url, message string, emit func(json.RawMessage) error) error
}

// Server represents the HTTP API server
type Server struct {
	config    *config.Config
	inspector Inspector
	engine    *gin.Engine
	metrics   *metrics.Metrics
	logger    *slog.Logger
	version   string
	upgrader  websocket.Upgrader
}

// Option customises a Server.
type Option func(*Server)

// WithVersion sets the version reported by /health and /api/v1.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithMetrics enables request metrics and the /metrics endpoint.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger sets the access and error logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server instance
func NewServer(cfg *config.Config, svc Inspector, opts ...Option) *Server {
	s := &Server{
		config:    cfg,
		inspector: svc,
		logger:    slog.Default(),
		version:   "dev",
	}
	for _, opt := range opts {
		opt(s)
	}

	s.upgrader = websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), requestID(), s.accessLog())
	if s.metrics != nil {
		s.engine.Use(s.observe())
	}
	if c, ok := s.corsMiddleware(); ok {
		s.engine.Use(c)
	}

	s.engine.GET("/health", s.handleHealth)
	if s.metrics != nil && !s.config.Server.DisableMetrics {
		s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	v1 := s.engine.Group("/api/v1")
	v1.GET("", s.handleInfo)

	insp := v1.Group("/inspector")
	insp.POST("/load", s.handleLoad)
	insp.POST("/inspect", s.handleInspect)
	insp.POST("/send-message", s.handleSendMessage)
	insp.GET("/stream", s.handleStream)

	if !s.config.Server.DisableUI {
		s.setupWebUI()
	}
}

// corsMiddleware builds the CORS handler for the configured origins. No
// origins means no cross-origin access at all.
func (s *Server) corsMiddleware() (gin.HandlerFunc, bool) {
	origins := s.config.Server.AllowOrigins
	if len(origins) == 0 {
		return nil, false
	}

	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", requestIDHeader},
		ExposeHeaders:    []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg), true
}

// checkOrigin admits same-origin websocket upgrades and those from an allowed origin.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host {
		return true
	}
	for _, o := range s.config.Server.AllowOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Serve accepts connections on l until ctx is cancelled, then shuts down
// gracefully within the configured shutdown timeout.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting A2A Inspector", "address", l.Addr().String(), "version", s.version)
		errCh <- srv.Serve(l)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down A2A Inspector")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address(), err)
	}
	return s.Serve(ctx, l)
}
