// Package server exposes a tool service over HTTP: MCP on SSE and
// streamable HTTP behind bearer-token authentication, plus unauthenticated
// health and metrics endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/ppiankov/toolgate/internal/auth"
	"github.com/ppiankov/toolgate/internal/mcp"
	"github.com/ppiankov/toolgate/internal/metrics"
)

// ShutdownTimeout bounds how long in-flight requests get to finish.
const ShutdownTimeout = 10 * time.Second

// Config holds HTTP server configuration.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr                 string
	MetricsEnabled       bool
	AllowQueryParamToken bool
}

// Server serves one tool service over HTTP.
type Server struct {
	cfg    Config
	app    *mcp.Server
	tokens auth.Authenticator
	logger *zap.Logger
	http   *http.Server

	mu sync.RWMutex
	ln net.Listener
}

// New creates a server for app. tokens is consulted on every request, so
// an *auth.Store lets the registry be swapped while serving.
func New(cfg Config, app *mcp.Server, tokens auth.Authenticator, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:    cfg,
		app:    app,
		tokens: tokens,
		logger: logger,
	}
	s.http = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// SSE streams stay open; no write timeout.
		IdleTimeout: 60 * time.Second,
	}
	return s
}

// Handler returns the routed, authenticated handler.
func (s *Server) Handler() http.Handler {
	getServer := func(*http.Request) *mcpsdk.Server { return s.app.MCP() }
	sse := mcpsdk.NewSSEHandler(getServer, nil)
	streamable := mcpsdk.NewStreamableHTTPHandler(getServer, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	public := []string{"/", "/healthz"}
	if s.cfg.MetricsEnabled {
		mux.Handle("GET /metrics", metrics.Handler())
		public = append(public, "/metrics")
	}
	// The SSE handler posts back to the URL it was opened on; /messages/
	// is kept for clients configured with the conventional path.
	mux.Handle("/sse", sse)
	mux.Handle("/messages/", sse)
	mux.Handle("/mcp", streamable)

	service := string(s.app.Service())
	authn := auth.Middleware(s.tokens, auth.MiddlewareOptions{
		AllowQueryParam: s.cfg.AllowQueryParamToken,
		Public:          public,
		Logger:          s.logger,
		OnFailure: func(kind auth.FailureKind) {
			metrics.RecordAuthFailure(service, string(kind))
		},
	})
	return authn(requestLogging(mux, s.logger))
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": s.app.Service().DisplayName(),
		"status":  "ok",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	s.logger.Info("http server starting", zap.String("listen_addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	s.http.SetKeepAlivesEnabled(false)
	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Warn("http server shutdown error", zap.Error(err))
		return err
	}
	s.logger.Info("http server stopped")
	return nil
}

// Addr returns the listener address, or "" if not started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requestLogging(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("token_label", auth.LabelFromContext(r.Context())),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Flush keeps SSE streaming working through the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
