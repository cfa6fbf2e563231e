// Package api exposes the HTTP interface for the capture gateway.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/pixashot-gateway/internal/capture"
	"github.com/JakeFAU/pixashot-gateway/internal/config"
	"github.com/JakeFAU/pixashot-gateway/internal/metrics"
)

// Capturer forwards a validated capture request to the renderer. A returned
// error means no response was received; the caller owns resp.Body otherwise.
type Capturer interface {
	Capture(ctx context.Context, req capture.Request) (*http.Response, error)
}

// IDGenerator produces request identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Server wires HTTP handlers to the renderer client.
type Server struct {
	router       chi.Router
	capturer     Capturer
	idGen        IDGenerator
	cfg          config.Config
	cacheControl string
	logger       *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(capturer Capturer, idGen IDGenerator, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()

	s := &Server{
		capturer:     capturer,
		idGen:        idGen,
		cfg:          cfg,
		cacheControl: cfg.Cache.CacheControl(),
		logger:       logger,
	}
	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(metrics.Middleware)
	r.Use(s.recoverMiddleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.With(timeoutMiddleware(cfg.CaptureTimeout())).Get("/capture", s.handleCapture)
	r.With(timeoutMiddleware(cfg.CaptureTimeout())).Head("/capture", s.handleCapture)
	r.HandleFunc("/", s.redirectHome)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	// The gateway holds no local dependencies; renderer health is not probed.
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.cfg.Server.RedirectURL, http.StatusFound)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
