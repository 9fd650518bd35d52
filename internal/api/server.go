// Package api implements the HTTP layer of the explanation gateway.
// Handlers are methods on *Server. Each handler file is responsible for one
// resource group and only imports the dependencies it actually uses.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nyashahama/gati-explain-gateway/internal/explain"
	"github.com/nyashahama/gati-explain-gateway/internal/health"
	"github.com/nyashahama/gati-explain-gateway/internal/worker"
)

// Config holds values read from environment variables at startup.
type Config struct {
	// Env is "production", "staging", or "development".
	Env string

	// CORSOrigin is the Access-Control-Allow-Origin value used in production.
	CORSOrigin string

	// RequestTimeout bounds each request. Zero means DefaultRequestTimeout.
	RequestTimeout time.Duration

	// HumanizeProvider names the configured text-generation chain, or is
	// empty when humanization is disabled. Reported by /readyz.
	HumanizeProvider string
}

// DefaultRequestTimeout covers the default 30s explanation and 8s
// humanization bounds with room to spare.
const DefaultRequestTimeout = 60 * time.Second

// Explainer runs one orchestration. *explain.Orchestrator implements it.
type Explainer interface {
	Explain(ctx context.Context, req explain.Request) (explain.Result, error)
}

// Readiness reports the last observed state of the explanation service.
// *health.Monitor implements it.
type Readiness interface {
	Ready() bool
	Status() health.Status
}

// Server holds all shared dependencies.
type Server struct {
	explainer Explainer

	// audit receives one record per orchestration. Nil disables auditing.
	audit worker.Enqueuer

	readiness Readiness

	cfg    Config
	logger *slog.Logger
}

// NewServer constructs the Server and wires the chi router. The returned
// http.Handler is ready to pass to an http.Server.
func NewServer(
	explainer Explainer,
	audit worker.Enqueuer,
	readiness Readiness,
	cfg Config,
	logger *slog.Logger,
) http.Handler {
	s := &Server{
		explainer: explainer,
		audit:     audit,
		readiness: readiness,
		cfg:       cfg,
		logger:    logger,
	}

	return s.routes()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// ── Global middleware ─────────────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)
	// Outer bound: explanation call plus humanization plus slack.
	timeout := s.cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	r.Use(middleware.Timeout(timeout))

	// ── Health ────────────────────────────────────────────────────────────────
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/readyz", s.handleReadyz)

	// ── API ───────────────────────────────────────────────────────────────────
	r.Route("/api", func(r chi.Router) {
		r.Post("/explain", s.handleExplain)
		r.Get("/explain", s.handleExplainUsage)
	})

	return r
}
