package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // postgres driver
	"github.com/soheilhy/cmux"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/nyashahama/gati-explain-gateway/internal/ai"
	"github.com/nyashahama/gati-explain-gateway/internal/api"
	"github.com/nyashahama/gati-explain-gateway/internal/config"
	"github.com/nyashahama/gati-explain-gateway/internal/db"
	"github.com/nyashahama/gati-explain-gateway/internal/explain"
	"github.com/nyashahama/gati-explain-gateway/internal/health"
	"github.com/nyashahama/gati-explain-gateway/internal/mlapi"
	"github.com/nyashahama/gati-explain-gateway/internal/store"
	"github.com/nyashahama/gati-explain-gateway/internal/worker"
)

func main() {
	// ── Logger ────────────────────────────────────────────────────────────────
	// JSON in production, pretty text in development.
	var logger *slog.Logger
	if os.Getenv("ENV") == "production" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// ── Config ────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Info("config loaded", "env", cfg.Env, "port", cfg.Port, "ml_api_url", cfg.MLAPIURL)

	// Root context cancelled by OS signal. Every loop below respects it.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Explanation service (primary) ─────────────────────────────────────────
	// A bad URL is not fatal: requests fail with 503 until it is fixed.
	if !cfg.MLAPIURLValid() {
		logger.Warn("ML_API_URL is not an absolute http(s) URL; explain requests will fail", "ml_api_url", cfg.MLAPIURL)
	}
	mlClient := mlapi.NewClient(mlapi.Config{BaseURL: cfg.MLAPIURL, Timeout: cfg.ExplainTimeout})
	defer mlClient.Close()

	// ── Text generation (secondary) ───────────────────────────────────────────
	humanizer := ai.NewHumanizer(buildGenerator(ctx, cfg, logger), cfg.HumanizeTimeout)
	if humanizer.Enabled() {
		logger.Info("ai: humanization enabled", "provider", humanizer.Provider(), "timeout", cfg.HumanizeTimeout)
	} else if cfg.HumanizationEnabled() {
		logger.Warn("ai: text-generation keys set but no provider could be created, humanization disabled")
	} else {
		logger.Info("ai: no text-generation key set, humanization disabled")
	}

	orchestrator := explain.New(mlClient, humanizer, logger)

	// ── Audit log (optional) ──────────────────────────────────────────────────
	var (
		audit  worker.Enqueuer
		runner *worker.Runner
	)
	if cfg.DatabaseURL != "" {
		pool, queries, err := openDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer pool.Close()
		defer queries.Close()
		logger.Info("database connected, audit log enabled")

		runner = worker.NewRunner(store.New(pool, queries), worker.RunnerConfig{
			Workers:    cfg.AuditWorkers,
			MaxRetries: cfg.AuditMaxRetries,
		}, logger)
		audit = runner
	} else {
		logger.Info("DATABASE_URL not set, audit log disabled")
	}

	// ── gRPC health ───────────────────────────────────────────────────────────
	grpcServer := grpc.NewServer()
	healthServer := grpchealth.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	monitor := health.NewMonitor(mlClient, healthServer, health.Config{Interval: cfg.HealthInterval}, logger)

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.NewServer(
		orchestrator,
		audit,
		monitor,
		api.Config{
			Env:              cfg.Env,
			CORSOrigin:       cfg.CORSOrigin,
			RequestTimeout:   cfg.RequestTimeout(),
			HumanizeProvider: humanizer.Provider(),
		},
		logger,
	)

	httpServer := &http.Server{
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout() + 15*time.Second, // above the router's request timeout
		IdleTimeout:  120 * time.Second,
	}

	// ── Listener: HTTP/1.1 and gRPC on one port ───────────────────────────────
	lis, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	mux := cmux.New(lis)
	grpcListener := mux.MatchWithWriters(cmux.HTTP2MatchHeaderFieldSendSettings("content-type", "application/grpc"))
	httpListener := mux.Match(cmux.Any())

	// The audit pool outlives the HTTP server so in-flight requests can still
	// enqueue. Once cancelled, each worker writes what is left in the queue
	// (one attempt per record) before returning.
	runnerCtx, stopRunner := context.WithCancel(context.Background())
	defer stopRunner()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return monitor.Run(gctx) })

	if runner != nil {
		g.Go(func() error {
			runner.Start(runnerCtx)
			return nil
		})
	}

	g.Go(func() error {
		if err := grpcServer.Serve(grpcListener); err != nil && !isClosed(err) {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := httpServer.Serve(httpListener); err != nil && !isClosed(err) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("server listening", "addr", lis.Addr().String())
		if err := mux.Serve(); err != nil && !isClosed(err) {
			return fmt.Errorf("listener: %w", err)
		}
		return nil
	})

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")
		healthServer.Shutdown()

		// Give in-flight HTTP requests up to 20 seconds to finish.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		err := httpServer.Shutdown(shutdownCtx)
		stopGRPC(shutdownCtx, grpcServer)
		mux.Close()
		stopRunner()

		if err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// buildGenerator returns the text-generation chain for the keys that are
// set, in the order Gemini, Anthropic, DeepSeek. It returns nil when no key
// is set.
func buildGenerator(ctx context.Context, cfg *config.Config, logger *slog.Logger) ai.Generator {
	if !cfg.HumanizationEnabled() {
		return nil
	}
	var providers []ai.Generator

	if cfg.GeminiAPIKey != "" {
		gemini, err := ai.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Warn("ai: gemini client unavailable, skipping", "error", err)
		} else {
			providers = append(providers, gemini)
		}
	}
	if cfg.AnthropicAPIKey != "" {
		providers = append(providers, ai.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel))
	}
	if cfg.DeepSeekAPIKey != "" {
		providers = append(providers, ai.NewDeepSeekClient(cfg.DeepSeekAPIKey, cfg.DeepSeekModel))
	}

	return ai.NewFallbackGenerator(logger, providers...)
}

// stopGRPC drains gRPC connections until ctx expires, then forces them closed.
func stopGRPC(ctx context.Context, s *grpc.Server) {
	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.Stop()
	}
}

// isClosed reports whether err is the expected result of closing a listener
// or server during shutdown.
func isClosed(err error) bool {
	return errors.Is(err, http.ErrServerClosed) ||
		errors.Is(err, grpc.ErrServerStopped) ||
		errors.Is(err, cmux.ErrListenerClosed) ||
		errors.Is(err, cmux.ErrServerClosed) ||
		errors.Is(err, net.ErrClosed)
}

// openDB opens the connection pool, applies the audit schema and prepares
// all sqlc statements. Preparing validates every query against the live
// schema, so the server refuses to start if they are out of sync.
func openDB(ctx context.Context, dsn string) (*sql.DB, *db.Queries, error) {
	pool, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open: %w", err)
	}

	// The audit pool is the only writer; keep the pool small.
	pool.SetMaxOpenConns(10)
	pool.SetMaxIdleConns(5)
	pool.SetConnMaxLifetime(5 * time.Minute)
	pool.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}

	if err := store.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}

	queries, err := db.Prepare(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("prepare statements: %w", err)
	}

	return pool, queries, nil
}
