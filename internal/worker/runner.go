// Package worker contains the background pool that persists audit records.
// It is decoupled from the HTTP layer: the api package holds a
// worker.Enqueuer interface and calls Enqueue. It never imports the concrete
// Runner type, and a slow or unreachable database never delays a response.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nyashahama/gati-explain-gateway/internal/db"
	"github.com/nyashahama/gati-explain-gateway/internal/store"
)

// ─── INTERFACES ───────────────────────────────────────────────────────────────

// Enqueuer is the narrow interface the api package uses to hand off an audit
// record after a response has been assembled.
//
// The concrete implementation is *Runner. In tests, any struct with an Enqueue
// method satisfies the interface.
type Enqueuer interface {
	Enqueue(ctx context.Context, rec store.ExplanationRecord) error
}

// Recorder persists one audit record. *store.Store implements it.
type Recorder interface {
	RecordExplanation(ctx context.Context, rec store.ExplanationRecord) (db.Explanation, error)
}

// ErrQueueFull is returned by Enqueue when every buffer slot is taken.
var ErrQueueFull = errors.New("worker: queue is full, audit record dropped")

// ─── RUNNER ───────────────────────────────────────────────────────────────────

// RunnerConfig holds tuning parameters for the Runner. Zero fields take the
// values from DefaultRunnerConfig.
type RunnerConfig struct {
	// Workers is the number of concurrent writer goroutines. Default: 2.
	Workers int

	// WriteTimeout is the per-attempt context deadline. Default: 5s.
	WriteTimeout time.Duration

	// MaxRetries is the number of attempts before a record is dropped.
	// Default: 3.
	MaxRetries int

	// Backoff is the base delay between attempts; it doubles each retry.
	// Default: 1s.
	Backoff time.Duration
}

// DefaultRunnerConfig returns safe production defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Workers:      2,
		WriteTimeout: 5 * time.Second,
		MaxRetries:   3,
		Backoff:      time.Second,
	}
}

// Runner manages a pool of writer goroutines fed by an in-process channel.
type Runner struct {
	recorder Recorder
	cfg      RunnerConfig
	logger   *slog.Logger

	queue chan store.ExplanationRecord
	wg    sync.WaitGroup
}

// NewRunner constructs a Runner. Call Start to begin processing.
func NewRunner(recorder Recorder, cfg RunnerConfig, logger *slog.Logger) *Runner {
	def := DefaultRunnerConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = def.Backoff
	}

	return &Runner{
		recorder: recorder,
		cfg:      cfg,
		logger:   logger,
		// Audit writes lag requests under bursts; size the buffer generously.
		queue: make(chan store.ExplanationRecord, cfg.Workers*64),
	}
}

// Enqueue pushes rec onto the in-process channel. It never blocks: when the
// channel is full it returns ErrQueueFull and the record is lost.
func (r *Runner) Enqueue(_ context.Context, rec store.ExplanationRecord) error {
	select {
	case r.queue <- rec:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the worker pool. It blocks until ctx is cancelled and every
// worker has drained the queue and returned. Call it in a goroutine from main.
func (r *Runner) Start(ctx context.Context) {
	r.logger.Info("worker: starting", "workers", r.cfg.Workers)

	for i := range r.cfg.Workers {
		r.wg.Add(1)
		go r.work(ctx, i)
	}

	r.wg.Wait()
	r.logger.Info("worker: stopped", "dropped_on_shutdown", len(r.queue))
}

// work is the inner loop for each worker goroutine.
func (r *Runner) work(ctx context.Context, id int) {
	defer r.wg.Done()
	log := r.logger.With("worker_id", id)
	log.Debug("worker: goroutine started")

	for {
		select {
		case <-ctx.Done():
			r.drain(log)
			log.Debug("worker: goroutine stopping")
			return
		case rec := <-r.queue:
			r.runWithRetry(ctx, rec, log)
		}
	}
}

// drain writes whatever is still queued once ctx is cancelled. Each record
// gets a single attempt bounded by WriteTimeout; failures are dropped.
func (r *Runner) drain(log *slog.Logger) {
	for {
		select {
		case rec := <-r.queue:
			writeCtx, cancel := context.WithTimeout(context.Background(), r.cfg.WriteTimeout)
			if _, err := r.recorder.RecordExplanation(writeCtx, rec); err != nil {
				log.Warn("worker: audit record dropped during shutdown",
					"request_id", rec.RequestID,
					"error", err,
				)
			}
			cancel()
		default:
			return
		}
	}
}

// runWithRetry writes rec up to MaxRetries times, then drops it.
func (r *Runner) runWithRetry(ctx context.Context, rec store.ExplanationRecord, log *slog.Logger) {
	log = log.With("request_id", rec.RequestID, "model_type", rec.ModelType)
	var lastErr error

	for attempt := 1; attempt <= r.cfg.MaxRetries; attempt++ {
		writeCtx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
		row, err := r.recorder.RecordExplanation(writeCtx, rec)
		cancel()

		if err == nil {
			log.Debug("worker: audit record written", "id", row.ID, "attempt", attempt)
			return
		}
		lastErr = err

		log.Warn("worker: audit write failed",
			"attempt", attempt,
			"max", r.cfg.MaxRetries,
			"error", err,
		)

		if attempt < r.cfg.MaxRetries {
			// Exponential back-off: 2×, 4×, 8× the base delay.
			backoff := time.Duration(1<<attempt) * r.cfg.Backoff
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
		}
	}

	log.Error("worker: audit record dropped", "error", lastErr)
}
