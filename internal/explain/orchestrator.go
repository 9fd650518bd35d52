package explain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nyashahama/gati-explain-gateway/internal/mlapi"
)

// Fetcher retrieves the technical explanation. *mlapi.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, p mlapi.FetchParams) (json.RawMessage, error)
}

// Humanizer rewrites a technical explanation into prose. *ai.Humanizer
// implements it.
type Humanizer interface {
	Enabled() bool
	Humanize(ctx context.Context, technical json.RawMessage) (string, error)
}

// Orchestrator runs Validating → FetchingTechnical → Humanizing →
// AssemblingResponse for one request at a time. It holds no per-request
// state and is safe to share between goroutines.
type Orchestrator struct {
	fetcher   Fetcher
	humanizer Humanizer
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the time source used for response timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New returns an Orchestrator. humanizer may be nil, which disables the
// humanization stage.
func New(fetcher Fetcher, humanizer Humanizer, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		fetcher:   fetcher,
		humanizer: humanizer,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Explain orchestrates one request. The returned Result always carries a
// Response suitable for the caller. The error is non-nil exactly when
// Response.Success is false, and is an *Error whose Kind selects the status.
func (o *Orchestrator) Explain(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	ts := o.now().UTC()
	notReached := StageOutcome{Status: StageSkipped, Reason: SkipNotReached}

	// ── Validating ────────────────────────────────────────────────────────────
	if err := Validate(req); err != nil {
		return Result{Response: Failed(req, ts, messageOf(err)), Humanization: notReached, Duration: time.Since(start)}, err
	}

	log := o.logger.With("model_type", req.ModelType)
	if req.EntityID != nil {
		log = log.With("entity_id", *req.EntityID)
	}

	// ── FetchingTechnical ─────────────────────────────────────────────────────
	technical, err := o.fetcher.Fetch(ctx, mlapi.FetchParams{
		ModelType:       string(req.ModelType),
		EntityID:        req.EntityID,
		PredictionValue: req.PredictionValue,
	})
	if err == nil && isNullJSON(technical) {
		// success=true must always carry a technical explanation.
		err = mlapi.ErrEmptyExplanation
	}
	if err != nil {
		e := classify(err)
		if e.Kind == KindServiceUnavailable {
			log.Warn("explain: ML API unavailable", "error", err)
		} else {
			log.Error("explain: ML API call failed", "kind", e.Kind, "error", err)
		}
		return Result{Response: Failed(req, ts, e.Message), Humanization: notReached, Duration: time.Since(start)}, e
	}

	// ── Humanizing ────────────────────────────────────────────────────────────
	outcome := o.humanize(ctx, req, technical)
	if outcome.Status == StageFailed {
		log.Warn("explain: humanization degraded, returning technical explanation only", "error", outcome.Err)
	}

	// ── AssemblingResponse ────────────────────────────────────────────────────
	resp := Response{
		Success:   true,
		Technical: technical,
		ModelType: req.ModelType,
		EntityID:  req.EntityID,
		Timestamp: ts,
	}
	if outcome.Status == StageSucceeded {
		text := outcome.Text
		resp.HumanReadable = &text
	}

	return Result{Response: resp, Humanization: outcome, Duration: time.Since(start)}, nil
}

// humanize runs the secondary stage. Every failure, including a panic in the
// provider, is absorbed into the outcome.
func (o *Orchestrator) humanize(ctx context.Context, req Request, technical json.RawMessage) (outcome StageOutcome) {
	if !req.WantsHumanReadable() {
		return StageOutcome{Status: StageSkipped, Reason: SkipNotRequested}
	}
	if o.humanizer == nil || !o.humanizer.Enabled() {
		return StageOutcome{Status: StageSkipped, Reason: SkipNotConfigured}
	}

	defer func() {
		if p := recover(); p != nil {
			outcome = StageOutcome{Status: StageFailed, Err: fmt.Errorf("explain: humanizer panic: %v", p)}
		}
	}()

	text, err := o.humanizer.Humanize(ctx, technical)
	if err != nil {
		return StageOutcome{Status: StageFailed, Err: err}
	}
	if text == "" {
		return StageOutcome{Status: StageFailed, Err: fmt.Errorf("explain: humanizer returned empty text")}
	}
	return StageOutcome{Status: StageSucceeded, Text: text}
}

// isNullJSON reports whether raw is empty or the JSON literal null.
func isNullJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
