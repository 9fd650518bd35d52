package explain_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nyashahama/gati-explain-gateway/internal/explain"
	"github.com/nyashahama/gati-explain-gateway/internal/mlapi"
)

// ─── STUBS ────────────────────────────────────────────────────────────────────

// stubFetcher records every call and returns a canned result.
type stubFetcher struct {
	mu     sync.Mutex
	calls  []mlapi.FetchParams
	result json.RawMessage
	err    error
}

func (f *stubFetcher) Fetch(_ context.Context, p mlapi.FetchParams) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, p)
	return f.result, f.err
}

func (f *stubFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// stubHumanizer records calls; panics when panicMsg is set.
type stubHumanizer struct {
	enabled  bool
	text     string
	err      error
	panicMsg string

	mu    sync.Mutex
	calls int
	input json.RawMessage
}

func (h *stubHumanizer) Enabled() bool { return h.enabled }

func (h *stubHumanizer) Humanize(_ context.Context, technical json.RawMessage) (string, error) {
	h.mu.Lock()
	h.calls++
	h.input = technical
	h.mu.Unlock()
	if h.panicMsg != "" {
		panic(h.panicMsg)
	}
	return h.text, h.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newOrchestrator(f explain.Fetcher, h explain.Humanizer) *explain.Orchestrator {
	return explain.New(f, h, discardLogger(), explain.WithClock(func() time.Time { return fixedNow }))
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool     { return &b }

const technical = `{"feature_importances":[{"feature":"volatility","contribution":0.15},{"feature":"coverage","contribution":-0.08},{"feature":"freshness","contribution":0.12}]}`

func anomalyRequest() explain.Request {
	return explain.Request{
		ModelType:       explain.ModelAnomaly,
		EntityID:        strPtr("state-MH"),
		PredictionValue: json.RawMessage(`0.92`),
		HumanReadable:   boolPtr(true),
	}
}

// ─── Validating ───────────────────────────────────────────────────────────────

func TestExplain_InvalidModelType_NoExternalCalls(t *testing.T) {
	for _, mt := range []explain.ModelType{"", "classification", "ANOMALY"} {
		t.Run(string(mt), func(t *testing.T) {
			f := &stubFetcher{result: json.RawMessage(technical)}
			h := &stubHumanizer{enabled: true, text: "x"}

			res, err := newOrchestrator(f, h).Explain(context.Background(), explain.Request{
				ModelType: mt,
				EntityID:  strPtr("state-MH"),
			})

			if explain.KindOf(err) != explain.KindValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
			if f.callCount() != 0 || h.calls != 0 {
				t.Errorf("no external call expected, got fetch=%d humanize=%d", f.callCount(), h.calls)
			}
			if res.Response.Success || res.Response.Technical != nil || res.Response.Error == nil {
				t.Errorf("invalid failure response: %+v", res.Response)
			}
		})
	}
}

func TestExplain_MissingModelType_MessageNamesField(t *testing.T) {
	f := &stubFetcher{}
	res, err := newOrchestrator(f, nil).Explain(context.Background(), explain.Request{EntityID: strPtr("state-MH")})

	if explain.KindOf(err) != explain.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := *res.Response.Error; got != "modelType is required" {
		t.Errorf("error message: got %q", got)
	}
	if res.Response.EntityID == nil || *res.Response.EntityID != "state-MH" {
		t.Errorf("entityId should be echoed, got %v", res.Response.EntityID)
	}
	if f.callCount() != 0 {
		t.Errorf("expected zero fetches, got %d", f.callCount())
	}
}

// ─── FetchingTechnical ────────────────────────────────────────────────────────

func TestExplain_Unavailable_ClassifiedAsServiceUnavailable(t *testing.T) {
	for _, reason := range []string{mlapi.ReasonUnreachable, mlapi.ReasonTimeout} {
		t.Run(reason, func(t *testing.T) {
			f := &stubFetcher{err: &mlapi.UnavailableError{Reason: reason, Err: errors.New("dial tcp: connection refused")}}
			h := &stubHumanizer{enabled: true, text: "x"}

			res, err := newOrchestrator(f, h).Explain(context.Background(), anomalyRequest())

			if explain.KindOf(err) != explain.KindServiceUnavailable {
				t.Fatalf("expected service unavailable, got %v", err)
			}
			if !strings.HasPrefix(*res.Response.Error, "ML API is offline") {
				t.Errorf("error message: got %q", *res.Response.Error)
			}
			if res.Response.Success || res.Response.Technical != nil {
				t.Errorf("failure must not carry technical: %+v", res.Response)
			}
			if h.calls != 0 {
				t.Errorf("humanizer must not run after a failed fetch, got %d calls", h.calls)
			}
			if res.Humanization.Reason != explain.SkipNotReached {
				t.Errorf("humanization reason: got %q", res.Humanization.Reason)
			}
		})
	}
}

func TestExplain_UpstreamError_CarriesStatusAndBody(t *testing.T) {
	f := &stubFetcher{err: &mlapi.UpstreamError{StatusCode: 503, Body: `{"detail":"Model anomaly not loaded."}`}}

	res, err := newOrchestrator(f, nil).Explain(context.Background(), anomalyRequest())

	if explain.KindOf(err) != explain.KindUpstream {
		t.Fatalf("expected upstream error, got %v", err)
	}
	msg := *res.Response.Error
	if !strings.Contains(msg, "503") || !strings.Contains(msg, "Model anomaly not loaded.") {
		t.Errorf("upstream diagnostics missing from %q", msg)
	}
}

func TestExplain_UnclassifiedFetchErrorIsInternal(t *testing.T) {
	f := &stubFetcher{err: errors.New("mlapi: response is not valid JSON")}

	_, err := newOrchestrator(f, nil).Explain(context.Background(), anomalyRequest())

	if explain.KindOf(err) != explain.KindInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestExplain_NullTechnicalIsInternalFailure(t *testing.T) {
	for name, body := range map[string]json.RawMessage{
		"nil":    nil,
		"null":   json.RawMessage(`null`),
		"spaced": json.RawMessage(" null "),
	} {
		t.Run(name, func(t *testing.T) {
			f := &stubFetcher{result: body}
			h := &stubHumanizer{enabled: true, text: "x"}

			res, err := newOrchestrator(f, h).Explain(context.Background(), anomalyRequest())

			if explain.KindOf(err) != explain.KindInternal {
				t.Fatalf("expected internal error, got %v", err)
			}
			if res.Response.Success || res.Response.Technical != nil || res.Response.Error == nil {
				t.Errorf("success=true requires a technical explanation: %+v", res.Response)
			}
			if h.calls != 0 {
				t.Errorf("humanizer must not run without a technical explanation, got %d calls", h.calls)
			}
		})
	}
}

func TestExplain_ForwardsRequestFields(t *testing.T) {
	f := &stubFetcher{result: json.RawMessage(technical)}

	if _, err := newOrchestrator(f, nil).Explain(context.Background(), anomalyRequest()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := f.calls[0]
	if got.ModelType != "anomaly" || got.EntityID == nil || *got.EntityID != "state-MH" || string(got.PredictionValue) != "0.92" {
		t.Errorf("unexpected fetch params: %+v", got)
	}
}

// ─── Humanizing ───────────────────────────────────────────────────────────────

func TestExplain_SuccessWithHumanization(t *testing.T) {
	f := &stubFetcher{result: json.RawMessage(technical)}
	h := &stubHumanizer{enabled: true, text: "Maharashtra shows an unusual pattern. Volatility, coverage and freshness drove it. These affect data quality. Review recent enrolment centres."}

	res, err := newOrchestrator(f, h).Explain(context.Background(), anomalyRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp := res.Response
	if !resp.Success {
		t.Fatal("expected success")
	}
	if string(resp.Technical) != technical {
		t.Errorf("technical changed: %s", resp.Technical)
	}
	if resp.HumanReadable == nil || *resp.HumanReadable != h.text {
		t.Errorf("humanReadable: got %v", resp.HumanReadable)
	}
	if resp.ModelType != explain.ModelAnomaly || *resp.EntityID != "state-MH" {
		t.Errorf("identity fields: %+v", resp)
	}
	if !resp.Timestamp.Equal(fixedNow) {
		t.Errorf("timestamp: got %s", resp.Timestamp)
	}
	if resp.Error != nil {
		t.Errorf("error should be null, got %q", *resp.Error)
	}
	if string(h.input) != technical {
		t.Errorf("humanizer should receive the technical payload, got %s", h.input)
	}
	if res.Humanization.Status != explain.StageSucceeded {
		t.Errorf("stage: got %s", res.Humanization.Status)
	}
}

func TestExplain_HumanizationFailureIsAbsorbed(t *testing.T) {
	tests := map[string]*stubHumanizer{
		"provider error": {enabled: true, err: errors.New("quota exceeded")},
		"empty text":     {enabled: true, text: ""},
		"panic":          {enabled: true, panicMsg: "nil map"},
	}
	for name, h := range tests {
		t.Run(name, func(t *testing.T) {
			f := &stubFetcher{result: json.RawMessage(technical)}

			res, err := newOrchestrator(f, h).Explain(context.Background(), anomalyRequest())
			if err != nil {
				t.Fatalf("humanization failure must not fail the request: %v", err)
			}
			if !res.Response.Success || string(res.Response.Technical) != technical {
				t.Errorf("technical explanation lost: %+v", res.Response)
			}
			if res.Response.HumanReadable != nil {
				t.Errorf("humanReadable should be null, got %q", *res.Response.HumanReadable)
			}
			if res.Humanization.Status != explain.StageFailed || res.Humanization.Err == nil {
				t.Errorf("stage outcome: %+v", res.Humanization)
			}
		})
	}
}

func TestExplain_NotConfigured_Skipped(t *testing.T) {
	for name, h := range map[string]explain.Humanizer{
		"nil":      nil,
		"disabled": &stubHumanizer{enabled: false, text: "unused"},
	} {
		t.Run(name, func(t *testing.T) {
			f := &stubFetcher{result: json.RawMessage(technical)}

			res, err := newOrchestrator(f, h).Explain(context.Background(), anomalyRequest())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !res.Response.Success || res.Response.HumanReadable != nil {
				t.Errorf("expected technical-only success: %+v", res.Response)
			}
			if res.Humanization.Status != explain.StageSkipped || res.Humanization.Reason != explain.SkipNotConfigured {
				t.Errorf("stage outcome: %+v", res.Humanization)
			}
			if sh, ok := h.(*stubHumanizer); ok && sh.calls != 0 {
				t.Errorf("disabled humanizer was called %d times", sh.calls)
			}
		})
	}
}

func TestExplain_HumanReadableFalse_NeverInvokesHumanizer(t *testing.T) {
	f := &stubFetcher{result: json.RawMessage(technical)}
	h := &stubHumanizer{enabled: true, text: "should not appear"}

	req := anomalyRequest()
	req.HumanReadable = boolPtr(false)

	res, err := newOrchestrator(f, h).Explain(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.calls != 0 {
		t.Errorf("humanizer invoked %d times", h.calls)
	}
	if res.Response.HumanReadable != nil {
		t.Error("humanReadable should be null")
	}
	if res.Humanization.Reason != explain.SkipNotRequested {
		t.Errorf("skip reason: got %q", res.Humanization.Reason)
	}
}

func TestExplain_HumanReadableDefaultsToTrue(t *testing.T) {
	f := &stubFetcher{result: json.RawMessage(technical)}
	h := &stubHumanizer{enabled: true, text: "Prose."}

	req := anomalyRequest()
	req.HumanReadable = nil

	res, err := newOrchestrator(f, h).Explain(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.calls != 1 || res.Response.HumanReadable == nil {
		t.Errorf("omitted humanReadable should request prose: calls=%d resp=%+v", h.calls, res.Response)
	}
}

// ─── Properties ───────────────────────────────────────────────────────────────

func TestExplain_IdenticalRequestsYieldIdenticalTechnical(t *testing.T) {
	f := &stubFetcher{result: json.RawMessage(technical)}
	h := &stubHumanizer{enabled: true, text: "Varies."}
	o := newOrchestrator(f, h)

	var first json.RawMessage
	for i := range 5 {
		res, err := o.Explain(context.Background(), anomalyRequest())
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if i == 0 {
			first = res.Response.Technical
			continue
		}
		if string(res.Response.Technical) != string(first) {
			t.Errorf("call %d: technical differs", i)
		}
	}
}

func TestExplain_ConcurrentRequestsAreIndependent(t *testing.T) {
	f := &stubFetcher{result: json.RawMessage(technical)}
	o := newOrchestrator(f, &stubHumanizer{enabled: true, text: "ok."})

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("district-%d", i)
			res, err := o.Explain(context.Background(), explain.Request{ModelType: explain.ModelRisk, EntityID: &id})
			if err != nil {
				t.Errorf("request %d: %v", i, err)
				return
			}
			if *res.Response.EntityID != id {
				t.Errorf("request %d: entityId crossed over: %s", i, *res.Response.EntityID)
			}
		}(i)
	}
	wg.Wait()

	if f.callCount() != 20 {
		t.Errorf("expected exactly one fetch per request, got %d", f.callCount())
	}
}

func TestResponse_JSONShape(t *testing.T) {
	f := &stubFetcher{err: &mlapi.UnavailableError{Reason: mlapi.ReasonUnreachable, Err: errors.New("refused")}}
	res, _ := newOrchestrator(f, nil).Explain(context.Background(), anomalyRequest())

	b, err := json.Marshal(res.Response)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, k := range []string{"success", "technical", "humanReadable", "modelType", "entityId", "timestamp", "error"} {
		if _, ok := m[k]; !ok {
			t.Errorf("missing key %q in %s", k, b)
		}
	}
	if string(m["technical"]) != "null" || string(m["humanReadable"]) != "null" {
		t.Errorf("failure response should have null technical/humanReadable: %s", b)
	}
}
