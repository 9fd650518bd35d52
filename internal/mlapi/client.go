// Package mlapi is the client for the explanation service (the ML API). It
// makes exactly one bounded call per Fetch and normalises every failure into
// either ErrUnavailable or *UpstreamError so callers can classify it.
package mlapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultTimeout bounds a single explanation call.
const DefaultTimeout = 30 * time.Second

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

// ErrUnavailable means the explanation service could not be reached or did
// not answer within the timeout. Both cases are the same condition to the
// caller; UnavailableError.Reason keeps them apart for logs.
var ErrUnavailable = errors.New("mlapi: explanation service unavailable")

// ErrEmptyExplanation means the service answered 2xx with no explanation:
// an empty body or the JSON literal null.
var ErrEmptyExplanation = errors.New("mlapi: explanation service returned an empty explanation")

// Reasons carried by UnavailableError.
const (
	ReasonUnreachable = "unreachable"
	ReasonTimeout     = "timeout"
	ReasonNoBaseURL   = "misconfigured"
)

// UnavailableError wraps the transport failure behind ErrUnavailable.
type UnavailableError struct {
	Reason string
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("mlapi: explanation service unavailable (%s): %v", e.Reason, e.Err)
}

// Is makes errors.Is(err, ErrUnavailable) true for every UnavailableError.
func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

func (e *UnavailableError) Unwrap() error { return e.Err }

// UpstreamError means the service answered with a non-2xx status.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("mlapi: explanation service returned %d: %s", e.StatusCode, e.Body)
}

// Config is the explicit configuration of a Client.
type Config struct {
	// BaseURL is the ML API root, e.g. "http://localhost:8000".
	BaseURL string
	// Timeout bounds each Fetch. Zero means DefaultTimeout.
	Timeout time.Duration
}

// FetchParams identifies the prediction to explain. EntityID and
// PredictionValue are optional and sent as null when absent.
type FetchParams struct {
	ModelType       string
	EntityID        *string
	PredictionValue json.RawMessage
}

// explainRequest is the wire shape expected by POST /api/explain.
type explainRequest struct {
	ModelType       string          `json:"model_type"`
	EntityID        *string         `json:"entity_id"`
	PredictionValue json.RawMessage `json:"prediction_value"`
}

// Client calls the explanation service. It is safe for concurrent use.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient returns a Client for cfg. A bad BaseURL is not rejected here:
// every call reports ErrUnavailable instead, so a misconfigured deployment
// still answers requests with a 503.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: cfg.BaseURL,
		timeout: timeout,
		// No client-level Timeout: the per-call context carries the bound so
		// the caller's cancellation is honoured too.
		httpClient: &http.Client{},
	}
}

// Fetch requests a technical explanation and returns the response body
// unchanged. It never retries.
func (c *Client) Fetch(ctx context.Context, p FetchParams) (json.RawMessage, error) {
	endpoint, err := c.endpoint("/api/explain")
	if err != nil {
		return nil, &UnavailableError{Reason: ReasonNoBaseURL, Err: err}
	}

	body, err := json.Marshal(explainRequest{
		ModelType:       p.ModelType,
		EntityID:        p.EntityID,
		PredictionValue: p.PredictionValue,
	})
	if err != nil {
		return nil, fmt.Errorf("mlapi: marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &UnavailableError{Reason: ReasonNoBaseURL, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, unavailable(ctx, err)
	}
	defer resp.Body.Close()

	// One extra byte tells a body at the cap apart from one past it.
	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		// The deadline can also fire while the body is streaming.
		return nil, unavailable(ctx, err)
	}
	tooLarge := len(respBytes) > maxBodyBytes
	if tooLarge {
		respBytes = respBytes[:maxBodyBytes]
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(respBytes))}
	}

	if tooLarge {
		return nil, fmt.Errorf("mlapi: response too large (over %d bytes)", maxBodyBytes)
	}
	trimmed := bytes.TrimSpace(respBytes)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, ErrEmptyExplanation
	}
	if !json.Valid(respBytes) {
		return nil, fmt.Errorf("mlapi: response is not valid JSON (%.200s)", respBytes)
	}

	return json.RawMessage(respBytes), nil
}

// Ping calls GET /api/health and reports whether the service answered 2xx.
// Used by the health monitor, never by the request path.
func (c *Client) Ping(ctx context.Context) error {
	endpoint, err := c.endpoint("/api/health")
	if err != nil {
		return &UnavailableError{Reason: ReasonNoBaseURL, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &UnavailableError{Reason: ReasonNoBaseURL, Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return unavailable(ctx, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &UpstreamError{StatusCode: resp.StatusCode}
	}
	return nil
}

// Close releases idle keep-alive connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func (c *Client) endpoint(path string) (string, error) {
	if c.baseURL == "" {
		return "", errors.New("base URL is not configured")
	}
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("base URL %q is not an absolute http(s) URL", c.baseURL)
	}
	return u.JoinPath(path).String(), nil
}

// unavailable tells a deadline apart from every other transport failure.
func unavailable(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &UnavailableError{Reason: ReasonTimeout, Err: err}
	}
	return &UnavailableError{Reason: ReasonUnreachable, Err: err}
}
