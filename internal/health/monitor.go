// Package health tracks whether the explanation service is reachable and
// publishes the result to both the HTTP readiness probe and the gRPC
// grpc.health.v1.Health service.
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name reported for the gateway. The
// empty name ("") carries the same status for clients that check the server
// as a whole.
const ServiceName = "gati.explain.Gateway"

// Pinger probes a backend. *mlapi.Client implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// State is the last observed backend state.
type State string

const (
	StateUnknown    State = "unknown"
	StateServing    State = "serving"
	StateNotServing State = "not_serving"
)

// Status is a snapshot of the most recent probe.
type Status struct {
	State     State     `json:"state"`
	CheckedAt time.Time `json:"checkedAt,omitzero"`
	Error     string    `json:"error,omitempty"`
}

// Config tunes the probe loop. Zero fields fall back to defaults.
type Config struct {
	// Interval between probes. Default: 15s.
	Interval time.Duration
	// Timeout per probe. Default: 5s.
	Timeout time.Duration
}

// Monitor periodically probes a backend and records the outcome. The zero
// status is StateUnknown until the first probe completes.
type Monitor struct {
	pinger Pinger
	grpc   *grpchealth.Server
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	status Status
}

// NewMonitor returns a Monitor. grpcHealth may be nil when no gRPC listener
// is served.
func NewMonitor(pinger Pinger, grpcHealth *grpchealth.Server, cfg Config, logger *slog.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	m := &Monitor{
		pinger: pinger,
		grpc:   grpcHealth,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		status: Status{State: StateUnknown},
	}
	m.publish(StateUnknown)
	return m
}

// Run probes immediately and then on every Interval until ctx is cancelled.
// It always returns nil so it can be supervised by an errgroup.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.Check(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check runs one probe, records it, and returns the new status.
func (m *Monitor) Check(ctx context.Context) Status {
	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	err := m.pinger.Ping(probeCtx)
	cancel()

	next := Status{State: StateServing, CheckedAt: m.now().UTC()}
	if err != nil {
		next.State = StateNotServing
		next.Error = err.Error()
	}

	m.mu.Lock()
	prev := m.status.State
	m.status = next
	m.mu.Unlock()

	if prev != next.State {
		if err != nil {
			m.logger.Warn("health: explanation service not serving", "error", err)
		} else {
			m.logger.Info("health: explanation service serving")
		}
		m.publish(next.State)
	}
	return next
}

// Status returns the most recent probe result.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Ready reports whether the last probe succeeded.
func (m *Monitor) Ready() bool {
	return m.Status().State == StateServing
}

func (m *Monitor) publish(s State) {
	if m.grpc == nil {
		return
	}
	st := healthpb.HealthCheckResponse_NOT_SERVING
	switch s {
	case StateServing:
		st = healthpb.HealthCheckResponse_SERVING
	case StateUnknown:
		st = healthpb.HealthCheckResponse_UNKNOWN
	}
	m.grpc.SetServingStatus("", st)
	m.grpc.SetServingStatus(ServiceName, st)
}
