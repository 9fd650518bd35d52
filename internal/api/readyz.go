package api

import (
	"net/http"

	"github.com/nyashahama/gati-explain-gateway/internal/health"
)

type humanizationStatus struct {
	Enabled  bool   `json:"enabled"`
	Provider string `json:"provider,omitempty"`
}

type readyzResponse struct {
	Ready              bool               `json:"ready"`
	ExplanationService health.Status      `json:"explanationService"`
	Humanization       humanizationStatus `json:"humanization"`
}

// ─── GET /readyz ──────────────────────────────────────────────────────────────
//
// 200 once the last probe of the explanation service succeeded, 503
// otherwise. Humanization is reported but never affects readiness.

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	body := readyzResponse{
		Ready:              s.readiness.Ready(),
		ExplanationService: s.readiness.Status(),
		Humanization: humanizationStatus{
			Enabled:  s.cfg.HumanizeProvider != "",
			Provider: s.cfg.HumanizeProvider,
		},
	}

	status := http.StatusOK
	if !body.Ready {
		status = http.StatusServiceUnavailable
	}
	respond(w, status, body)
}
