package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/nyashahama/gati-explain-gateway/internal/explain"
	"github.com/nyashahama/gati-explain-gateway/internal/mlapi"
	"github.com/nyashahama/gati-explain-gateway/internal/store"
)

// ─── POST /api/explain ────────────────────────────────────────────────────────
//
// Body: {modelType, entityId?, predictionValue?, humanReadable?}. Every
// outcome, including a malformed body, is answered with an explain.Response.

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	var req explain.Request
	if err := decode(w, r, &req); err != nil {
		msg := "invalid request body: " + err.Error()
		respond(w, http.StatusBadRequest, explain.Failed(req, time.Now().UTC(), msg))
		return
	}

	res, err := s.explainer.Explain(r.Context(), req)
	status := statusFor(err)

	s.enqueueAudit(r, req, res, status, err)
	respond(w, status, res.Response)
}

// statusFor maps an orchestration error to its HTTP status. Humanization
// never produces an error, so a nil err is always 200.
func statusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch explain.KindOf(err) {
	case explain.KindValidation:
		return http.StatusBadRequest
	case explain.KindServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// enqueueAudit hands the outcome to the audit pool. Failures are logged and
// never affect the response.
func (s *Server) enqueueAudit(r *http.Request, req explain.Request, res explain.Result, status int, err error) {
	if s.audit == nil {
		return
	}

	rec := store.ExplanationRecord{
		RequestID:       middleware.GetReqID(r.Context()),
		ModelType:       string(req.ModelType),
		EntityID:        req.EntityID,
		PredictionValue: req.PredictionValue,
		Success:         res.Response.Success,
		HTTPStatus:      status,
		Technical:       res.Response.Technical,
		HumanizeStatus:  string(res.Humanization.Status),
		HumanizeReason:  res.Humanization.Reason,
		HumanReadable:   res.Response.HumanReadable,
		Duration:        res.Duration,
	}
	if res.Humanization.Err != nil {
		rec.HumanizeError = res.Humanization.Err.Error()
	}
	if err != nil {
		rec.ErrorKind = string(explain.KindOf(err))
		if res.Response.Error != nil {
			rec.ErrorMessage = *res.Response.Error
		}
		var ue *mlapi.UnavailableError
		if errors.As(err, &ue) {
			rec.UnavailableReason = ue.Reason
		}
	}

	if qErr := s.audit.Enqueue(r.Context(), rec); qErr != nil {
		s.logger.Warn("audit record not queued",
			"error", qErr,
			"request_id", rec.RequestID,
		)
	}
}

// ─── GET /api/explain ─────────────────────────────────────────────────────────

type usageField struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Required    bool     `json:"required"`
	Values      []string `json:"values,omitempty"`
	Description string   `json:"description"`
}

type usageResponse struct {
	Endpoint    string            `json:"endpoint"`
	Method      string            `json:"method"`
	Description string            `json:"description"`
	Body        []usageField      `json:"body"`
	Statuses    map[string]string `json:"statuses"`
	Example     map[string]any    `json:"example"`
}

func (s *Server) handleExplainUsage(w http.ResponseWriter, r *http.Request) {
	types := make([]string, len(explain.ModelTypes))
	for i, t := range explain.ModelTypes {
		types[i] = string(t)
	}

	respond(w, http.StatusOK, usageResponse{
		Endpoint:    "/api/explain",
		Method:      http.MethodPost,
		Description: "Explain a model prediction. Returns the technical explanation and, when available, a plain-language summary.",
		Body: []usageField{
			{Name: "modelType", Type: "string", Required: true, Values: types, Description: "Model whose prediction is explained."},
			{Name: "entityId", Type: "string", Description: "Entity the prediction refers to, e.g. state-MH."},
			{Name: "predictionValue", Type: "number | object", Description: "Prediction to explain, forwarded as-is."},
			{Name: "humanReadable", Type: "boolean", Description: "Request a plain-language summary. Defaults to true."},
		},
		Statuses: map[string]string{
			"200": "technical explanation produced; humanReadable may be null",
			"400": "modelType missing or not recognised",
			"503": "explanation service offline or timed out",
			"500": "explanation service error or unexpected failure",
		},
		Example: map[string]any{
			"modelType":       explain.ModelAnomaly,
			"entityId":        "state-MH",
			"predictionValue": 0.92,
			"humanReadable":   true,
		},
	})
}
