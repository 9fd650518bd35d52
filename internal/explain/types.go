// Package explain is the explanation orchestrator. It validates a request,
// fetches the technical explanation from the ML API, optionally humanizes it,
// and classifies any failure. Only the first stage decides success: the
// humanization stage can fail without affecting the response status.
package explain

import (
	"encoding/json"
	"time"
)

// ModelType selects which model's prediction is explained.
type ModelType string

const (
	ModelAnomaly  ModelType = "anomaly"
	ModelRisk     ModelType = "risk"
	ModelForecast ModelType = "forecast"
)

// ModelTypes lists the recognised values in display order.
var ModelTypes = []ModelType{ModelAnomaly, ModelRisk, ModelForecast}

// Request is the inbound explanation request.
type Request struct {
	ModelType ModelType `json:"modelType" validate:"required,oneof=anomaly risk forecast"`
	EntityID  *string   `json:"entityId,omitempty"`
	// PredictionValue is a number or a structured value; it is forwarded as-is.
	PredictionValue json.RawMessage `json:"predictionValue,omitempty"`
	// HumanReadable defaults to true when omitted.
	HumanReadable *bool `json:"humanReadable,omitempty"`
}

// WantsHumanReadable reports whether the caller asked for prose.
func (r Request) WantsHumanReadable() bool {
	return r.HumanReadable == nil || *r.HumanReadable
}

// Response is returned for every request, successful or not.
//
// Success=true implies Technical is set; Success=false implies Technical is
// null and Error is set.
type Response struct {
	Success       bool            `json:"success"`
	Technical     json.RawMessage `json:"technical"`
	HumanReadable *string         `json:"humanReadable"`
	ModelType     ModelType       `json:"modelType,omitempty"`
	EntityID      *string         `json:"entityId"`
	Timestamp     time.Time       `json:"timestamp"`
	Error         *string         `json:"error"`
}

// StageStatus is the outcome of the humanization stage.
type StageStatus string

const (
	StageSucceeded StageStatus = "succeeded"
	StageSkipped   StageStatus = "skipped"
	StageFailed    StageStatus = "failed"
)

// Skip reasons reported in StageOutcome.Reason.
const (
	SkipNotRequested  = "not_requested"
	SkipNotConfigured = "not_configured"
	SkipNotReached    = "not_reached"
)

// StageOutcome records what happened in the humanization stage. A failed
// stage keeps its error for logging; it never reaches the caller.
type StageOutcome struct {
	Status StageStatus
	Reason string
	Text   string
	Err    error
}

// Result is a Response plus the orchestration details the HTTP layer logs
// and audits.
type Result struct {
	Response     Response
	Humanization StageOutcome
	Duration     time.Duration
}

// Failed builds the response for a request that did not produce a technical
// explanation.
func Failed(req Request, ts time.Time, message string) Response {
	return Response{
		Success:   false,
		ModelType: req.ModelType,
		EntityID:  req.EntityID,
		Timestamp: ts,
		Error:     &message,
	}
}
