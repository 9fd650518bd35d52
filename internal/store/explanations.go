package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/nyashahama/gati-explain-gateway/internal/db"
)

// ─── INPUT TYPES ─────────────────────────────────────────────────────────────

// ExplanationRecord is the audit view of one orchestration. Empty strings
// and nil pointers are stored as NULL.
type ExplanationRecord struct {
	// ID is generated by RecordExplanation when zero.
	ID                uuid.UUID
	RequestID         string
	ModelType         string
	EntityID          *string
	PredictionValue   json.RawMessage
	Success           bool
	HTTPStatus        int
	ErrorKind         string
	ErrorMessage      string
	UnavailableReason string
	Technical         json.RawMessage
	HumanizeStatus    string
	HumanizeReason    string
	HumanizeError     string
	HumanReadable     *string
	Duration          time.Duration
}

// ─── METHODS ─────────────────────────────────────────────────────────────────

// RecordExplanation appends rec to the audit trail and returns the stored row.
func (s *Store) RecordExplanation(ctx context.Context, rec ExplanationRecord) (db.Explanation, error) {
	id := rec.ID
	if id == uuid.Nil {
		var err error
		if id, err = uuid.NewV7(); err != nil {
			return db.Explanation{}, fmt.Errorf("store: generate id: %w", err)
		}
	}

	row, err := s.q.InsertExplanation(ctx, db.InsertExplanationParams{
		ID:                id,
		RequestID:         nullString(rec.RequestID),
		ModelType:         rec.ModelType,
		EntityID:          nullStringPtr(rec.EntityID),
		PredictionValue:   nullJSON(rec.PredictionValue),
		Success:           rec.Success,
		HttpStatus:        int32(rec.HTTPStatus),
		ErrorKind:         nullString(rec.ErrorKind),
		ErrorMessage:      nullString(rec.ErrorMessage),
		UnavailableReason: nullString(rec.UnavailableReason),
		Technical:         nullJSON(rec.Technical),
		HumanizeStatus:    rec.HumanizeStatus,
		HumanizeReason:    nullString(rec.HumanizeReason),
		HumanizeError:     nullString(rec.HumanizeError),
		HumanReadable:     nullStringPtr(rec.HumanReadable),
		DurationMs:        int32(rec.Duration.Milliseconds()),
	})
	if err != nil {
		return db.Explanation{}, fmt.Errorf("store: insert explanation: %w", err)
	}
	return row, nil
}

// ─── HELPERS ─────────────────────────────────────────────────────────────────

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// nullJSON maps an absent or JSON-null payload to SQL NULL.
func nullJSON(raw json.RawMessage) pqtype.NullRawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return pqtype.NullRawMessage{}
	}
	return pqtype.NullRawMessage{RawMessage: trimmed, Valid: true}
}
