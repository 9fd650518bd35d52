package explain

import (
	"errors"
	"fmt"

	"github.com/nyashahama/gati-explain-gateway/internal/mlapi"
)

// Kind classifies a failed orchestration for the caller.
type Kind string

const (
	KindValidation         Kind = "validation_error"
	KindServiceUnavailable Kind = "service_unavailable"
	KindUpstream           Kind = "upstream_error"
	KindInternal           Kind = "internal_error"
)

// OfflineMessage is shown when the ML API cannot be reached or timed out.
const OfflineMessage = "ML API is offline. Start the explanation service and try again."

// Error is a classified orchestration failure. Message is safe to return to
// the caller; Err keeps the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("explain: %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("explain: %s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// messageOf returns the caller-facing message of err.
func messageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// classify maps an explanation-client failure to a caller-facing Error.
func classify(err error) *Error {
	var upstream *mlapi.UpstreamError
	switch {
	case errors.Is(err, mlapi.ErrUnavailable):
		return &Error{Kind: KindServiceUnavailable, Message: OfflineMessage, Err: err}
	case errors.As(err, &upstream):
		return &Error{
			Kind:    KindUpstream,
			Message: fmt.Sprintf("ML API error: %d - %s", upstream.StatusCode, upstream.Body),
			Err:     err,
		}
	default:
		return &Error{Kind: KindInternal, Message: "failed to generate explanation: " + err.Error(), Err: err}
	}
}
