package venue

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Meta identifies one adapter call.
type Meta struct {
	Venue     string    `json:"venue"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Envelope is the uniform response shape for every adapter call: success
// with data, or failure with a taxonomy error, always with call metadata.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   *Error `json:"error,omitempty"`
	Meta    Meta   `json:"metadata"`
}

func newMeta(venueName string) Meta {
	return Meta{
		Venue:     venueName,
		Timestamp: time.Now().UTC(),
		RequestID: uuid.NewString(),
	}
}

// OK wraps a successful call result.
func OK(venueName string, data any) Envelope {
	return Envelope{Success: true, Data: data, Meta: newMeta(venueName)}
}

// Fail wraps a failed call. Non-taxonomy errors are coerced to a generic
// order error so the envelope always carries a stable code.
func Fail(venueName string, err error) Envelope {
	var ve *Error
	if !errors.As(err, &ve) {
		ve = NewOrderError(venueName, err.Error(), err)
	}
	return Envelope{Success: false, Error: ve, Meta: newMeta(venueName)}
}

// Call invokes op and wraps its outcome in an envelope.
func Call(venueName string, op func() (any, error)) Envelope {
	data, err := op()
	if err != nil {
		return Fail(venueName, err)
	}
	return OK(venueName, data)
}
