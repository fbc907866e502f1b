package transcribe

import (
	"errors"
	"fmt"

	"github.com/harunnryd/tutorcore/pkg/errorsx"
	"github.com/harunnryd/tutorcore/pkg/gateway"
	"github.com/harunnryd/tutorcore/pkg/resilience"
)

// ErrInvalidResponse is the shape failure for recognizer answers that lack
// the expected field.
var ErrInvalidResponse = errors.New("invalid API response")

// Error is returned by submit and storage operations. Remote holds the
// diagnostic text the remote service sent back, when there was one.
type Error struct {
	Op     string
	Reason errorsx.ReasonCode
	Remote string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("transcribe %s: %v", e.Op, e.Err)
	if e.Remote != "" {
		msg += " (remote: " + e.Remote + ")"
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// newError classifies err and keeps the remote body of a status or rate
// limit error.
func newError(op string, err error) *Error {
	reason := errorsx.Reason(err)
	if reason == errorsx.ReasonUnknown {
		reason = errorsx.ReasonTransport
	}
	out := &Error{Op: op, Reason: reason, Err: errorsx.Wrap(err, reason)}
	var (
		status    *gateway.StatusError
		rateLimit resilience.RateLimitError
	)
	switch {
	case errors.As(err, &status):
		out.Remote = status.Body
	case errors.As(err, &rateLimit):
		out.Remote = rateLimit.Message
	}
	return out
}

func shapeError(op, remote string) *Error {
	return &Error{
		Op:     op,
		Reason: errorsx.ReasonShape,
		Remote: remote,
		Err:    errorsx.Wrap(ErrInvalidResponse, errorsx.ReasonShape),
	}
}
