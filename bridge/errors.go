package bridge

import (
	"errors"
	"fmt"
	"time"
)

// ErrTooManyPending is returned when the pending request limit is reached
var ErrTooManyPending = errors.New("too many pending requests")

// TimeoutError reports that no reply arrived within the deadline. It is a
// normal, non-fatal outcome: the caller gets it as a value, the bridge keeps
// running.
type TimeoutError struct {
	CorrelationID string
	Timeout       time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("no reply within %s for request %s", e.Timeout, e.CorrelationID)
}

// TransportError reports that the outbound send itself failed. The pending
// entry is already gone when the caller sees this.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport send failed: %v", e.Err)
}

// Unwrap returns the underlying transport error
func (e *TransportError) Unwrap() error { return e.Err }
