package wait

import (
	"errors"
	"fmt"
	"time"

	"github.com/melih-ucgun/vigil/internal/status"
)

// ErrInvalidSuccesses is returned before any fetch when the required number
// of consecutive ready reads is not positive.
var ErrInvalidSuccesses = errors.New("wait: successes must be at least 1")

// SourceError wraps a failure of the status source. The poll ends on the
// first one; it is never retried.
type SourceError struct {
	Err error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("wait: fetching status: %v", e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// WaitError is returned when the error predicate reports true. Status is the
// snapshot it reported on.
type WaitError struct {
	Predicate string
	Status    *status.Status
}

func (e *WaitError) Error() string {
	name := e.Predicate
	if name == "" {
		name = "error function"
	}
	return fmt.Sprintf("wait: %s returned true\n%s", name, e.Status)
}

// TimeoutError is returned when the time budget runs out before enough
// consecutive ready reads. Status is the last snapshot fetched, or nil if
// none was.
type TimeoutError struct {
	Timeout time.Duration
	Status  *status.Status
}

func (e *TimeoutError) Error() string {
	if e.Status == nil {
		return fmt.Sprintf("wait timed out after %s", e.Timeout)
	}
	return fmt.Sprintf("wait timed out after %s\n%s", e.Timeout, e.Status)
}
