package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Sentinel error kinds for worker engine failures. Callers branch on these to
// decide between rollback, retry and surfacing the failure as-is.
var (
	// ErrUnreachable means no connection to the engine could be
	// established. The requested operation definitely did not run.
	ErrUnreachable = errors.New("worker engine unreachable")

	// ErrTimeout means the engine accepted the connection but did not
	// answer in time. The operation may still be running engine-side.
	ErrTimeout = errors.New("worker engine timed out")
)

// APIError is a non-2xx response from the engine. The operation reached the
// engine and was rejected.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("engine returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("engine returned %d", e.StatusCode)
}

// classify maps a transport-level error onto the sentinel kinds. Timeouts are
// checked first since a timed-out dial also surfaces as a net error.
func classify(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	return err
}

// IsTimeout reports whether the error is a timeout against the engine.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsUnreachable reports whether the engine could not be reached at all.
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrUnreachable)
}

// IsConnectionFailure reports whether the operation never completed on the
// engine side, either kind.
func IsConnectionFailure(err error) bool {
	return IsTimeout(err) || IsUnreachable(err)
}
