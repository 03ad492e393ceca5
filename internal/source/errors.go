package source

import (
	"fmt"
	"time"
)

// TimeoutError means an adapter call exceeded its budget. The call itself
// may still be running.
type TimeoutError struct {
	Adapter string
	Op      string
	After   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s.%s: timed out after %s", e.Adapter, e.Op, e.After)
}

// UnavailableError wraps the failure of an adapter call.
type UnavailableError struct {
	Adapter string
	Op      string
	Err     error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s.%s: unavailable: %v", e.Adapter, e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }
