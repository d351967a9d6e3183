package sockettest

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout is matched by every *TimeoutError.
	ErrTimeout = errors.New("wait timed out")

	// ErrSocketClosed is returned when waiting for StateOpen on a socket that
	// has already closed.
	ErrSocketClosed = errors.New("socket closed")

	ErrInvalidState = errors.New("only open and closed states can be awaited")
)

// WaitKind identifies which waiter timed out.
type WaitKind int

const (
	WaitState WaitKind = iota
	WaitMessage
	WaitCount
)

func (k WaitKind) String() string {
	switch k {
	case WaitState:
		return "state"
	case WaitMessage:
		return "message"
	case WaitCount:
		return "count"
	}
	return "unknown"
}

// TimeoutError reports a wait whose condition still did not hold after the
// final re-check.
type TimeoutError struct {
	Kind     WaitKind
	Expected interface{}
	After    time.Duration
}

func (e *TimeoutError) Error() string {
	switch e.Kind {
	case WaitState:
		return fmt.Sprintf("timed out after %s waiting for state %v", e.After, e.Expected)
	case WaitMessage:
		return fmt.Sprintf("timed out after %s waiting for message %q", e.After, e.Expected)
	case WaitCount:
		return fmt.Sprintf("timed out after %s waiting for %v messages", e.After, e.Expected)
	}
	return fmt.Sprintf("timed out after %s waiting for %v", e.After, e.Expected)
}

func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}
