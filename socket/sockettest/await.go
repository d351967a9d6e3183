package sockettest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kleeedolinux/socket.go/socket"
)

type waitConfig struct {
	timeout         time.Duration
	includeExisting bool
}

type WaitOption func(*waitConfig)

// Timeout overrides the Socket's default timeout for one wait.
func Timeout(d time.Duration) WaitOption {
	return func(c *waitConfig) {
		c.timeout = d
	}
}

// ExcludeExisting makes AwaitMessage ignore occurrences already in the ledger
// and wait for a new one.
func ExcludeExisting() WaitOption {
	return func(c *waitConfig) {
		c.includeExisting = false
	}
}

func (s *Socket) waitConfig(opts []WaitOption) waitConfig {
	cfg := waitConfig{timeout: s.timeout, includeExisting: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// pending is one deferred wait. done closes when the condition is met; abort,
// if set, closes when it can no longer be met.
type pending struct {
	done     <-chan struct{}
	abort    <-chan struct{}
	abortErr error
	detach   func()
	recheck  func() bool
	expired  *TimeoutError
}

// settle blocks until p resolves, the timer fires or ctx is done. The timer
// and listener are released on every path.
func (s *Socket) settle(ctx context.Context, timeout time.Duration, p pending) error {
	timer := s.clock.NewTimer(timeout)
	defer timer.Stop()
	defer p.detach()

	select {
	case <-p.done:
		return nil
	case <-p.abort:
		select {
		case <-p.done:
			return nil
		default:
		}
		return p.abortErr
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C():
		p.detach()

		select {
		case <-p.done:
			return nil
		default:
		}
		if p.recheck() {
			s.logger.Debug("condition met on timeout re-check",
				zap.Stringer("kind", p.expired.Kind),
				zap.Any("expected", p.expired.Expected))
			return nil
		}

		p.expired.After = timeout
		return p.expired
	}
}

// AwaitState waits for the connection to reach target, which must be
// StateOpen or StateClosed. Waiting for StateOpen on a closed socket fails
// with ErrSocketClosed.
func (s *Socket) AwaitState(ctx context.Context, target socket.State, opts ...WaitOption) error {
	if target != socket.StateOpen && target != socket.StateClosed {
		return fmt.Errorf("%w: %v", ErrInvalidState, target)
	}
	cfg := s.waitConfig(opts)

	current := s.conn.State()
	if current == target {
		return nil
	}
	if current == socket.StateClosed {
		return s.closedErr()
	}

	reached, signalReached := signal()
	closed, signalClosed := signal()

	var offs []func()
	if target == socket.StateOpen {
		offs = append(offs,
			s.conn.On(socket.EventOpen, signalReached),
			s.conn.On(socket.EventClose, signalClosed))
	} else {
		offs = append(offs, s.conn.On(socket.EventClose, signalReached))
	}
	var detachOnce sync.Once
	detach := func() {
		detachOnce.Do(func() {
			for _, off := range offs {
				off()
			}
		})
	}

	// The transition may have happened before the listeners were attached.
	switch s.conn.State() {
	case target:
		detach()
		return nil
	case socket.StateClosed:
		detach()
		return s.closedErr()
	}

	err := s.settle(ctx, cfg.timeout, pending{
		done:     reached,
		abort:    closed,
		abortErr: ErrSocketClosed,
		detach:   detach,
		recheck:  func() bool { return s.conn.State() == target },
		expired:  &TimeoutError{Kind: WaitState, Expected: target},
	})
	if err == ErrSocketClosed {
		return s.closedErr()
	}
	return err
}

func (s *Socket) closedErr() error {
	if cause := s.Err(); cause != nil {
		return fmt.Errorf("%w: %w", ErrSocketClosed, cause)
	}
	return ErrSocketClosed
}

// AwaitMessage waits until value has been received. By default an occurrence
// already in the ledger satisfies the wait; with ExcludeExisting only an
// occurrence arriving after the call does.
func (s *Socket) AwaitMessage(ctx context.Context, value string, opts ...WaitOption) error {
	cfg := s.waitConfig(opts)

	baseline := -1
	_, w := s.ledger.watch(
		func(messages []string) bool {
			if cfg.includeExisting && contains(messages, value) {
				return true
			}
			baseline = s.ledger.positionLocked(value)
			return false
		},
		func(_ []string, latest string) bool {
			return latest == value
		},
	)
	if w == nil {
		return nil
	}

	return s.settle(ctx, cfg.timeout, pending{
		done:   w.done,
		detach: func() { s.ledger.unwatch(w) },
		recheck: func() bool {
			_, ok := s.ledger.check(func(messages []string) bool {
				if cfg.includeExisting {
					return contains(messages, value)
				}
				return contains(messages, value) && s.ledger.positionLocked(value) > baseline
			})
			return ok
		},
		expired: &TimeoutError{Kind: WaitMessage, Expected: value},
	})
}

// AwaitCount waits until at least count messages have been received and
// returns a copy of the ledger at that point.
func (s *Socket) AwaitCount(ctx context.Context, count int, opts ...WaitOption) ([]string, error) {
	cfg := s.waitConfig(opts)

	enough := func(messages []string) bool { return len(messages) >= count }

	snapshot, w := s.ledger.watch(enough, func(messages []string, _ string) bool {
		return enough(messages)
	})
	if w == nil {
		return snapshot, nil
	}

	var recovered []string
	err := s.settle(ctx, cfg.timeout, pending{
		done:   w.done,
		detach: func() { s.ledger.unwatch(w) },
		recheck: func() bool {
			var ok bool
			recovered, ok = s.ledger.check(enough)
			return ok
		},
		expired: &TimeoutError{Kind: WaitCount, Expected: count},
	})
	if err != nil {
		return nil, err
	}

	select {
	case <-w.done:
		return w.result, nil
	default:
		return recovered, nil
	}
}

func signal() (<-chan struct{}, socket.Listener) {
	ch := make(chan struct{})
	var once sync.Once
	return ch, func(string) {
		once.Do(func() { close(ch) })
	}
}
