// Package loader bridges asynchronous fetches with the synchronous frame
// loop. A Slot is the per-entity state of one resource; a Loader moves slots
// through Idle, Loading and then Loaded or Failed, running the fetch on a
// background goroutine and applying its result through the world's mailbox.
package loader

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// State is the lifecycle position of a Slot.
type State int

const (
	Idle State = iota
	Loading
	Loaded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Slot holds one asynchronously produced value. The zero Slot is Idle.
type Slot[T any] struct {
	state    State
	value    T
	err      error
	attempts int
	retryAt  time.Time
	backoff  backoff.BackOff
}

// Status is the value-independent view of a slot, used by inspectors.
type Status interface {
	State() State
	Attempts() int
	Err() error
	RetryAt() time.Time
}

var _ Status = (*Slot[int])(nil)

// State returns the current lifecycle state.
func (s *Slot[T]) State() State {
	return s.state
}

// IsLoading reports whether a fetch is in flight.
func (s *Slot[T]) IsLoading() bool {
	return s.state == Loading
}

// Value returns the loaded value, if any.
func (s *Slot[T]) Value() (T, bool) {
	if s.state != Loaded {
		var zero T
		return zero, false
	}
	return s.value, true
}

// Err returns the error of the last failed attempt.
func (s *Slot[T]) Err() error {
	return s.err
}

// Attempts returns how many fetches were started for this slot.
func (s *Slot[T]) Attempts() int {
	return s.attempts
}

// RetryAt returns when a failed slot becomes eligible again. The zero time
// means the slot will not be retried.
func (s *Slot[T]) RetryAt() time.Time {
	return s.retryAt
}

// Reset returns the slot to Idle, dropping any value or error.
func (s *Slot[T]) Reset() {
	*s = Slot[T]{}
}

// due reports whether the slot may start a fetch at now.
func (s *Slot[T]) due(now time.Time) bool {
	switch s.state {
	case Idle:
		return true
	case Failed:
		return !s.retryAt.IsZero() && !now.Before(s.retryAt)
	default:
		return false
	}
}

// begin flips the slot to Loading. It must run before the fetch is handed to
// another goroutine so a second poll in the same or next tick sees the guard.
func (s *Slot[T]) begin(policy RetryPolicy) {
	if s.backoff == nil {
		s.backoff = policy()
	}
	s.state = Loading
	s.attempts++
}

func (s *Slot[T]) succeed(value T) {
	s.state = Loaded
	s.value = value
	s.err = nil
	s.retryAt = time.Time{}
	if s.backoff != nil {
		s.backoff.Reset()
	}
}

func (s *Slot[T]) fail(err error, now time.Time) {
	s.state = Failed
	s.err = err
	s.retryAt = time.Time{}

	if s.backoff == nil {
		return
	}
	if next := s.backoff.NextBackOff(); next != backoff.Stop {
		s.retryAt = now.Add(next)
	}
}
