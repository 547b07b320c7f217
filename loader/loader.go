package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/plus3/arworlds/ecs"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// Fetch produces a value off the frame loop.
type Fetch[T any] func(ctx context.Context) (T, error)

// Locator finds a slot in storage. It is called once on the frame that
// starts a load and again when the completion is applied, so it must not
// cache pointers across ticks. Returning nil skips the poll or drops the
// result, which happens when the owning entity was destroyed meanwhile.
type Locator[T any] func(storage *ecs.Storage) *Slot[T]

// In locates a slot stored in component C of an entity, adding C when the
// entity does not have it yet.
func In[C any, T any](id ecs.EntityId, field func(*C) *Slot[T]) Locator[T] {
	return func(storage *ecs.Storage) *Slot[T] {
		if !storage.Alive(id) {
			return nil
		}
		return field(ecs.GetOrAdd[C](storage, id))
	}
}

// Fixed locates a slot owned by a system rather than an entity.
func Fixed[T any](slot *Slot[T]) Locator[T] {
	return func(*ecs.Storage) *Slot[T] {
		return slot
	}
}

// Loader drives slots of one resource kind.
type Loader[T any] struct {
	// Name labels log lines, e.g. "model" or "tracked image".
	Name  string
	Log   zerolog.Logger
	Retry RetryPolicy
	Now   func() time.Time
}

// New creates a loader with the default retry policy.
func New[T any](name string, log zerolog.Logger) *Loader[T] {
	return &Loader[T]{Name: name, Log: log, Retry: DefaultRetry}
}

func (l *Loader[T]) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

func (l *Loader[T]) retry() RetryPolicy {
	if l.Retry != nil {
		return l.Retry
	}
	return DefaultRetry
}

// Poll starts fetch for the located slot when it is Idle, or Failed with a
// retry due, and reports whether a fetch was started. The slot is flipped to
// Loading before the fetch is scheduled, so repeated polls while the fetch is
// in flight are no-ops. id only labels log lines.
func (l *Loader[T]) Poll(frame *ecs.UpdateFrame, id ecs.EntityId, locate Locator[T], fetch Fetch[T]) bool {
	slot := locate(frame.Storage)
	if slot == nil || !slot.due(l.now()) {
		return false
	}

	slot.begin(l.retry())
	attempt := slot.Attempts()

	frame.Async(func(ctx context.Context) ecs.Completion {
		value, err := l.run(ctx, fetch)
		return func(storage *ecs.Storage) {
			l.settle(storage, id, attempt, locate, value, err)
		}
	})
	return true
}

func (l *Loader[T]) run(ctx context.Context, fetch Fetch[T]) (value T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = eris.Errorf("%s fetch panicked: %s", l.Name, fmt.Sprint(rec))
		}
	}()
	return fetch(ctx)
}

func (l *Loader[T]) settle(storage *ecs.Storage, id ecs.EntityId, attempt int, locate Locator[T], value T, err error) {
	slot := locate(storage)
	if slot == nil || slot.state != Loading || slot.attempts != attempt {
		return
	}

	if err != nil {
		slot.fail(err, l.now())
		event := l.Log.Warn().Err(err).
			Str("resource", l.Name).
			Uint32("entity", uint32(id)).
			Int("attempt", attempt)
		if retryAt := slot.RetryAt(); !retryAt.IsZero() {
			event = event.Time("retry_at", retryAt)
		}
		event.Msg("load failed")
		return
	}

	slot.succeed(value)
	l.Log.Debug().
		Str("resource", l.Name).
		Uint32("entity", uint32(id)).
		Int("attempt", attempt).
		Msg("loaded")
}
