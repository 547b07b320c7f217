package ecs

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// UpdateFrame is handed to every system during a tick.
type UpdateFrame struct {
	DeltaTime float64
	Tick      uint64
	Commands  *Commands
	Storage   *Storage
	Events    *EventBus

	async *asyncRunner
}

// GetComponent looks up a component of an entity.
func (f *UpdateFrame) GetComponent(id EntityId, compType ComponentType) any {
	return f.Storage.GetComponent(id, compType)
}

// GetComponents returns the entities holding a component type, in insertion order.
func (f *UpdateFrame) GetComponents(compType ComponentType) []EntityId {
	return f.Storage.EntitiesWith(compType)
}

// Async runs task on a background goroutine. The completion it returns is
// posted to the world's mailbox and applied at the start of a later tick; a
// nil completion is ignored. The context is cancelled when the world closes.
//
// Callers must record any in-flight state before calling Async.
func (f *UpdateFrame) Async(task func(ctx context.Context) Completion) {
	f.async.spawn(task)
}

// asyncRunner owns the goroutines started through UpdateFrame.Async.
type asyncRunner struct {
	ctx     context.Context
	mailbox *Mailbox
	log     zerolog.Logger
	wg      sync.WaitGroup
}

func newAsyncRunner(ctx context.Context, mailbox *Mailbox, log zerolog.Logger) *asyncRunner {
	return &asyncRunner{ctx: ctx, mailbox: mailbox, log: log}
}

func (r *asyncRunner) spawn(task func(ctx context.Context) Completion) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error().Str("panic", fmt.Sprint(rec)).Msg("async task panicked")
			}
		}()
		if done := task(r.ctx); done != nil {
			r.mailbox.Post(done)
		}
	}()
}

func (r *asyncRunner) wait() {
	r.wg.Wait()
}
