package ecs

import (
	"context"
	"time"
)

// World ties a Storage to a Scheduler and is the surface integrators use to
// set up entities and drive ticks.
type World struct {
	storage   *Storage
	scheduler *Scheduler
	lastTick  time.Time
}

// NewWorld creates a world with its own registry and storage.
func NewWorld(opts ...SchedulerOption) *World {
	storage := NewStorage(NewComponentRegistry())
	return &World{
		storage:   storage,
		scheduler: NewScheduler(storage, opts...),
	}
}

// Storage returns the world's component store.
func (w *World) Storage() *Storage {
	return w.storage
}

// Scheduler returns the world's scheduler.
func (w *World) Scheduler() *Scheduler {
	return w.scheduler
}

// Events returns the world's event bus.
func (w *World) Events() *EventBus {
	return w.scheduler.Events()
}

// CreateEntity allocates a new entity id.
func (w *World) CreateEntity() EntityId {
	return w.storage.NewEntity()
}

// AddComponent upserts a component on an entity.
func (w *World) AddComponent(id EntityId, component any) {
	w.storage.SetComponent(id, component)
}

// DestroyEntity removes every component of an entity. Its id is not reused.
func (w *World) DestroyEntity(id EntityId) {
	w.storage.Delete(id)
}

// AddSystem appends a system. Systems run in the order they were added.
func (w *World) AddSystem(system System) {
	w.scheduler.Register(system)
}

// Update runs one tick, using the wall clock time since the previous Update
// as the frame's delta time.
func (w *World) Update() {
	now := time.Now()
	var dt float64
	if !w.lastTick.IsZero() {
		dt = now.Sub(w.lastTick).Seconds()
	}
	w.lastTick = now
	w.scheduler.Once(dt)
}

// Step runs one tick with an explicit delta time.
func (w *World) Step(dt float64) {
	w.scheduler.Once(dt)
}

// Run ticks the world at the given interval until ctx is cancelled.
func (w *World) Run(ctx context.Context, interval time.Duration) {
	w.scheduler.Run(ctx, interval)
}

// WaitAsync blocks until all async tasks started so far have posted their
// completions.
func (w *World) WaitAsync() {
	w.scheduler.WaitAsync()
}

// Stats returns the scheduler statistics.
func (w *World) Stats() *SchedulerStats {
	return w.scheduler.GetStats()
}

// Close cancels outstanding async work and waits for it to stop.
func (w *World) Close() {
	w.scheduler.Close()
}
