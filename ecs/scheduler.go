package ecs

import (
	"context"
	"fmt"
	"reflect"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// SchedulerStats provides statistics about scheduler execution.
type SchedulerStats struct {
	SystemCount        int
	TotalExecutions    int64
	Ticks              uint64
	CompletionsDrained int64
	Systems            []SystemStats
}

// SystemStats provides execution statistics for a single system.
type SystemStats struct {
	Name           string
	ExecutionCount int64
	PanicCount     int64
	MinDuration    time.Duration
	MaxDuration    time.Duration
	AvgDuration    time.Duration
	LastDuration   time.Duration
	TotalDuration  time.Duration
}

type systemStatsInternal struct {
	name           string
	executionCount int64
	panicCount     int64
	minDuration    time.Duration
	maxDuration    time.Duration
	totalDuration  time.Duration
	lastDuration   time.Duration
}

// queryExecutor is implemented by Query fields discovered on systems.
type queryExecutor interface {
	Execute()
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithLogger sets the logger used to report recovered system panics.
func WithLogger(log zerolog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.log = log
	}
}

// WithContext sets the parent context of async tasks started by systems.
func WithContext(ctx context.Context) SchedulerOption {
	return func(s *Scheduler) {
		s.parent = ctx
	}
}

// WithEventBus shares an existing event bus with the scheduler's frames.
func WithEventBus(bus *EventBus) SchedulerOption {
	return func(s *Scheduler) {
		s.events = bus
	}
}

// Scheduler manages and executes systems in registration order. One call to
// Once is one tick: drain the mailbox, run every system exactly once, then
// flush the deferred commands.
type Scheduler struct {
	storage     *Storage
	systems     []System
	queries     [][]queryExecutor
	systemStats []*systemStatsInternal

	mailbox  *Mailbox
	events   *EventBus
	commands *Commands
	async    *asyncRunner
	parent   context.Context
	cancel   context.CancelFunc
	log      zerolog.Logger

	ticks       uint64
	completions int64
}

// NewScheduler creates a new scheduler for the given storage.
func NewScheduler(storage *Storage, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		storage: storage,
		systems: make([]System, 0),
		mailbox: NewMailbox(),
		parent:  context.Background(),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.events == nil {
		s.events = NewEventBus()
	}

	ctx, cancel := context.WithCancel(s.parent)
	s.cancel = cancel
	s.async = newAsyncRunner(ctx, s.mailbox, s.log)
	s.commands = newCommands(storage)
	return s
}

// Mailbox returns the queue through which background work reaches the storage.
func (s *Scheduler) Mailbox() *Mailbox {
	return s.mailbox
}

// Events returns the event bus shared by all frames.
func (s *Scheduler) Events() *EventBus {
	return s.events
}

// Register adds a system to the scheduler and initializes its Query and Singleton fields.
func (s *Scheduler) Register(system System) {
	s.queries = append(s.queries, s.initializeFields(system))
	s.systems = append(s.systems, system)

	s.systemStats = append(s.systemStats, &systemStatsInternal{
		name:        systemName(system),
		minDuration: time.Duration(1<<63 - 1),
	})
}

// Systems returns the registered systems in execution order.
func (s *Scheduler) Systems() []System {
	return s.systems
}

func systemName(system System) string {
	systemType := reflect.TypeOf(system)
	if systemType.Kind() == reflect.Ptr {
		systemType = systemType.Elem()
	}
	if pkg := systemType.PkgPath(); pkg != "" {
		return pkg[strings.LastIndex(pkg, "/")+1:] + "." + systemType.Name()
	}
	return systemType.Name()
}

func (s *Scheduler) initializeFields(system System) []queryExecutor {
	systemValue := reflect.ValueOf(system)
	if systemValue.Kind() == reflect.Ptr {
		systemValue = systemValue.Elem()
	}

	if systemValue.Kind() != reflect.Struct {
		return nil
	}

	systemType := systemValue.Type()
	var queries []queryExecutor

	for i := 0; i < systemValue.NumField(); i++ {
		field := systemValue.Field(i)
		fieldType := systemType.Field(i)

		if !field.CanSet() || field.Kind() != reflect.Struct {
			continue
		}

		typeName := field.Type().Name()
		isQuery := strings.HasPrefix(typeName, "Query[")
		if !isQuery && !strings.HasPrefix(typeName, "Singleton[") {
			continue
		}

		initMethod := field.Addr().MethodByName("Init")
		if !initMethod.IsValid() {
			panic("Init method not found on field: " + fieldType.Name)
		}
		initMethod.Call([]reflect.Value{
			reflect.ValueOf(s.storage),
		})

		if isQuery {
			queries = append(queries, field.Addr().Interface().(queryExecutor))
		}
	}

	return queries
}

// Once executes all registered systems once with the given delta time.
func (s *Scheduler) Once(dt float64) {
	s.completions += int64(s.mailbox.Drain(s.storage))

	s.ticks++
	frame := &UpdateFrame{
		DeltaTime: dt,
		Tick:      s.ticks,
		Commands:  s.commands,
		Storage:   s.storage,
		Events:    s.events,
		async:     s.async,
	}

	for i, system := range s.systems {
		stats := s.systemStats[i]

		start := time.Now()
		if !s.execute(i, system, frame) {
			stats.panicCount++
		}
		duration := time.Since(start)

		stats.executionCount++
		stats.lastDuration = duration
		stats.totalDuration += duration

		if duration < stats.minDuration {
			stats.minDuration = duration
		}
		if duration > stats.maxDuration {
			stats.maxDuration = duration
		}
	}

	s.flush()
}

// execute runs one system, containing any panic so the remaining systems of
// the tick still run.
func (s *Scheduler) execute(i int, system System, frame *UpdateFrame) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			ok = false
			s.log.Error().
				Str("system", s.systemStats[i].name).
				Uint64("tick", frame.Tick).
				Str("panic", fmt.Sprint(rec)).
				Bytes("stack", debug.Stack()).
				Msg("system panicked")
		}
	}()

	for _, q := range s.queries[i] {
		q.Execute()
	}
	system.Execute(frame)
	return true
}

func (s *Scheduler) flush() {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error().Str("panic", fmt.Sprint(rec)).Msg("command flush panicked")
		}
	}()
	s.commands.Flush(s.storage)
}

// Run executes all systems repeatedly at the given interval until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dt := now.Sub(lastTime).Seconds()
			lastTime = now
			s.Once(dt)
		}
	}
}

// WaitAsync blocks until every async task started so far has finished and
// posted its completion. Completions are applied on the next Once.
func (s *Scheduler) WaitAsync() {
	s.async.wait()
}

// Close cancels the context of outstanding async tasks and waits for them.
func (s *Scheduler) Close() {
	s.cancel()
	s.async.wait()
}

// GetStats returns statistics about system execution.
func (s *Scheduler) GetStats() *SchedulerStats {
	stats := &SchedulerStats{
		SystemCount:        len(s.systems),
		Ticks:              s.ticks,
		CompletionsDrained: s.completions,
		Systems:            make([]SystemStats, len(s.systemStats)),
	}

	var totalExecs int64
	for i, internal := range s.systemStats {
		avgDuration := time.Duration(0)
		if internal.executionCount > 0 {
			avgDuration = internal.totalDuration / time.Duration(internal.executionCount)
		}

		stats.Systems[i] = SystemStats{
			Name:           internal.name,
			ExecutionCount: internal.executionCount,
			PanicCount:     internal.panicCount,
			MinDuration:    internal.minDuration,
			MaxDuration:    internal.maxDuration,
			AvgDuration:    avgDuration,
			LastDuration:   internal.lastDuration,
			TotalDuration:  internal.totalDuration,
		}
		totalExecs += internal.executionCount
	}

	stats.TotalExecutions = totalExecs
	return stats
}
