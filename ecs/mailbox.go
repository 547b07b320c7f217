package ecs

import "sync"

// Completion is a storage mutation produced by background work. It runs on the
// scheduler goroutine when the mailbox is drained.
type Completion func(storage *Storage)

// Mailbox queues completions posted from background goroutines. The scheduler
// drains it once at the start of every tick, which keeps the storage single
// writer even though async tasks finish at arbitrary times.
type Mailbox struct {
	mu      sync.Mutex
	pending []Completion
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{}
}

// Post enqueues a completion. Safe for concurrent use.
func (m *Mailbox) Post(fn Completion) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.pending = append(m.pending, fn)
	m.mu.Unlock()
}

// Len returns the number of queued completions.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Drain applies every queued completion to storage in posting order and
// returns how many ran. Completions posted while draining wait for the next call.
func (m *Mailbox) Drain(storage *Storage) int {
	m.mu.Lock()
	batch := m.pending
	m.pending = nil
	m.mu.Unlock()

	for _, fn := range batch {
		fn(storage)
	}
	return len(batch)
}
