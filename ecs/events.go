package ecs

import "reflect"

// EventBus is a synchronous, type-keyed publish/subscribe bus. Systems use it
// to notify integrators of things like a changed model scale without holding
// references to each other. Handlers run on the publishing goroutine.
type EventBus struct {
	handlers map[reflect.Type][]any
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{handlers: make(map[reflect.Type][]any)}
}

// Subscribe registers a handler for events of type T. Handlers are called in
// subscription order.
func Subscribe[T any](bus *EventBus, handler func(T)) {
	t := reflect.TypeFor[T]()
	bus.handlers[t] = append(bus.handlers[t], handler)
}

// Publish delivers an event to every handler subscribed to T.
func Publish[T any](bus *EventBus, event T) {
	if bus == nil {
		return
	}
	for _, h := range bus.handlers[reflect.TypeFor[T]()] {
		h.(func(T))(event)
	}
}

// Subscribers returns the number of handlers registered for T.
func Subscribers[T any](bus *EventBus) int {
	return len(bus.handlers[reflect.TypeFor[T]()])
}
