package event

import (
	"reflect"
)

// Bus is a double-buffered event bus. Events emitted in tick N are readable
// in tick N+1: the world swaps buffers and dispatches at the start of each
// tick. Delivery follows emission order across all event types.
type Bus struct {
	front    []any
	back     []any
	handlers map[reflect.Type][]func(any)
	ifaces   []ifaceHandler // subscriptions to interface types
}

type ifaceHandler struct {
	t  reflect.Type
	fn func(any)
}

func NewBus() *Bus {
	return &Bus{
		front:    make([]any, 0, 64),
		back:     make([]any, 0, 64),
		handlers: make(map[reflect.Type][]func(any)),
	}
}

// Emit queues an event into the back buffer (readable next tick).
func Emit[T any](b *Bus, event T) {
	b.back = append(b.back, event)
}

// Subscribe registers a typed handler for events of type T. If T is an
// interface the handler receives every event implementing it.
func Subscribe[T any](b *Bus, fn func(T)) {
	t := reflect.TypeFor[T]()
	h := func(ev any) { fn(ev.(T)) }
	if t.Kind() == reflect.Interface {
		b.ifaces = append(b.ifaces, ifaceHandler{t: t, fn: h})
		return
	}
	b.handlers[t] = append(b.handlers[t], h)
}

// Pending returns the number of events waiting for the next swap.
func (b *Bus) Pending() int { return len(b.back) }

// SwapBuffers rotates back to front and clears the new back buffer.
func (b *Bus) SwapBuffers() {
	b.front, b.back = b.back, b.front
	clear(b.back)
	b.back = b.back[:0]
}

// DispatchAll delivers front-buffer events to their handlers and returns the
// number of events delivered. Concrete-type handlers run before interface
// ones. Events emitted by handlers land in the back buffer.
func (b *Bus) DispatchAll() int {
	for _, ev := range b.front {
		t := reflect.TypeOf(ev)
		for _, h := range b.handlers[t] {
			h(ev)
		}
		for _, h := range b.ifaces {
			if t.Implements(h.t) {
				h.fn(ev)
			}
		}
	}
	n := len(b.front)
	clear(b.front)
	b.front = b.front[:0]
	return n
}

// Reset drops every queued event. Handlers stay subscribed.
func (b *Bus) Reset() {
	clear(b.front)
	clear(b.back)
	b.front = b.front[:0]
	b.back = b.back[:0]
}
