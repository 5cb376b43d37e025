package events

import (
	"log"
	"sync"
)

// Handler receives events from the Bus. Accept filters; Handle runs under
// the bus's dispatch serialization, so it must not block indefinitely on
// another Dispatch call.
type Handler interface {
	Accept(e Event) bool
	Handle(e Event)
}

// HandlerFunc adapts a pair of functions to the Handler interface.
type HandlerFunc struct {
	AcceptFn func(e Event) bool
	HandleFn func(e Event)
}

func (h HandlerFunc) Accept(e Event) bool { return h.AcceptFn(e) }
func (h HandlerFunc) Handle(e Event)      { h.HandleFn(e) }

// Bus delivers events to registered handlers one event at a time, in
// dispatch order. Handlers may themselves call Dispatch: the nested event
// is queued and drained after the current handler set completes, so the
// global serialization holds without a reentrant lock.
type Bus struct {
	mu       sync.Mutex
	handlers []Handler
	queue    []Event
	draining bool
	blocked  int
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{}
}

// Register appends a handler. Handlers run in registration order.
func (b *Bus) Register(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Dispatch queues e and, unless another goroutine is already draining or
// dispatching is blocked, runs all matching handlers for every queued
// event before returning.
func (b *Bus) Dispatch(e Event) {
	b.mu.Lock()
	b.queue = append(b.queue, e)
	if b.draining || b.blocked > 0 {
		b.mu.Unlock()
		return
	}
	b.drainLocked()
	b.mu.Unlock()
}

// drainLocked processes the queue. Caller holds b.mu; the lock is released
// around handler invocations so handlers can queue follow-up events.
func (b *Bus) drainLocked() {
	b.draining = true
	for len(b.queue) > 0 && b.blocked == 0 {
		e := b.queue[0]
		b.queue = b.queue[1:]
		handlers := make([]Handler, len(b.handlers))
		copy(handlers, b.handlers)
		b.mu.Unlock()
		for _, h := range handlers {
			dispatchOne(h, e)
		}
		b.mu.Lock()
	}
	b.draining = false
}

// dispatchOne calls a single handler, containing panics so one bad handler
// cannot take down the bus.
func dispatchOne(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("event handler panic on %T: %v", e, r)
		}
	}()
	if h.Accept(e) {
		h.Handle(e)
	}
}

// BlockDispatching opens a window during which dispatched events are
// queued but not delivered. The returned release function closes the
// window and drains anything that accumulated.
func (b *Bus) BlockDispatching() (release func()) {
	b.mu.Lock()
	b.blocked++
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			b.blocked--
			if b.blocked == 0 && !b.draining && len(b.queue) > 0 {
				b.drainLocked()
			}
			b.mu.Unlock()
		})
	}
}
