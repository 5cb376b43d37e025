package events

import (
	"sync"
	"testing"
)

// collector records every event it accepts.
type collector struct {
	mu   sync.Mutex
	seen []Event
}

func (c *collector) Accept(e Event) bool { return true }

func (c *collector) Handle(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, e)
}

func (c *collector) events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.seen))
	copy(out, c.seen)
	return out
}

func TestDispatchOrder(t *testing.T) {
	b := NewBus()
	c := &collector{}
	b.Register(c)

	first := NewSubmissions{Meta: NewMeta()}
	second := EndOfSubmissions{Meta: NewMeta()}
	b.Dispatch(first)
	b.Dispatch(second)

	got := c.events()
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].EventID() != first.EventID() || got[1].EventID() != second.EventID() {
		t.Fatalf("events delivered out of order: %v", got)
	}
}

func TestEventIDsMonotonic(t *testing.T) {
	prev := NewMeta().EventID()
	for i := 0; i < 100; i++ {
		id := NewMeta().EventID()
		if id <= prev {
			t.Fatalf("event id %d not greater than %d", id, prev)
		}
		prev = id
	}
}

func TestAcceptFilters(t *testing.T) {
	b := NewBus()
	var authCount int
	b.Register(HandlerFunc{
		AcceptFn: func(e Event) bool {
			_, ok := e.(AuthRequested)
			return ok
		},
		HandleFn: func(e Event) { authCount++ },
	})

	b.Dispatch(NewSubmissions{Meta: NewMeta()})
	b.Dispatch(AuthRequested{Meta: NewMeta(), RequestDetails: "127.0.0.1"})

	if authCount != 1 {
		t.Fatalf("expected 1 auth event, got %d", authCount)
	}
}

func TestNestedDispatchCompletesCurrentHandlerSetFirst(t *testing.T) {
	b := NewBus()
	var order []string

	// First handler re-dispatches; the nested event must not be delivered
	// until every handler has seen the outer event.
	b.Register(HandlerFunc{
		AcceptFn: func(e Event) bool { return true },
		HandleFn: func(e Event) {
			if _, ok := e.(AuthRequested); ok {
				order = append(order, "h1:auth")
				b.Dispatch(AuthGranted{Meta: NewMeta(), AuthEventID: e.EventID()})
				return
			}
			order = append(order, "h1:granted")
		},
	})
	b.Register(HandlerFunc{
		AcceptFn: func(e Event) bool { return true },
		HandleFn: func(e Event) {
			if _, ok := e.(AuthRequested); ok {
				order = append(order, "h2:auth")
			} else {
				order = append(order, "h2:granted")
			}
		},
	})

	b.Dispatch(AuthRequested{Meta: NewMeta()})

	want := []string{"h1:auth", "h2:auth", "h1:granted", "h2:granted"}
	if len(order) != len(want) {
		t.Fatalf("got order %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got order %v, want %v", order, want)
		}
	}
}

func TestBlockDispatching(t *testing.T) {
	b := NewBus()
	c := &collector{}
	b.Register(c)

	release := b.BlockDispatching()
	b.Dispatch(NewSubmissions{Meta: NewMeta()})
	if len(c.events()) != 0 {
		t.Fatal("event delivered during blocked window")
	}

	release()
	if len(c.events()) != 1 {
		t.Fatalf("expected 1 event after release, got %d", len(c.events()))
	}

	// release is idempotent.
	release()
	b.Dispatch(NewSubmissions{Meta: NewMeta()})
	if len(c.events()) != 2 {
		t.Fatalf("expected 2 events, got %d", len(c.events()))
	}
}

func TestHandlerPanicContained(t *testing.T) {
	b := NewBus()
	b.Register(HandlerFunc{
		AcceptFn: func(e Event) bool { return true },
		HandleFn: func(e Event) { panic("boom") },
	})
	c := &collector{}
	b.Register(c)

	b.Dispatch(NewSubmissions{Meta: NewMeta()})
	if len(c.events()) != 1 {
		t.Fatal("panicking handler prevented delivery to later handlers")
	}
}
