package web

import (
	"sync"

	"github.com/google/uuid"
)

const subscriberQueueCap = 256

// subscriber is one connected SSE client. Its queue is bounded so a
// stalled browser cannot back up the grader.
type subscriber struct {
	clientID      string
	queue         chan ClientUpdate
	authenticated bool
}

// hub fans ClientUpdates out to SSE subscribers and tracks which of them
// have completed the auth handshake.
type hub struct {
	mu          sync.Mutex
	subscribers map[string]*subscriber
	pendingAuth map[int64]string // auth event id -> client id
	closed      bool
}

func newHub() *hub {
	return &hub{
		subscribers: make(map[string]*subscriber),
		pendingAuth: make(map[int64]string),
	}
}

// subscribe registers a new client and returns it with an unsubscribe
// function. A nil subscriber means the hub is already closed.
func (h *hub) subscribe() (*subscriber, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, func() {}
	}

	sub := &subscriber{
		clientID: uuid.NewString(),
		queue:    make(chan ClientUpdate, subscriberQueueCap),
	}
	h.subscribers[sub.clientID] = sub

	unsubscribe := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subscribers, sub.clientID)
	}
	return sub, unsubscribe
}

// expectAuth records that answering the given auth event authenticates
// the given client.
func (h *hub) expectAuth(eventID int64, clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pendingAuth[eventID] = clientID
}

// authenticate resolves a granted auth event. The client, if still
// connected, starts receiving privileged updates and is told so.
func (h *hub) authenticate(eventID int64) {
	h.mu.Lock()
	clientID, ok := h.pendingAuth[eventID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.pendingAuth, eventID)
	sub, connected := h.subscribers[clientID]
	if connected {
		sub.authenticated = true
	}
	h.mu.Unlock()

	if connected {
		h.deliver(sub, NewAuthUpdate(clientID))
	}
}

// broadcast queues the update for every eligible subscriber. Privileged
// updates skip unauthenticated clients entirely; they are not queued for
// later.
func (h *hub) broadcast(u ClientUpdate) {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		if u.RequiresAuthentication && !sub.authenticated {
			continue
		}
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		h.deliver(sub, u)
	}
}

// deliver is a non-blocking send: a full queue drops the update rather
// than stalling the dispatcher.
func (h *hub) deliver(sub *subscriber, u ClientUpdate) {
	select {
	case sub.queue <- u:
	default:
	}
}

// close shuts every subscriber queue. Used at server shutdown; the
// normal end of grading is signalled with a done update instead.
func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, sub := range h.subscribers {
		close(sub.queue)
	}
	h.subscribers = make(map[string]*subscriber)
}
