package basket

import (
	"sync"

	"github.com/google/uuid"
)

// Change describes one basket mutation, delivered to subscribed listeners so
// badge counters and other open views stay in sync without polling.
type Change struct {
	CustomerID uuid.UUID
	VendorID   uuid.UUID
	TotalCount int
}

// Listener receives basket change notifications.
type Listener func(Change)

type notifier struct {
	mu        sync.RWMutex
	listeners map[uuid.UUID]Listener
}

func newNotifier() *notifier {
	return &notifier{listeners: make(map[uuid.UUID]Listener)}
}

func (n *notifier) subscribe(listener Listener) uuid.UUID {
	token := uuid.New()
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners[token] = listener
	return token
}

func (n *notifier) unsubscribe(token uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.listeners, token)
}

func (n *notifier) publish(change Change) {
	n.mu.RLock()
	snapshot := make([]Listener, 0, len(n.listeners))
	for _, l := range n.listeners {
		snapshot = append(snapshot, l)
	}
	n.mu.RUnlock()

	for _, l := range snapshot {
		l(change)
	}
}
