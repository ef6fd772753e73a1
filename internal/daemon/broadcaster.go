package daemon

import (
	"sync"
	"time"
)

// Event represents a task lifecycle event that can be broadcast
type Event struct {
	Type     string    `json:"type"`
	TS       time.Time `json:"ts"`
	TaskID   string    `json:"task_id,omitempty"`
	Repo     string    `json:"repo,omitempty"`
	PRNumber int       `json:"pr_number,omitempty"`
	Status   string    `json:"status,omitempty"`
	Progress float64   `json:"progress,omitempty"`
	Message  string    `json:"message,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Subscriber represents a client subscribed to events
type Subscriber struct {
	ID   int
	Repo string // Filter: only send events for this repo (empty = all)
	Ch   chan Event
}

// Broadcaster manages event subscriptions and broadcasting
type Broadcaster interface {
	Subscribe(repo string) (int, <-chan Event)
	Unsubscribe(id int)
	Broadcast(event Event)
	SubscriberCount() int
}

// EventBroadcaster implements the Broadcaster interface
type EventBroadcaster struct {
	mu          sync.RWMutex
	subscribers map[int]*Subscriber
	nextID      int
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster() Broadcaster {
	return &EventBroadcaster{
		subscribers: make(map[int]*Subscriber),
		nextID:      1,
	}
}

// Subscribe adds a new subscriber with optional repo filter.
// Returns a subscriber ID and event channel.
func (b *EventBroadcaster) Subscribe(repo string) (int, <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	ch := make(chan Event, 16) // Buffer to prevent blocking
	b.subscribers[id] = &Subscriber{ID: id, Repo: repo, Ch: ch}
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel
func (b *EventBroadcaster) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[id]; ok {
		close(sub.Ch)
		delete(b.subscribers, id)
	}
}

// Broadcast sends an event to all matching subscribers.
// Non-blocking: if a subscriber's channel is full, the event is
// dropped for that subscriber.
func (b *EventBroadcaster) Broadcast(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if sub.Repo != "" && sub.Repo != event.Repo {
			continue
		}
		select {
		case sub.Ch <- event:
		default:
		}
	}
}

// SubscriberCount returns the current number of subscribers (for testing)
func (b *EventBroadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
