// Package queue defines the broker contract between submission and
// the worker pool: at-least-once delivery of task references.
// Duplicate delivery is expected; the store's claim operation is what
// makes it safe.
package queue

import (
	"context"
	"sync"
)

// Broker decouples submission from execution. Enqueue must return
// without blocking the submitter; Dequeue blocks the calling worker
// until a reference or context cancellation arrives.
type Broker interface {
	Enqueue(id string) error
	Dequeue(ctx context.Context) (string, error)
}

// Memory is the in-process Broker. FIFO, unbounded, safe for
// concurrent producers and consumers.
type Memory struct {
	mu    sync.Mutex
	items []string
	wake  chan struct{}
}

// NewMemory creates an empty in-memory broker.
func NewMemory() *Memory {
	return &Memory{wake: make(chan struct{}, 1)}
}

// Enqueue appends a task reference. Never blocks.
func (m *Memory) Enqueue(id string) error {
	m.mu.Lock()
	m.items = append(m.items, id)
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
	return nil
}

// Dequeue pops the oldest reference, blocking until one is available
// or ctx is done.
func (m *Memory) Dequeue(ctx context.Context) (string, error) {
	for {
		m.mu.Lock()
		if len(m.items) > 0 {
			id := m.items[0]
			m.items = m.items[1:]
			// Re-signal so other blocked consumers re-check the
			// queue when more than one item was pending.
			if len(m.items) > 0 {
				select {
				case m.wake <- struct{}{}:
				default:
				}
			}
			m.mu.Unlock()
			return id, nil
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-m.wake:
		}
	}
}

// Len returns the number of pending references (for status reporting).
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
