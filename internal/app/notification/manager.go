// Package notification provides the notification manager for broadcasting events.
package notification

import (
	"sync"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

// Stream represents a notification stream for a subscriber.
type Stream[E any] interface {
	Send(E) error
}

// HandlerFunc adapts a plain function to a Stream.
type HandlerFunc[E any] func(E)

// Send calls f(e).
func (f HandlerFunc[E]) Send(e E) error {
	f(e)
	return nil
}

// subscription represents a subscriber's subscription.
type subscription[E any] struct {
	id     string
	stream Stream[E]
}

// Manager manages notification subscriptions and broadcasting.
//
// Events are delivered by a single dispatcher goroutine in the order they were
// published, so every subscriber observes the same sequence. Publish never
// blocks, which lets a publisher hold its own lock while publishing and lets a
// subscriber call back into the publisher from Send.
type Manager[E any] struct {
	mu            sync.Mutex
	cond          *sync.Cond
	subscriptions []*subscription[E]
	queue         []E
	delivering    bool
	closed        bool
	done          chan struct{}
}

// NewManager creates a new notification manager and starts its dispatcher.
func NewManager[E any]() *Manager[E] {
	m := &Manager[E]{
		done: make(chan struct{}),
	}
	m.cond = sync.NewCond(&m.mu)
	go m.dispatch()
	return m
}

// Subscribe adds a new subscription and returns the subscription ID.
func (m *Manager[E]) Subscribe(stream Stream[E]) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions = append(m.subscriptions, &subscription[E]{
		id:     id,
		stream: stream,
	})
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager[E]) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(subscriptionID)
}

func (m *Manager[E]) removeLocked(subscriptionID string) {
	for i, sub := range m.subscriptions {
		if sub.id == subscriptionID {
			m.subscriptions = append(m.subscriptions[:i:i], m.subscriptions[i+1:]...)
			return
		}
	}
}

// Publish queues an event for delivery to all current subscribers.
// Events published after Close are dropped.
func (m *Manager[E]) Publish(e E) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.queue = append(m.queue, e)
	m.cond.Broadcast()
}

// Flush blocks until every event published so far has been delivered.
func (m *Manager[E]) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.queue) > 0 || m.delivering {
		m.cond.Wait()
	}
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager[E]) SubscriberCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscriptions)
}

// Close delivers pending events, stops the dispatcher and removes all subscriptions.
func (m *Manager[E]) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		<-m.done
		return
	}
	m.closed = true
	m.cond.Broadcast()
	m.mu.Unlock()

	<-m.done

	m.mu.Lock()
	m.subscriptions = nil
	m.mu.Unlock()
}

func (m *Manager[E]) dispatch() {
	defer close(m.done)

	m.mu.Lock()
	for {
		for len(m.queue) == 0 && !m.closed {
			m.cond.Wait()
		}
		if len(m.queue) == 0 && m.closed {
			m.cond.Broadcast()
			m.mu.Unlock()
			return
		}

		e := m.queue[0]
		m.queue = m.queue[1:]
		// Copy subscriptions to avoid holding lock during sends
		subs := make([]*subscription[E], len(m.subscriptions))
		copy(subs, m.subscriptions)
		m.delivering = true
		m.mu.Unlock()

		var failed []string
		for _, sub := range subs {
			if err := sub.stream.Send(e); err != nil {
				zlog.Debug().Msgf("notification: dropping subscriber: id=%s error=%v", sub.id, err)
				failed = append(failed, sub.id)
			}
		}

		m.mu.Lock()
		for _, id := range failed {
			m.removeLocked(id)
		}
		m.delivering = false
		m.cond.Broadcast()
	}
}
