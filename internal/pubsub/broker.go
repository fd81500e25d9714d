// Package pubsub provides a small broadcast broker so the timer engine can
// notify any number of observers without knowing who they are.
package pubsub

import (
	"context"
	"sync"
	"time"
)

const defaultBufferSize = 64

// EventType names a notification kind.
type EventType string

// Event is a single published notification.
type Event[T any] struct {
	Type    EventType `json:"type"`
	Payload T         `json:"payload"`
	At      time.Time `json:"at"`
}

// Broker fans out events to subscriber channels. Publish never blocks: a
// subscriber that cannot keep up has events dropped rather than stalling
// the publisher.
type Broker[T any] struct {
	mu     sync.RWMutex
	subs   map[uint64]chan Event[T]
	nextID uint64
	closed bool
	buffer int
}

func NewBroker[T any]() *Broker[T] {
	return &Broker[T]{
		subs:   make(map[uint64]chan Event[T]),
		buffer: defaultBufferSize,
	}
}

// Subscribe registers a new observer. The returned channel is closed when
// ctx is cancelled or the broker shuts down.
func (b *Broker[T]) Subscribe(ctx context.Context) <-chan Event[T] {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		ch := make(chan Event[T])
		close(ch)
		return ch
	}

	id := b.nextID
	b.nextID++
	ch := make(chan Event[T], b.buffer)
	b.subs[id] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.closed {
			return
		}
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}()

	return ch
}

// Publish delivers an event to every subscriber, dropping it for any whose
// buffer is full.
func (b *Broker[T]) Publish(eventType EventType, payload T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	event := Event[T]{
		Type:    eventType,
		Payload: payload,
		At:      time.Now(),
	}

	for _, sub := range b.subs {
		select {
		case sub <- event:
		default:
		}
	}
}

// Close releases all subscribers. Safe to call more than once.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		close(sub)
	}
	b.subs = nil
}

// SubscriberCount reports the number of live subscriptions.
func (b *Broker[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
