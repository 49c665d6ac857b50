// Package eventbus carries ranking-change events from the scoring path to
// the push layer. The scoring side only publishes and the hub only
// subscribes, so neither holds a reference to the other.
package eventbus

import (
	"context"
	"log"
	"sync"

	"rankstream/internal/models"
)

// Handler consumes one ranking-change event.
type Handler func(event models.RankingChangeEvent)

// Bus is the one-directional event channel between change detection and
// push fan-out. Implementations: LocalBus (single process) and NATSBus
// (multi-process).
type Bus interface {
	// Publish hands an event to every subscriber. Best-effort: a slow
	// consumer never blocks the caller.
	Publish(ctx context.Context, event models.RankingChangeEvent) error

	// Subscribe registers a handler and returns an unsubscribe function.
	Subscribe(handler Handler) (func(), error)

	// Close releases the bus and its dispatch resources.
	Close() error
}

// LocalBus is the in-process Bus. A single dispatcher goroutine drains a
// bounded queue so publishing stays non-blocking on the increment path.
type LocalBus struct {
	mu       sync.RWMutex
	handlers map[int]Handler
	nextID   int

	queue chan models.RankingChangeEvent
	done  chan struct{}
	once  sync.Once
}

// NewLocalBus creates and starts an in-process bus.
func NewLocalBus(queueSize int) *LocalBus {
	if queueSize <= 0 {
		queueSize = 256
	}

	b := &LocalBus{
		handlers: make(map[int]Handler),
		queue:    make(chan models.RankingChangeEvent, queueSize),
		done:     make(chan struct{}),
	}
	go b.dispatch()
	return b
}

func (b *LocalBus) dispatch() {
	for {
		select {
		case <-b.done:
			return
		case event := <-b.queue:
			b.mu.RLock()
			for _, h := range b.handlers {
				h(event)
			}
			b.mu.RUnlock()
		}
	}
}

// Publish enqueues the event. When the queue is full the event is dropped:
// delivery to live viewers is at-most-once and never back-pressures scoring.
func (b *LocalBus) Publish(_ context.Context, event models.RankingChangeEvent) error {
	select {
	case b.queue <- event:
	default:
		log.Printf("eventbus: queue full, dropping %s event for %s/%s",
			event.EventType, event.PeriodType, event.PeriodKey)
	}
	return nil
}

// Subscribe registers a handler; the returned function removes it.
func (b *LocalBus) Subscribe(handler Handler) (func(), error) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = handler
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}, nil
}

// Close stops the dispatcher. Queued events are discarded.
func (b *LocalBus) Close() error {
	b.once.Do(func() {
		close(b.done)
	})
	return nil
}
