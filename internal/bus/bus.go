package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/bft-labs/statusled/internal/domain"
	"github.com/bft-labs/statusled/internal/ports"
	"github.com/bft-labs/statusled/pkg/log"
)

// AllTopics subscribes a handler to every topic.
const AllTopics = "*"

// DefaultQueueSize is the number of events buffered ahead of dispatch.
const DefaultQueueSize = 64

// Handler receives events on the dispatch goroutine.
type Handler func(ctx context.Context, ev ports.Event)

// Bus is an asynchronous topic dispatcher. Publish queues; Run delivers
// events in publish order on a single goroutine.
type Bus struct {
	queue  chan ports.Event
	done   chan struct{}
	logger ports.Logger

	mu     sync.RWMutex
	subs   map[string]map[uint64]Handler
	nextID uint64
	closed bool
}

// New creates a bus with a bounded queue.
func New(queueSize int, logger ports.Logger) *Bus {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Bus{
		queue:  make(chan ports.Event, queueSize),
		done:   make(chan struct{}),
		logger: logger,
		subs:   make(map[string]map[uint64]Handler),
	}
}

// Publish queues ev. It blocks while the queue is full until ctx is done.
// Returns domain.ErrBusClosed after Close.
func (b *Bus) Publish(ctx context.Context, ev ports.Event) error {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return domain.ErrBusClosed
	}

	select {
	case b.queue <- ev:
		return nil
	case <-b.done:
		return domain.ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers h for topic and returns a function that removes it.
func (b *Bus) Subscribe(topic string, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[uint64]Handler)
	}
	b.subs[topic][id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[topic], id)
			if len(b.subs[topic]) == 0 {
				delete(b.subs, topic)
			}
		})
	}
}

// Run dispatches queued events until ctx is done or the bus is closed.
func (b *Bus) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.done:
			b.logger.Debug("event bus stopped", log.Int("dropped", len(b.queue)))
			return nil
		case ev := <-b.queue:
			b.dispatch(ctx, ev)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, ev ports.Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[ev.Topic])+len(b.subs[AllTopics]))
	for _, h := range b.subs[ev.Topic] {
		handlers = append(handlers, h)
	}
	if ev.Topic != AllTopics {
		for _, h := range b.subs[AllTopics] {
			handlers = append(handlers, h)
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.call(ctx, h, ev)
	}
}

func (b *Bus) call(ctx context.Context, h Handler, ev ports.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				log.String("topic", ev.Topic),
				log.Err(fmt.Errorf("%v", r)),
			)
		}
	}()
	h(ctx, ev)
}

// Close stops Run and rejects further publishes. Queued events are dropped.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	close(b.done)
	return nil
}
