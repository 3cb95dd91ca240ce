package notify

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// ChannelQueue is an in-process queue drained by a single worker goroutine.
// Publish never blocks: when the buffer is full the event is dropped and
// ErrQueueFull returned.
type ChannelQueue struct {
	events  chan Event
	handler Handler
	log     zerolog.Logger

	mu      sync.RWMutex
	closed  bool
	started bool
	done    chan struct{}
}

func NewChannelQueue(size int, handler Handler, log zerolog.Logger) *ChannelQueue {
	if size <= 0 {
		size = 1
	}
	return &ChannelQueue{
		events:  make(chan Event, size),
		handler: handler,
		log:     log.With().Str("component", "notify.queue").Logger(),
		done:    make(chan struct{}),
	}
}

func (q *ChannelQueue) Publish(_ context.Context, ev Event) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.events <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the worker. It drains the queue until Close is called and
// delivers whatever is still buffered before stopping.
func (q *ChannelQueue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true
	go func() {
		defer close(q.done)
		for ev := range q.events {
			q.handler.Handle(ctx, ev)
		}
		q.log.Info().Msg("notification worker stopped")
	}()
}

// Close stops accepting events and waits for the worker to finish.
func (q *ChannelQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.events)
	started := q.started
	q.mu.Unlock()

	if started {
		<-q.done
	}
}
