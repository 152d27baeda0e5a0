package runtime

import (
	"sync"

	envelopepkg "github.com/streamgate/streamgate/internal/runtime/envelope"
	loggingpkg "github.com/streamgate/streamgate/internal/runtime/logging"
)

// EventBuffer orders, filters, and delivers backend events to the active
// handler set. Events arriving before the consumer signals readiness are
// absorbed into a bounded FIFO queue; events tagged with a generation other
// than the current one are dropped rather than delivered to the wrong
// request's handlers.
//
// Handlers run synchronously under the buffer's lock, so a handler must not
// call back into the buffer or its coordinator from the same goroutine.
type EventBuffer struct {
	mu sync.Mutex

	handlers   HandlerSet
	queue      []bufferedEvent
	capacity   int
	generation string
	seq        uint64
	ready      bool
	destroyed  bool

	log     loggingpkg.ServiceLogger
	metrics *Metrics
}

// bufferedEvent pairs an envelope with its arrival order. The order survives
// queue eviction, which keeps delivery logs legible when entries are dropped.
type bufferedEvent struct {
	env   envelopepkg.Envelope
	order uint64
}

// NewEventBuffer constructs a buffer holding at most capacity pre-ready
// events. A non-positive capacity or nil logger falls back to defaults.
func NewEventBuffer(capacity int, log loggingpkg.ServiceLogger, metrics *Metrics) *EventBuffer {
	if capacity <= 0 {
		capacity = 1000
	}
	if log == nil {
		log = loggingpkg.Nop()
	}
	return &EventBuffer{
		capacity: capacity,
		log:      log,
		metrics:  metrics,
	}
}

// SetCurrentRequest activates a new generation. Queued events belonging to
// other generations are purged so a superseded request cannot bleed into the
// new one. Calling this on a destroyed buffer resurrects it. Repeated calls
// with the same id are no-ops.
func (b *EventBuffer) SetCurrentRequest(requestID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.destroyed = false
	if requestID == b.generation {
		return
	}
	b.generation = requestID

	if len(b.queue) == 0 {
		return
	}
	kept := b.queue[:0]
	for _, ev := range b.queue {
		if ev.env.RequestID == requestID {
			kept = append(kept, ev)
			continue
		}
		b.metrics.observeDropped(DropReasonStale)
	}
	if dropped := len(b.queue) - len(kept); dropped > 0 {
		b.log.Debug("purged stale queued events", loggingpkg.LogFields{
			"request_id": requestID,
			"dropped":    dropped,
		})
	}
	b.queue = kept
	b.metrics.setQueueDepth(len(b.queue))
}

// UpdateHandlers swaps the delivery targets without disturbing buffered or
// ready state. A live caller replacing its handlers implies continued use,
// so this also resurrects a destroyed buffer.
func (b *EventBuffer) UpdateHandlers(set HandlerSet) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.destroyed = false
	b.handlers = set
}

// Push accepts one transport event. Destroyed buffers reject everything.
// When ready, events matching the current generation are delivered
// synchronously in call order and everything else is dropped as stale. When
// not ready, events queue up to the configured capacity, evicting the oldest
// entry with a warning on overflow; generation filtering happens at flush
// time so a generation set after arrival still rescues matching events.
func (b *EventBuffer) Push(env envelopepkg.Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		b.metrics.observeDropped(DropReasonDestroyed)
		return
	}

	b.seq++
	ev := bufferedEvent{env: env, order: b.seq}

	if b.ready {
		if env.RequestID != b.generation || b.generation == "" {
			b.metrics.observeDropped(DropReasonStale)
			b.log.Debug("dropping stale event", loggingpkg.LogFields{
				"event_type":         env.Type,
				"event_request_id":   env.RequestID,
				"current_generation": b.generation,
			})
			return
		}
		b.deliverLocked(ev)
		return
	}

	if len(b.queue) >= b.capacity {
		evicted := b.queue[0]
		b.queue = b.queue[1:]
		b.metrics.observeDropped(DropReasonEvicted)
		b.log.Warn("buffer full, evicting oldest event", loggingpkg.LogFields{
			"capacity":   b.capacity,
			"event_type": evicted.env.Type,
			"event_id":   evicted.env.ID,
		})
	}
	b.queue = append(b.queue, ev)
	b.metrics.setQueueDepth(len(b.queue))
}

// SetReady flips the buffer from buffering to immediate delivery, flushing
// queued events for the current generation in arrival order. No-op when
// destroyed or already ready.
func (b *EventBuffer) SetReady() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed || b.ready {
		return
	}
	b.ready = true

	pending := b.queue
	b.queue = nil
	b.metrics.setQueueDepth(0)

	for _, ev := range pending {
		if ev.env.RequestID != b.generation || b.generation == "" {
			b.metrics.observeDropped(DropReasonStale)
			continue
		}
		b.deliverLocked(ev)
	}
}

// Reset tears the buffer down. Destroyed is set as the first action so any
// Push already racing on the lock is rejected before the queue is cleared.
func (b *EventBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.destroyed = true
	b.queue = nil
	b.ready = false
	b.generation = ""
	b.metrics.setQueueDepth(0)
}

// Ready reports whether events are delivered immediately on Push.
func (b *EventBuffer) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready
}

// Destroyed reports whether the buffer is rejecting all events.
func (b *EventBuffer) Destroyed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.destroyed
}

// Len returns the number of queued, not-yet-delivered events.
func (b *EventBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

func (b *EventBuffer) deliverLocked(ev bufferedEvent) {
	if err := b.handlers.dispatch(ev.env); err != nil {
		b.metrics.observeDropped(DropReasonMalformed)
		b.log.Error("dropping undecodable event", err, loggingpkg.LogFields{
			"event_type": ev.env.Type,
			"event_id":   ev.env.ID,
			"order":      ev.order,
		})
		return
	}
	b.metrics.observeDelivered(ev.env.Type)
}
