package runtime

import (
	"sync"

	idspkg "github.com/streamgate/streamgate/internal/runtime/ids"
)

// RequestTracker mints generation ids and registers each one with the
// buffer before handing it to the caller. Because registration happens
// inside BeginRequest, no event emitted for the new request can race ahead
// of the buffer's generation filter.
type RequestTracker struct {
	buffer *EventBuffer

	mu      sync.Mutex
	current string
}

// NewRequestTracker binds a tracker to the buffer it registers generations
// on, normally the coordinator's shared buffer.
func NewRequestTracker(buffer *EventBuffer) *RequestTracker {
	return &RequestTracker{buffer: buffer}
}

// BeginRequest mints a fresh generation id and activates it on the buffer
// before returning. Dispatch the request only after this returns.
func (t *RequestTracker) BeginRequest() string {
	id := idspkg.NewRequestID()

	t.mu.Lock()
	t.current = id
	t.mu.Unlock()

	t.buffer.SetCurrentRequest(id)
	return id
}

// CurrentGeneration returns the most recently minted generation id, or ""
// when no request has begun.
func (t *RequestTracker) CurrentGeneration() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}
