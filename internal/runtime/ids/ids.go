package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// CreateULID returns a time-sortable ULID encoded as a 26-character string.
func CreateULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	return id.String()
}

// NewRequestID mints a process-unique generation id for one request/response
// cycle. The monotonic entropy source keeps ids strictly ordered within a
// process, which makes logs of interleaved generations legible.
func NewRequestID() string {
	return "req_" + CreateULID()
}

// NewEventID mints a unique id for a single event envelope.
func NewEventID() string {
	return "evt_" + CreateULID()
}
