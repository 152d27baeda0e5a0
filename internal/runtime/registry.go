package runtime

import (
	"sync"

	errspkg "github.com/streamgate/streamgate/internal/runtime/errors"
	loggingpkg "github.com/streamgate/streamgate/internal/runtime/logging"
)

// Registry holds one Coordinator per session id. It replaces module-scoped
// singleton state with an explicit, process-wide map behind a mutex: any
// number of logical callers asking for the same session share one
// coordinator and therefore one transport registration.
type Registry struct {
	listener   Listener
	bufferCap  int
	log        loggingpkg.ServiceLogger
	metricsFor func(sessionID string) *Metrics

	mu           sync.Mutex
	coordinators map[string]*Coordinator
	closed       bool
}

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// Listener is shared by every coordinator the registry creates. Required.
	Listener Listener

	// BufferCapacity is applied to each coordinator's buffer.
	BufferCapacity int

	Logger loggingpkg.ServiceLogger

	// MetricsFor, when set, supplies per-session metrics. Leave nil to
	// disable instrumentation.
	MetricsFor func(sessionID string) *Metrics
}

// NewRegistry builds an empty registry.
func NewRegistry(opts RegistryOptions) (*Registry, error) {
	if opts.Listener == nil {
		return nil, errspkg.ErrTransportRequired
	}
	if opts.Logger == nil {
		opts.Logger = loggingpkg.Nop()
	}
	return &Registry{
		listener:     opts.Listener,
		bufferCap:    opts.BufferCapacity,
		log:          opts.Logger,
		metricsFor:   opts.MetricsFor,
		coordinators: make(map[string]*Coordinator),
	}, nil
}

// Coordinator returns the coordinator for sessionID, creating it on first
// use.
func (r *Registry) Coordinator(sessionID string) (*Coordinator, error) {
	if sessionID == "" {
		return nil, errspkg.ErrSessionIDRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, errspkg.ErrCoordinatorClosed
	}
	if coord, ok := r.coordinators[sessionID]; ok {
		return coord, nil
	}

	var metrics *Metrics
	if r.metricsFor != nil {
		metrics = r.metricsFor(sessionID)
	}

	coord, err := NewCoordinator(CoordinatorOptions{
		Listener:       r.listener,
		BufferCapacity: r.bufferCap,
		Logger:         r.log.With(loggingpkg.LogFields{"session_id": sessionID}),
		Metrics:        metrics,
	})
	if err != nil {
		return nil, err
	}
	r.coordinators[sessionID] = coord
	return coord, nil
}

// Remove drops the coordinator for sessionID after shutting it down. No-op
// for unknown ids.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	coord, ok := r.coordinators[sessionID]
	delete(r.coordinators, sessionID)
	r.mu.Unlock()

	if ok {
		coord.Shutdown()
	}
}

// Shutdown tears down every coordinator and marks the registry closed. The
// host calls this exactly once on exit; further calls are no-ops.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	coords := make([]*Coordinator, 0, len(r.coordinators))
	for _, coord := range r.coordinators {
		coords = append(coords, coord)
	}
	r.coordinators = nil
	r.mu.Unlock()

	for _, coord := range coords {
		coord.Shutdown()
	}
}
