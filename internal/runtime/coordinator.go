package runtime

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	catalogpkg "github.com/streamgate/streamgate/internal/runtime/catalog"
	errspkg "github.com/streamgate/streamgate/internal/runtime/errors"
	loggingpkg "github.com/streamgate/streamgate/internal/runtime/logging"
)

// UnsubscribeFunc releases one subscriber reference. Idempotent; the
// underlying transport registration is torn down only when the last
// reference is released.
type UnsubscribeFunc func()

// Coordinator makes subscription idempotent for callers while guaranteeing
// exactly one transport registration per event name, no matter how many
// subscribers attach. It owns one EventBuffer shared by all of them.
type Coordinator struct {
	listener   Listener
	eventNames []string
	log        loggingpkg.ServiceLogger
	metrics    *Metrics

	mu       sync.Mutex
	refCount int
	setup    *setupState
	buffer   *EventBuffer
	closed   bool
}

// setupState is the shared in-flight setup future. The first subscriber
// creates it and performs the registration; everyone else, including
// teardown, waits on done.
type setupState struct {
	done       chan struct{}
	err        error
	unregister []UnregisterFunc
}

// CoordinatorOptions configures a Coordinator.
type CoordinatorOptions struct {
	// Listener is the transport connection events arrive on. Required.
	Listener Listener

	// EventNames lists the events one subscription covers. Defaults to the
	// full catalog.
	EventNames []string

	// BufferCapacity bounds the pre-ready queue. Zero uses the default.
	BufferCapacity int

	Logger  loggingpkg.ServiceLogger
	Metrics *Metrics
}

// NewCoordinator builds a coordinator and its buffer. The buffer lives for
// the coordinator's lifetime; teardown resets it and a later subscription
// resurrects it without reallocation.
func NewCoordinator(opts CoordinatorOptions) (*Coordinator, error) {
	if opts.Listener == nil {
		return nil, errspkg.ErrTransportRequired
	}
	if opts.Logger == nil {
		opts.Logger = loggingpkg.Nop()
	}
	if len(opts.EventNames) == 0 {
		opts.EventNames = catalogpkg.Names()
	}

	return &Coordinator{
		listener:   opts.Listener,
		eventNames: opts.EventNames,
		log:        opts.Logger,
		metrics:    opts.Metrics,
		buffer:     NewEventBuffer(opts.BufferCapacity, opts.Logger, opts.Metrics),
	}, nil
}

// Buffer exposes the shared event buffer so request trackers can register
// generations on it.
func (c *Coordinator) Buffer() *EventBuffer {
	return c.buffer
}

// Subscribe attaches a handler set and returns the matching release
// function. The first subscriber performs the transport registration, one
// batched parallel step covering every event name, and blocks until it
// settles; later subscribers swap the handlers in and return immediately.
//
// A registration failure unwinds any listeners already established and
// leaves the coordinator empty; the caller must treat the subscription as
// terminally unusable.
func (c *Coordinator) Subscribe(ctx context.Context, handlers HandlerSet) (UnsubscribeFunc, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errspkg.ErrCoordinatorClosed
	}

	c.refCount++
	c.metrics.setSubscriberRefs(c.refCount)

	if existing := c.setup; existing != nil {
		c.mu.Unlock()
		c.buffer.UpdateHandlers(handlers)
		c.buffer.SetReady()
		return c.unsubscribeFunc(existing), nil
	}

	setup := &setupState{done: make(chan struct{})}
	c.setup = setup
	c.mu.Unlock()

	c.buffer.UpdateHandlers(handlers)

	unregister, err := c.registerAll(ctx)

	c.mu.Lock()
	setup.unregister = unregister
	setup.err = err
	close(setup.done)

	if err != nil {
		// No partial registration survives a failed setup.
		c.setup = nil
		c.refCount = 0
		c.metrics.setSubscriberRefs(0)
		c.mu.Unlock()

		for _, unreg := range unregister {
			unreg()
		}
		c.buffer.Reset()
		return nil, err
	}
	c.mu.Unlock()

	c.metrics.observeRegistration()
	c.buffer.SetReady()
	c.log.Info("transport subscription established", loggingpkg.LogFields{
		"event_names": c.eventNames,
	})
	return c.unsubscribeFunc(setup), nil
}

// registerAll registers a listener per event name in parallel and returns
// whatever succeeded, so a failure can be unwound by the caller.
func (c *Coordinator) registerAll(ctx context.Context) ([]UnregisterFunc, error) {
	var (
		mu         sync.Mutex
		unregister []UnregisterFunc
	)

	group, groupCtx := errgroup.WithContext(ctx)
	for _, name := range c.eventNames {
		group.Go(func() error {
			unreg, err := c.listener.RegisterListener(groupCtx, name, c.buffer.Push)
			if err != nil {
				return err
			}
			mu.Lock()
			unregister = append(unregister, unreg)
			mu.Unlock()
			return nil
		})
	}

	err := group.Wait()
	return unregister, err
}

// unsubscribeFunc builds the release closure for one subscriber. The setup
// pointer captured here is compared against the coordinator's current one at
// teardown time, so a stale closure released after a resurrection cannot
// tear down the new registration.
func (c *Coordinator) unsubscribeFunc(setup *setupState) UnsubscribeFunc {
	var once sync.Once
	return func() {
		once.Do(func() {
			c.release(setup)
		})
	}
}

func (c *Coordinator) release(setup *setupState) {
	c.mu.Lock()
	if c.setup != setup {
		c.mu.Unlock()
		return
	}
	if c.refCount > 0 {
		c.refCount--
	}
	c.metrics.setSubscriberRefs(c.refCount)
	if c.refCount > 0 {
		c.mu.Unlock()
		return
	}
	c.setup = nil
	c.mu.Unlock()

	c.teardown(setup)
}

// teardown waits for an in-flight setup to settle, then unregisters every
// listener and resets the buffer. Waiting first means an unsubscribe racing
// the initial registration can never leave a live listener behind.
func (c *Coordinator) teardown(setup *setupState) {
	<-setup.done

	for _, unreg := range setup.unregister {
		unreg()
	}
	c.buffer.Reset()
	c.log.Info("transport subscription torn down", nil)
}

// RefCount reports the number of live subscriber references.
func (c *Coordinator) RefCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refCount
}

// Shutdown force-releases the transport registration regardless of how many
// subscribers remain and marks the coordinator unusable. Idempotent.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	setup := c.setup
	c.setup = nil
	c.refCount = 0
	c.metrics.setSubscriberRefs(0)
	c.mu.Unlock()

	if setup != nil {
		c.teardown(setup)
	} else {
		c.buffer.Reset()
	}
}
