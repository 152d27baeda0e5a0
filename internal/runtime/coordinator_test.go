package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	catalogpkg "github.com/streamgate/streamgate/internal/runtime/catalog"
	envelopepkg "github.com/streamgate/streamgate/internal/runtime/envelope"
	errspkg "github.com/streamgate/streamgate/internal/runtime/errors"
)

// fakeListener records registrations in memory and lets tests emit events
// directly into the registered callbacks.
type fakeListener struct {
	mu           sync.Mutex
	callbacks    map[string]func(envelopepkg.Envelope)
	registered   int
	unregistered int
	failOn       string
	gate         chan struct{}
}

func newFakeListener() *fakeListener {
	return &fakeListener{callbacks: make(map[string]func(envelopepkg.Envelope))}
}

func (f *fakeListener) RegisterListener(ctx context.Context, eventName string, onEvent func(envelopepkg.Envelope)) (UnregisterFunc, error) {
	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if eventName == f.failOn {
		return nil, fmt.Errorf("connection refused for %s", eventName)
	}

	f.callbacks[eventName] = onEvent
	f.registered++
	return func() {
		f.mu.Lock()
		f.unregistered++
		f.mu.Unlock()
	}, nil
}

// emit pushes an event through the callback registered for its type. The
// callback survives unregistration on purpose so tests can model late
// arrivals from a slow backend.
func (f *fakeListener) emit(t *testing.T, eventType, requestID string, payload any) {
	t.Helper()

	f.mu.Lock()
	onEvent, ok := f.callbacks[eventType]
	f.mu.Unlock()
	if !ok {
		t.Fatalf("no listener registered for %s", eventType)
	}

	env, err := envelopepkg.New(eventType, requestID, payload)
	if err != nil {
		t.Fatalf("building envelope: %v", err)
	}
	onEvent(env)
}

func (f *fakeListener) counts() (registered, unregistered int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registered, f.unregistered
}

func newTestCoordinator(t *testing.T, listener *fakeListener) *Coordinator {
	t.Helper()
	coord, err := NewCoordinator(CoordinatorOptions{Listener: listener})
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	return coord
}

func TestSubscribeRegistersEveryCatalogEventOnce(t *testing.T) {
	listener := newFakeListener()
	coord := newTestCoordinator(t, listener)

	unsubscribe, err := coord.Subscribe(context.Background(), HandlerSet{})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer unsubscribe()

	registered, _ := listener.counts()
	if want := len(catalogpkg.Names()); registered != want {
		t.Fatalf("expected %d registrations, got %d", want, registered)
	}
	if !coord.Buffer().Ready() {
		t.Fatal("buffer must be ready once subscription settles")
	}
}

func TestRefCountSharesOneRegistration(t *testing.T) {
	listener := newFakeListener()
	coord := newTestCoordinator(t, listener)
	ctx := context.Background()

	unsub1, err := coord.Subscribe(ctx, HandlerSet{})
	if err != nil {
		t.Fatalf("first Subscribe: %v", err)
	}
	unsub2, err := coord.Subscribe(ctx, HandlerSet{})
	if err != nil {
		t.Fatalf("second Subscribe: %v", err)
	}

	registered, _ := listener.counts()
	if want := len(catalogpkg.Names()); registered != want {
		t.Fatalf("second subscriber caused extra registrations: %d", registered)
	}
	if got := coord.RefCount(); got != 2 {
		t.Fatalf("expected refcount 2, got %d", got)
	}

	unsub1()
	if _, unregistered := listener.counts(); unregistered != 0 {
		t.Fatal("transport torn down while a subscriber remained")
	}

	unsub2()
	if _, unregistered := listener.counts(); unregistered != len(catalogpkg.Names()) {
		t.Fatal("last unsubscribe must tear down every listener")
	}
	if !coord.Buffer().Destroyed() {
		t.Fatal("buffer must be destroyed after final teardown")
	}
}

func TestUnsubscribeIdempotent(t *testing.T) {
	listener := newFakeListener()
	coord := newTestCoordinator(t, listener)
	ctx := context.Background()

	unsub1, err := coord.Subscribe(ctx, HandlerSet{})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if _, err := coord.Subscribe(ctx, HandlerSet{}); err != nil {
		t.Fatalf("second Subscribe: %v", err)
	}

	unsub1()
	unsub1()
	unsub1()

	if got := coord.RefCount(); got != 1 {
		t.Fatalf("repeated unsubscribe drove refcount to %d", got)
	}
	if _, unregistered := listener.counts(); unregistered != 0 {
		t.Fatal("repeated unsubscribe must not tear down a shared registration")
	}
}

func TestRegistrationFailureLeavesNoPartialState(t *testing.T) {
	listener := newFakeListener()
	listener.failOn = catalogpkg.EventSessionError
	coord := newTestCoordinator(t, listener)

	_, err := coord.Subscribe(context.Background(), HandlerSet{})
	if err == nil {
		t.Fatal("expected Subscribe to fail")
	}

	registered, unregistered := listener.counts()
	if registered != unregistered {
		t.Fatalf("partial registration survived: %d registered, %d unregistered", registered, unregistered)
	}
	if got := coord.RefCount(); got != 0 {
		t.Fatalf("expected refcount 0 after failure, got %d", got)
	}

	// The coordinator must be reusable once the fault clears.
	listener.failOn = ""
	unsubscribe, err := coord.Subscribe(context.Background(), HandlerSet{})
	if err != nil {
		t.Fatalf("Subscribe after recovery: %v", err)
	}
	unsubscribe()
}

func TestEventsFlowThroughCoordinatorInOrder(t *testing.T) {
	listener := newFakeListener()
	coord := newTestCoordinator(t, listener)

	var order []string
	handlers := HandlerSet{
		OnMessageStart: func(catalogpkg.MessageStart) {
			order = append(order, "start")
		},
		OnMessageChunk: func(ev catalogpkg.MessageChunk) {
			order = append(order, "chunk:"+ev.Delta)
		},
		OnSessionComplete: func(catalogpkg.SessionComplete) {
			order = append(order, "complete")
		},
	}

	unsubscribe, err := coord.Subscribe(context.Background(), handlers)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer unsubscribe()

	tracker := NewRequestTracker(coord.Buffer())
	requestID := tracker.BeginRequest()

	listener.emit(t, catalogpkg.EventMessageStart, requestID, catalogpkg.MessageStart{MessageID: "m1", Role: "assistant"})
	listener.emit(t, catalogpkg.EventMessageChunk, requestID, catalogpkg.MessageChunk{MessageID: "m1", Delta: "Hello"})
	listener.emit(t, catalogpkg.EventSessionComplete, requestID, catalogpkg.SessionComplete{StopReason: "end_turn"})

	want := []string{"start", "chunk:Hello", "complete"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

func TestLateEventAfterTeardownIsDropped(t *testing.T) {
	listener := newFakeListener()
	coord := newTestCoordinator(t, listener)

	delivered := 0
	unsubscribe, err := coord.Subscribe(context.Background(), HandlerSet{
		OnMessageChunk: func(catalogpkg.MessageChunk) { delivered++ },
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	tracker := NewRequestTracker(coord.Buffer())
	requestID := tracker.BeginRequest()
	listener.emit(t, catalogpkg.EventMessageChunk, requestID, catalogpkg.MessageChunk{Delta: "live"})

	unsubscribe()

	// A slow backend can still invoke the callback after unregistration.
	listener.emit(t, catalogpkg.EventMessageChunk, requestID, catalogpkg.MessageChunk{Delta: "late"})

	if delivered != 1 {
		t.Fatalf("expected exactly one delivery, got %d", delivered)
	}
}

func TestSecondSubscriberTakesOverDelivery(t *testing.T) {
	listener := newFakeListener()
	coord := newTestCoordinator(t, listener)
	ctx := context.Background()

	var first, second int
	unsub1, err := coord.Subscribe(ctx, HandlerSet{
		OnMessageChunk: func(catalogpkg.MessageChunk) { first++ },
	})
	if err != nil {
		t.Fatalf("first Subscribe: %v", err)
	}
	defer unsub1()

	unsub2, err := coord.Subscribe(ctx, HandlerSet{
		OnMessageChunk: func(catalogpkg.MessageChunk) { second++ },
	})
	if err != nil {
		t.Fatalf("second Subscribe: %v", err)
	}
	defer unsub2()

	tracker := NewRequestTracker(coord.Buffer())
	requestID := tracker.BeginRequest()
	listener.emit(t, catalogpkg.EventMessageChunk, requestID, catalogpkg.MessageChunk{Delta: "x"})

	if first != 0 || second != 1 {
		t.Fatalf("expected replacement handlers only: first=%d second=%d", first, second)
	}
}

func TestShutdownDuringSetupTearsDownCleanly(t *testing.T) {
	listener := newFakeListener()
	listener.gate = make(chan struct{})
	coord := newTestCoordinator(t, listener)

	subscribed := make(chan error, 1)
	go func() {
		_, err := coord.Subscribe(context.Background(), HandlerSet{})
		subscribed <- err
	}()

	shutdownDone := make(chan struct{})
	go func() {
		// Give Subscribe a moment to park in registration.
		time.Sleep(10 * time.Millisecond)
		coord.Shutdown()
		close(shutdownDone)
	}()

	close(listener.gate)

	if err := <-subscribed; err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	<-shutdownDone

	registered, unregistered := listener.counts()
	if registered != unregistered {
		t.Fatalf("shutdown left listeners live: %d registered, %d unregistered", registered, unregistered)
	}
	if _, err := coord.Subscribe(context.Background(), HandlerSet{}); !errors.Is(err, errspkg.ErrCoordinatorClosed) {
		t.Fatalf("expected closed coordinator error, got %v", err)
	}
}

func TestShutdownIdempotent(t *testing.T) {
	listener := newFakeListener()
	coord := newTestCoordinator(t, listener)

	if _, err := coord.Subscribe(context.Background(), HandlerSet{}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	coord.Shutdown()
	coord.Shutdown()

	if got := coord.RefCount(); got != 0 {
		t.Fatalf("expected refcount 0 after shutdown, got %d", got)
	}
	if _, unregistered := listener.counts(); unregistered != len(catalogpkg.Names()) {
		t.Fatal("shutdown must unregister every listener exactly once")
	}
}
