package runtime

import (
	"context"
	"strings"
	"sync"

	catalogpkg "github.com/streamgate/streamgate/internal/runtime/catalog"
	errspkg "github.com/streamgate/streamgate/internal/runtime/errors"
	loggingpkg "github.com/streamgate/streamgate/internal/runtime/logging"
)

// SessionState is the consumer-side view of one conversation.
type SessionState string

const (
	StateIdle      SessionState = "idle"
	StateSending   SessionState = "sending"
	StateStreaming SessionState = "streaming"
	StateComplete  SessionState = "complete"
	StateError     SessionState = "error"
)

// Session is a thin state machine driven entirely by buffer-delivered
// events. All conversational state lives here, not in the buffer, so a
// handler-set swap after a remount loses nothing.
type Session struct {
	coordinator *Coordinator
	invoker     Invoker
	tracker     *RequestTracker
	log         loggingpkg.ServiceLogger

	mu          sync.Mutex
	state       SessionState
	transcript  strings.Builder
	lastErr     *catalogpkg.SessionError
	unsubscribe UnsubscribeFunc
}

// NewSession wires a session to a coordinator and the invoker requests are
// dispatched on.
func NewSession(coordinator *Coordinator, invoker Invoker, log loggingpkg.ServiceLogger) (*Session, error) {
	if coordinator == nil {
		return nil, errspkg.ErrCoordinatorRequired
	}
	if invoker == nil {
		return nil, errspkg.ErrInvokerRequired
	}
	if log == nil {
		log = loggingpkg.Nop()
	}
	return &Session{
		coordinator: coordinator,
		invoker:     invoker,
		tracker:     NewRequestTracker(coordinator.Buffer()),
		log:         log,
		state:       StateIdle,
	}, nil
}

// Attach subscribes the session's handlers through the coordinator. Must be
// called before Send.
func (s *Session) Attach(ctx context.Context) error {
	unsubscribe, err := s.coordinator.Subscribe(ctx, s.handlerSet())
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()
	return nil
}

// Rebind reinstalls the session's handlers on the shared buffer. Used after
// the hosting component is replaced: the subscription persists, only the
// delivery targets change.
func (s *Session) Rebind() {
	s.coordinator.Buffer().UpdateHandlers(s.handlerSet())
}

// Send begins a new request generation and dispatches the prompt. The
// generation is registered with the buffer before the invoke goes out, so
// even the first event of the response passes the filter.
func (s *Session) Send(ctx context.Context, prompt string) (string, error) {
	requestID := s.tracker.BeginRequest()

	s.mu.Lock()
	s.state = StateSending
	s.transcript.Reset()
	s.lastErr = nil
	s.mu.Unlock()

	err := s.invoker.Invoke(ctx, catalogpkg.MethodSessionSend, catalogpkg.SendRequest{
		RequestID: requestID,
		Prompt:    prompt,
	})
	if err != nil {
		s.mu.Lock()
		s.state = StateError
		s.mu.Unlock()
		return "", err
	}
	return requestID, nil
}

// State returns the current consumer state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transcript returns the assistant output accumulated for the current
// generation.
func (s *Session) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.String()
}

// LastError returns the backend error that moved the session into
// StateError, or nil.
func (s *Session) LastError() *catalogpkg.SessionError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// CurrentGeneration exposes the active generation id for correlation.
func (s *Session) CurrentGeneration() string {
	return s.tracker.CurrentGeneration()
}

// Close releases the session's subscriber reference. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// handlerSet builds a fresh callback set bound to this session. Handlers
// run under the buffer lock, so they only touch session state and never
// call back into the buffer or coordinator.
func (s *Session) handlerSet() HandlerSet {
	return HandlerSet{
		OnMessageStart: func(ev catalogpkg.MessageStart) {
			s.mu.Lock()
			s.state = StateStreaming
			s.mu.Unlock()
		},
		OnMessageChunk: func(ev catalogpkg.MessageChunk) {
			s.mu.Lock()
			s.state = StateStreaming
			s.transcript.WriteString(ev.Delta)
			s.mu.Unlock()
		},
		OnToolStart: func(ev catalogpkg.ToolStart) {
			s.log.Debug("tool call started", loggingpkg.LogFields{
				"call_id": ev.CallID,
				"tool":    ev.Name,
			})
		},
		OnToolComplete: func(ev catalogpkg.ToolComplete) {
			s.log.Debug("tool call finished", loggingpkg.LogFields{
				"call_id": ev.CallID,
				"tool":    ev.Name,
				"failed":  ev.Err != "",
			})
		},
		OnSessionComplete: func(ev catalogpkg.SessionComplete) {
			s.mu.Lock()
			s.state = StateComplete
			s.mu.Unlock()
		},
		OnError: func(ev catalogpkg.SessionError) {
			s.mu.Lock()
			s.state = StateError
			s.lastErr = &ev
			s.mu.Unlock()
		},
	}
}
