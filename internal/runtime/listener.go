package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	envelopepkg "github.com/streamgate/streamgate/internal/runtime/envelope"
	errspkg "github.com/streamgate/streamgate/internal/runtime/errors"
	idspkg "github.com/streamgate/streamgate/internal/runtime/ids"
	jsoncodecpkg "github.com/streamgate/streamgate/internal/runtime/jsoncodec"
	loggingpkg "github.com/streamgate/streamgate/internal/runtime/logging"
)

// UnregisterFunc removes a previously registered listener. Safe to call more
// than once.
type UnregisterFunc func()

// Listener is the receiving half of the transport primitive: it delivers
// every event published under eventName to onEvent until the returned
// UnregisterFunc is called.
type Listener interface {
	RegisterListener(ctx context.Context, eventName string, onEvent func(envelopepkg.Envelope)) (UnregisterFunc, error)
}

// Invoker is the sending half of the transport primitive: a fire-and-forget
// method call whose results come back as events, never as a return value.
type Invoker interface {
	Invoke(ctx context.Context, method string, args any) error
}

// Conn adapts a Watermill publisher/subscriber pair to the listener/invoker
// primitives. Each registered listener owns one pump goroutine that decodes
// envelopes off the subscription channel and acks every message; delivery
// guarantees beyond at-most-once-per-listener are the transport's concern.
type Conn struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	log        loggingpkg.ServiceLogger
	tracer     trace.Tracer

	mu     sync.Mutex
	cancel []context.CancelFunc
	closed bool
}

// NewConn wraps a publisher/subscriber pair. The logger may be nil.
func NewConn(publisher message.Publisher, subscriber message.Subscriber, log loggingpkg.ServiceLogger) (*Conn, error) {
	if publisher == nil || subscriber == nil {
		return nil, errspkg.ErrTransportRequired
	}
	if log == nil {
		log = loggingpkg.Nop()
	}
	return &Conn{
		publisher:  publisher,
		subscriber: subscriber,
		log:        log,
		tracer:     otel.Tracer("streamgate-conn"),
	}, nil
}

// RegisterListener subscribes to eventName and pumps decoded envelopes into
// onEvent. Messages that fail envelope validation are acked and dropped with
// a log line; redelivering a malformed payload cannot make it well formed.
func (c *Conn) RegisterListener(ctx context.Context, eventName string, onEvent func(envelopepkg.Envelope)) (UnregisterFunc, error) {
	if eventName == "" {
		return nil, errspkg.ErrEventNameRequired
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errspkg.ErrConnClosed
	}
	c.mu.Unlock()

	pumpCtx, cancel := context.WithCancel(ctx)
	messages, err := c.subscriber.Subscribe(pumpCtx, eventName)
	if err != nil {
		cancel()
		return nil, &errspkg.RegistrationError{EventName: eventName, Err: err}
	}

	c.mu.Lock()
	c.cancel = append(c.cancel, cancel)
	c.mu.Unlock()

	go c.pump(eventName, messages, onEvent)

	var once sync.Once
	return func() {
		once.Do(cancel)
	}, nil
}

func (c *Conn) pump(eventName string, messages <-chan *message.Message, onEvent func(envelopepkg.Envelope)) {
	for msg := range messages {
		_, span := c.tracer.Start(msg.Context(), "ReceiveEvent")
		span.SetAttributes(
			attribute.String("event.name", eventName),
			attribute.String("message.uuid", msg.UUID),
		)

		env, err := envelopepkg.Decode(msg.Payload)
		if err != nil {
			c.log.Error("dropping malformed event", err, loggingpkg.LogFields{
				"event_name":   eventName,
				"message_uuid": msg.UUID,
			})
			msg.Ack()
			span.End()
			continue
		}

		onEvent(env)
		msg.Ack()
		span.End()
	}
}

// Invoke publishes a method call. The request id travels in the message
// metadata as well as the payload so transport-level tooling can correlate
// without decoding.
func (c *Conn) Invoke(ctx context.Context, method string, args any) error {
	if method == "" {
		return errspkg.ErrMethodRequired
	}

	payload, err := jsoncodecpkg.Marshal(args)
	if err != nil {
		return fmt.Errorf("streamgate: encoding %s args: %w", method, err)
	}

	msg := message.NewMessage(idspkg.CreateULID(), payload)
	if ctx != nil {
		msg.SetContext(ctx)
	}
	if correlated, ok := args.(interface{ CorrelationID() string }); ok {
		msg.Metadata.Set("correlation_id", correlated.CorrelationID())
	}

	spanCtx, span := c.tracer.Start(msg.Context(), "Invoke")
	span.SetAttributes(
		attribute.String("invoke.method", method),
		attribute.String("message.uuid", msg.UUID),
	)
	defer span.End()
	msg.SetContext(spanCtx)

	return c.publisher.Publish(method, msg)
}

// Close cancels every listener pump still attached to the connection. The
// underlying publisher/subscriber are owned by the caller and stay open.
func (c *Conn) Close() {
	c.mu.Lock()
	cancels := c.cancel
	c.cancel = nil
	c.closed = true
	c.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}
