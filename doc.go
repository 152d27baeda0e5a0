// Package streamgate coordinates event delivery between a long-running
// assistant backend and any number of foreground subscribers that attach and
// detach independently of the backend's lifecycle. It guarantees exactly one
// transport registration per session no matter how many subscribers share
// it, buffers events that arrive before a subscriber is ready, and filters
// out events from superseded requests so a slow response can never corrupt a
// newer one.
//
// The pipeline is assembled from a Config: pick the backing transport
// (Kafka, RabbitMQ, AWS SNS/SQS, NATS, NATS JetStream, HTTP, file I/O, or
// in-memory Go channels), create a Service, and obtain a Session per
// conversation. A Session is attached once, then driven with Send; the
// backend's message-start, chunk, tool, and completion events move it
// through a small idle/sending/streaming/complete/error state machine.
//
// # Generations
//
// Every Send mints a generation id that is registered with the session's
// event buffer before the request goes out on the wire, so even the first
// event of the response passes the generation filter. Events tagged with an
// older generation are dropped, never delivered.
//
// # Subscribers
//
// Coordinator reference-counts subscribers: the first Subscribe performs the
// transport registration for the whole event catalog in one batched step,
// later ones just swap the delivery handlers in, and the registration is
// torn down when the last unsubscribe lands. Unsubscribe closures are
// idempotent and safe to call while the initial setup is still in flight.
//
// # Wire contract
//
// Every event travels in a versioned Envelope carrying a mandatory
// request_id checked at decode time; envelopes that cannot prove their
// generation are dropped with a log line. Event names are namespaced and
// versioned (assistant.v1.message.chunk and friends); unknown names are
// ignored for forward compatibility.
//
// Transports live in sub-packages and register themselves on import:
//
//	import _ "github.com/streamgate/streamgate/transport/channel"
package streamgate
