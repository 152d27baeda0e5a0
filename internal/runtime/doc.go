// Package runtime implements the event-delivery coordination core: the
// buffer that orders and generation-filters backend events, the ref-counted
// coordinator that keeps exactly one transport registration alive per
// session, the request tracker that mints generation ids before dispatch,
// and the thin consumer state machine driven by delivered events.
//
// The pieces compose bottom-up. A Conn adapts a Watermill publisher and
// subscriber to the listener/invoker primitives. A Coordinator owns one
// EventBuffer and registers the event catalog on the Conn exactly once, no
// matter how many subscribers attach; the Registry keys coordinators by
// session id. A Session sits on top and turns delivered events into a small
// idle/sending/streaming/complete/error state machine. Service assembles the
// whole pipeline from a Config.
//
// Correctness hinges on ordering rather than throughput: generations are
// registered with the buffer before the request that produces them is
// dispatched, teardown always awaits an in-flight setup, and a reset flips
// the buffer to destroyed before anything else so racing pushes are
// rejected.
package runtime
