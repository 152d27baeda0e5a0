// Package envelope defines the tagged wrapper carried by every event on the
// wire. The envelope makes the generation id an explicit, mandatory field
// checked at decode time instead of an ad hoc lookup inside an untyped
// payload: an event that cannot prove which request it belongs to is
// undeliverable by construction.
package envelope

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	idspkg "github.com/streamgate/streamgate/internal/runtime/ids"
	"github.com/streamgate/streamgate/internal/runtime/jsoncodec"
)

// Version is the envelope schema version produced by this package.
const Version = "1"

// Envelope wraps one event payload together with its delivery coordinates.
type Envelope struct {
	// Version is the envelope schema version. Must be "1".
	Version string `json:"version"`

	// Type is the namespaced catalog name of the event,
	// e.g. "assistant.v1.message.chunk".
	Type string `json:"type"`

	// ID uniquely identifies this envelope. Generated as a ULID when unset.
	ID string `json:"id"`

	// RequestID is the generation id correlating the event with one
	// outstanding request. Mandatory; envelopes without it are rejected at
	// decode time.
	RequestID string `json:"request_id"`

	// Time is when the backend emitted the event.
	Time time.Time `json:"time,omitempty"`

	// Data is the raw event payload, decoded lazily against the catalog
	// shape for Type.
	Data json.RawMessage `json:"data,omitempty"`
}

// New builds an envelope around a JSON-serialisable payload.
func New(eventType, requestID string, data any) (Envelope, error) {
	raw, err := jsoncodec.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("streamgate: encoding %s payload: %w", eventType, err)
	}
	return Envelope{
		Version:   Version,
		Type:      eventType,
		ID:        idspkg.NewEventID(),
		RequestID: requestID,
		Time:      time.Now().UTC(),
		Data:      raw,
	}, nil
}

// NewProto builds an envelope around a protobuf payload, serialised with
// protojson so the wire format stays JSON-inspectable.
func NewProto(eventType, requestID string, msg proto.Message) (Envelope, error) {
	raw, err := protojson.Marshal(msg)
	if err != nil {
		return Envelope{}, fmt.Errorf("streamgate: encoding %s proto payload: %w", eventType, err)
	}
	env, err := New(eventType, requestID, nil)
	if err != nil {
		return Envelope{}, err
	}
	env.Data = raw
	return env, nil
}

// Encode serialises the envelope for publishing.
func (e Envelope) Encode() ([]byte, error) {
	return jsoncodec.Marshal(e)
}

// Validate checks the structural requirements of a decoded envelope.
func (e Envelope) Validate() error {
	if e.Version != Version {
		return fmt.Errorf("unsupported envelope version %q", e.Version)
	}
	if e.Type == "" {
		return fmt.Errorf("envelope type is required")
	}
	if e.RequestID == "" {
		return fmt.Errorf("envelope request_id is required")
	}
	return nil
}

// Decode parses and validates an envelope from raw transport bytes. A
// missing or malformed request_id fails here, which is what lets the buffer
// apply its drop-and-log policy in one place.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := jsoncodec.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("malformed envelope: %w", err)
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// DecodeData unmarshals the envelope payload into v.
func (e Envelope) DecodeData(v any) error {
	if len(e.Data) == 0 {
		return nil
	}
	return jsoncodec.Unmarshal(e.Data, v)
}

// DecodeDataProto unmarshals a protojson payload into msg.
func (e Envelope) DecodeDataProto(msg proto.Message) error {
	if len(e.Data) == 0 {
		return nil
	}
	return protojson.Unmarshal(e.Data, msg)
}
