package envelope

import (
	"strings"
	"testing"

	"google.golang.org/protobuf/types/known/structpb"

	catalogpkg "github.com/streamgate/streamgate/internal/runtime/catalog"
)

func TestNewPopulatesDeliveryCoordinates(t *testing.T) {
	env, err := New(catalogpkg.EventMessageChunk, "req_123", catalogpkg.MessageChunk{
		MessageID: "m1",
		Delta:     "hello",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if env.Version != Version {
		t.Fatalf("expected version %q, got %q", Version, env.Version)
	}
	if env.Type != catalogpkg.EventMessageChunk {
		t.Fatalf("unexpected type %q", env.Type)
	}
	if env.RequestID != "req_123" {
		t.Fatalf("unexpected request id %q", env.RequestID)
	}
	if !strings.HasPrefix(env.ID, "evt_") {
		t.Fatalf("expected event id prefix, got %q", env.ID)
	}
	if env.Time.IsZero() {
		t.Fatal("expected emission time to be set")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	env, err := New(catalogpkg.EventToolStart, "req_456", catalogpkg.ToolStart{
		CallID:    "call_1",
		Name:      "read_file",
		Arguments: `{"path":"main.go"}`,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	raw, err := env.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Type != env.Type || decoded.RequestID != env.RequestID || decoded.ID != env.ID {
		t.Fatalf("round trip lost coordinates: %+v", decoded)
	}

	var payload catalogpkg.ToolStart
	if err := decoded.DecodeData(&payload); err != nil {
		t.Fatalf("DecodeData: %v", err)
	}
	if payload.Name != "read_file" || payload.CallID != "call_1" {
		t.Fatalf("round trip lost payload: %+v", payload)
	}
}

func TestDecodeRejectsBadEnvelopes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{
			name: "missing request id",
			raw:  `{"version":"1","type":"assistant.v1.message.chunk","id":"evt_1","data":{}}`,
		},
		{
			name: "missing type",
			raw:  `{"version":"1","id":"evt_1","request_id":"req_1","data":{}}`,
		},
		{
			name: "unsupported version",
			raw:  `{"version":"2","type":"assistant.v1.message.chunk","id":"evt_1","request_id":"req_1"}`,
		},
		{
			name: "not json",
			raw:  `chunk req_1 hello`,
		},
		{
			name: "empty",
			raw:  ``,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode([]byte(tc.raw)); err == nil {
				t.Fatal("expected decode error")
			}
		})
	}
}

func TestProtoPayloadRoundTrip(t *testing.T) {
	payload, err := structpb.NewStruct(map[string]any{
		"message_id": "m1",
		"delta":      "hello",
	})
	if err != nil {
		t.Fatalf("structpb.NewStruct: %v", err)
	}

	env, err := NewProto(catalogpkg.EventMessageChunk, "req_789", payload)
	if err != nil {
		t.Fatalf("NewProto: %v", err)
	}

	var decoded structpb.Struct
	if err := env.DecodeDataProto(&decoded); err != nil {
		t.Fatalf("DecodeDataProto: %v", err)
	}
	if got := decoded.Fields["delta"].GetStringValue(); got != "hello" {
		t.Fatalf("expected delta %q, got %q", "hello", got)
	}
}
