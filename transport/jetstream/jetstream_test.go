package jetstream

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/streamgate/streamgate/transport"
)

func TestRegister(t *testing.T) {
	transport.DefaultRegistry = transport.NewRegistry()
	Register()

	caps := transport.GetCapabilities(TransportName)
	assert.Equal(t, "nats-jetstream", caps.Name)
	assert.True(t, caps.SupportsOrdering)
	assert.True(t, caps.SupportsReliableDelivery())
	assert.True(t, caps.SupportsTracing)
}

func TestCapabilities(t *testing.T) {
	caps := Capabilities()
	assert.Equal(t, transport.NATSJetStreamCapabilities, caps)
	assert.Equal(t, "nats-jetstream", caps.Name)
}

func TestTransportName(t *testing.T) {
	assert.Equal(t, "nats-jetstream", TransportName)
}

func TestConfig_withDefaults(t *testing.T) {
	t.Run("empty config gets defaults", func(t *testing.T) {
		cfg := Config{}
		result := cfg.withDefaults()

		assert.Equal(t, "STREAMGATE", result.StreamName)
		assert.Equal(t, DefaultMaxDeliver, result.MaxDeliver)
		assert.Equal(t, DefaultAckWait, result.AckWait)
		assert.Equal(t, 1, result.Replicas)
	})

	t.Run("custom values preserved", func(t *testing.T) {
		cfg := Config{
			URL:             "nats://localhost:4222",
			StreamName:      "CUSTOM",
			MaxDeliver:      5,
			AckWait:         60,
			Replicas:        3,
			RetentionPolicy: "workqueue",
		}
		result := cfg.withDefaults()

		assert.Equal(t, "nats://localhost:4222", result.URL)
		assert.Equal(t, "CUSTOM", result.StreamName)
		assert.Equal(t, 5, result.MaxDeliver)
		assert.Equal(t, cfg.AckWait, result.AckWait)
		assert.Equal(t, 3, result.Replicas)
		assert.Equal(t, "workqueue", result.RetentionPolicy)
	})

	t.Run("negative values get defaults", func(t *testing.T) {
		cfg := Config{
			MaxDeliver: -1,
			AckWait:    -1,
			Replicas:   -1,
		}
		result := cfg.withDefaults()

		assert.Equal(t, DefaultMaxDeliver, result.MaxDeliver)
		assert.Equal(t, DefaultAckWait, result.AckWait)
		assert.Equal(t, 1, result.Replicas)
	})
}

func TestTopicToConsumer(t *testing.T) {
	tr := &Transport{config: Config{}.withDefaults()}

	assert.Equal(t, "consumer_assistant_v1_message_chunk", tr.topicToConsumer("assistant.v1.message.chunk"))
	assert.Equal(t, "consumer_plain", tr.topicToConsumer("plain"))
}

func TestTopicToSubject(t *testing.T) {
	tr := &Transport{config: Config{}.withDefaults()}

	assert.Equal(t, "STREAMGATE.assistant.v1.message.chunk", tr.topicToSubject("assistant.v1.message.chunk"))
}
