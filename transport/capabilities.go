package transport

// Capabilities describes the features supported by a transport backend. The
// delivery layer assumes nothing beyond what a transport declares here;
// notably, generation-order delivery within a session depends on
// SupportsOrdering.
type Capabilities struct {
	// Name is the human-readable name of the transport.
	Name string

	// Version is the transport/driver version.
	Version string

	// SupportsOrdering indicates the transport guarantees message ordering.
	// When true, events within a topic arrive in publish order, which the
	// buffer relies on for in-generation delivery order.
	SupportsOrdering bool

	// SupportsAck indicates the transport supports explicit message
	// acknowledgment.
	SupportsAck bool

	// SupportsNack indicates the transport supports negative acknowledgment
	// (redelivery).
	SupportsNack bool

	// SupportsTracing indicates the transport propagates tracing headers
	// natively.
	SupportsTracing bool

	// SupportsBatching indicates the transport can batch multiple messages.
	SupportsBatching bool

	// SupportsPartitioning indicates the transport supports message
	// partitioning.
	SupportsPartitioning bool

	// MaxMessageSize is the maximum message size in bytes (0 = unlimited or
	// unknown).
	MaxMessageSize int64
}

// SupportsReliableDelivery returns true if the transport supports
// at-least-once delivery semantics (ack + nack).
func (c Capabilities) SupportsReliableDelivery() bool {
	return c.SupportsAck && c.SupportsNack
}

// Predefined capability sets for the built-in transports.
var (
	// ChannelCapabilities for the in-memory Go channel transport.
	ChannelCapabilities = Capabilities{
		Name:             "channel",
		SupportsOrdering: true,
		SupportsAck:      true,
		SupportsNack:     true,
	}

	// KafkaCapabilities for the Apache Kafka transport.
	KafkaCapabilities = Capabilities{
		Name:                 "kafka",
		SupportsOrdering:     true,
		SupportsAck:          true,
		SupportsTracing:      true,
		SupportsBatching:     true,
		SupportsPartitioning: true,
		MaxMessageSize:       1048576, // Default 1MB
	}

	// RabbitMQCapabilities for the RabbitMQ/AMQP transport.
	RabbitMQCapabilities = Capabilities{
		Name:             "rabbitmq",
		SupportsOrdering: true,
		SupportsAck:      true,
		SupportsNack:     true,
		SupportsTracing:  true,
	}

	// NATSCapabilities for the NATS Core transport.
	NATSCapabilities = Capabilities{
		Name:            "nats",
		SupportsTracing: true,
		MaxMessageSize:  1048576, // Default 1MB
	}

	// NATSJetStreamCapabilities for the NATS JetStream transport.
	NATSJetStreamCapabilities = Capabilities{
		Name:             "nats-jetstream",
		SupportsOrdering: true,
		SupportsAck:      true,
		SupportsNack:     true,
		SupportsTracing:  true,
		SupportsBatching: true,
		MaxMessageSize:   1048576, // Default 1MB
	}

	// AWSCapabilities for the AWS SNS/SQS transport.
	AWSCapabilities = Capabilities{
		Name:             "aws",
		SupportsOrdering: true,
		SupportsAck:      true,
		SupportsNack:     true,
		SupportsTracing:  true,
		SupportsBatching: true,
		MaxMessageSize:   262144, // 256KB
	}

	// HTTPCapabilities for the HTTP-based transport.
	HTTPCapabilities = Capabilities{
		Name:            "http",
		SupportsTracing: true,
	}

	// IOCapabilities for the file-based capture/replay transport.
	IOCapabilities = Capabilities{
		Name:             "io",
		SupportsOrdering: true,
	}
)

// GetCapabilities returns the capabilities for a transport by name, using
// the default registry. Returns a zero Capabilities struct for unknown
// transports.
func GetCapabilities(transportName string) Capabilities {
	return DefaultRegistry.GetCapabilities(transportName)
}
