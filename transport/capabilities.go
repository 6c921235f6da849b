package transport

// Capabilities describes the delivery properties of a publish sink.
type Capabilities struct {
	// Name is the registered sink name.
	Name string

	// ConfirmsDelivery is true when Publish returns only after the broker
	// acknowledged the message. When false a nil error means the client
	// accepted the message locally and nothing more.
	ConfirmsDelivery bool

	// Durable indicates the broker persists messages beyond process memory.
	Durable bool

	// SupportsOrdering indicates messages sharing a key keep their relative order.
	SupportsOrdering bool

	// SupportsPartitioning indicates the partition key header is honoured.
	SupportsPartitioning bool

	// SupportsHeaders indicates message metadata travels as native headers.
	SupportsHeaders bool

	// SupportsTracing indicates the sink propagates tracing headers natively.
	SupportsTracing bool

	// SupportsBatching indicates the client batches messages on the wire.
	SupportsBatching bool

	// MaxMessageSize is the maximum message size in bytes (0 = unlimited/unknown).
	MaxMessageSize int64
}

// FireAndForget reports whether a successful Publish carries no broker acknowledgement.
func (c Capabilities) FireAndForget() bool {
	return !c.ConfirmsDelivery
}

// Fits reports whether a payload of size bytes is within the sink limit.
func (c Capabilities) Fits(size int64) bool {
	return c.MaxMessageSize <= 0 || size <= c.MaxMessageSize
}

// Predefined capability sets for the built-in sinks.
var (
	// ChannelCapabilities for the in-memory Go channel sink.
	ChannelCapabilities = Capabilities{
		Name:             "channel",
		ConfirmsDelivery: false,
		SupportsOrdering: true,
		SupportsHeaders:  true,
	}

	// KafkaCapabilities for the sarama-backed Kafka sink.
	KafkaCapabilities = Capabilities{
		Name:                 "kafka",
		ConfirmsDelivery:     true,
		Durable:              true,
		SupportsOrdering:     true,
		SupportsPartitioning: true,
		SupportsHeaders:      true,
		SupportsTracing:      true,
		SupportsBatching:     true,
		MaxMessageSize:       1048576, // Default 1MB
	}

	// KafkaGoCapabilities for the segmentio/kafka-go Kafka sink.
	KafkaGoCapabilities = Capabilities{
		Name:                 "kafkago",
		ConfirmsDelivery:     true,
		Durable:              true,
		SupportsOrdering:     true,
		SupportsPartitioning: true,
		SupportsHeaders:      true,
		SupportsBatching:     true,
		MaxMessageSize:       1048576,
	}

	// RabbitMQCapabilities for the RabbitMQ/AMQP sink.
	RabbitMQCapabilities = Capabilities{
		Name:             "rabbitmq",
		ConfirmsDelivery: false,
		Durable:          true,
		SupportsOrdering: true,
		SupportsHeaders:  true,
		SupportsTracing:  true,
	}

	// NATSCapabilities for the NATS Core sink.
	NATSCapabilities = Capabilities{
		Name:            "nats",
		SupportsHeaders: true,
		SupportsTracing: true,
		MaxMessageSize:  1048576, // Default 1MB
	}

	// NATSJetStreamCapabilities for the NATS JetStream sink.
	NATSJetStreamCapabilities = Capabilities{
		Name:             "nats-jetstream",
		ConfirmsDelivery: true,
		Durable:          true,
		SupportsOrdering: true,
		SupportsHeaders:  true,
		SupportsTracing:  true,
		MaxMessageSize:   1048576,
	}

	// AWSCapabilities for the AWS SNS sink.
	AWSCapabilities = Capabilities{
		Name:             "aws",
		ConfirmsDelivery: true,
		Durable:          true,
		SupportsHeaders:  true,
		SupportsTracing:  true,
		MaxMessageSize:   262144, // 256KB
	}

	// AWSSQSCapabilities for the AWS SQS sink.
	AWSSQSCapabilities = Capabilities{
		Name:             "aws-sqs",
		ConfirmsDelivery: true,
		Durable:          true,
		SupportsHeaders:  true,
		MaxMessageSize:   262144,
	}

	// HTTPCapabilities for the HTTP webhook sink.
	HTTPCapabilities = Capabilities{
		Name:             "http",
		ConfirmsDelivery: true,
		SupportsHeaders:  true,
		SupportsTracing:  true,
	}

	// IOCapabilities for the append-only file sink.
	IOCapabilities = Capabilities{
		Name:             "io",
		ConfirmsDelivery: true,
		Durable:          true,
		SupportsOrdering: true,
	}
)

// GetCapabilities returns the capabilities for a sink by name.
// Uses the registry to look up capabilities registered by each sink package.
// Returns a zero Capabilities struct if the sink is unknown.
func GetCapabilities(transportName string) Capabilities {
	return DefaultRegistry.GetCapabilities(transportName)
}
