// Package transport defines the publish sinks bidgate can hand accepted bid
// requests to. Each sink implementation (kafka, nats, rabbitmq, aws, ...) lives
// in its own sub-package and registers a Builder with the sink registry.
//
// A sink is publish-only: the gateway never consumes from the queue it feeds.
package transport

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Transport wraps the publisher produced by a sink builder.
type Transport struct {
	Publisher message.Publisher
}

// Builder is the function signature for creating a sink from config.
// Builders are expected to fail when the downstream system cannot be reached
// at boot, so the process can refuse to start.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error)

// Config provides the configuration values needed by sinks.
// This interface allows sinks to access only the config they need
// without depending on the full config package.
type Config interface {
	// GetPubSubSystem returns the sink name.
	GetPubSubSystem() string

	// GetPublishTimeout returns the bounded wait the gateway applies to a
	// single publish. Sinks use it to size their own network timeouts.
	GetPublishTimeout() time.Duration

	// Kafka
	GetKafkaBrokers() []string
	GetKafkaClientID() string
	GetKafkaRequiredAcks() string
	GetKafkaProducerRetries() int
	GetKafkaCompression() string

	// NATS
	GetNATSURL() string
	GetNATSStream() string

	// RabbitMQ
	GetRabbitMQURL() string

	// HTTP
	GetHTTPPublisherURL() string

	// IO
	GetIOFile() string

	// AWS
	GetAWSRegion() string
	GetAWSAccountID() string
	GetAWSAccessKeyID() string
	GetAWSSecretAccessKey() string
	GetAWSEndpoint() string
}

// CapabilitiesProvider is implemented by sinks that can report their capabilities.
type CapabilitiesProvider interface {
	Capabilities() Capabilities
}

// Delivery modes shared by the Kafka sinks.
const (
	AcksNone   = "none"
	AcksLeader = "leader"
	AcksAll    = "all"
)
