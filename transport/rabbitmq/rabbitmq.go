// Package rabbitmq provides a RabbitMQ/AMQP sink for bidgate.
package rabbitmq

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/bidgate/transport"
)

// TransportName is the name used to register this sink.
const TransportName = "rabbitmq"

// ConnectionFactory allows overriding the connection creation for testing.
var ConnectionFactory = func(cfg amqp.ConnectionConfig, logger watermill.LoggerAdapter) (*amqp.ConnectionWrapper, error) {
	return amqp.NewConnection(cfg, logger)
}

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg amqp.Config, logger watermill.LoggerAdapter, conn *amqp.ConnectionWrapper) (message.Publisher, error) {
	return amqp.NewPublisherWithConnection(cfg, logger, conn)
}

// Register registers the RabbitMQ sink with the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.RabbitMQCapabilities)
}

func init() {
	Register()
}

// Build creates a RabbitMQ publisher on a durable fanout exchange named after
// the topic. Publisher confirms are enabled so Publish waits for the broker.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	url := cfg.GetRabbitMQURL()
	if url == "" {
		return transport.Transport{}, fmt.Errorf("rabbitmq: url is required")
	}

	amqpConfig := PublisherConfig(url)

	conn, err := ConnectionFactory(amqp.ConnectionConfig{
		AmqpURI:   url,
		Reconnect: amqp.DefaultReconnectConfig(),
	}, logger)
	if err != nil {
		return transport.Transport{}, err
	}

	publisher, err := PublisherFactory(amqpConfig, logger, conn)
	if err != nil {
		return transport.Transport{}, err
	}

	return transport.Transport{Publisher: publisher}, nil
}

// PublisherConfig returns the AMQP config used for bid request publishing.
func PublisherConfig(url string) amqp.Config {
	c := amqp.NewDurablePubSubConfig(url, amqp.GenerateQueueNameTopicName)
	c.Publish.ConfirmDelivery = true
	return c
}

// Capabilities returns the capabilities of this sink.
func Capabilities() transport.Capabilities {
	return transport.RabbitMQCapabilities
}
