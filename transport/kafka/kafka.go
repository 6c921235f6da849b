// Package kafka provides the sarama-backed Kafka sink for bidgate.
package kafka

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/bidgate/internal/runtime/metadata"
	"github.com/drblury/bidgate/transport"
)

// TransportName is the name used to register this sink.
const TransportName = "kafka"

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg kafka.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return kafka.NewPublisher(cfg, logger)
}

// Register adds the Kafka sink to the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.KafkaCapabilities)
}

func init() {
	Register()
}

// Build creates a synchronous Kafka publisher. Each Publish returns once the
// configured acknowledgement level is satisfied.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	brokers := cfg.GetKafkaBrokers()
	if len(brokers) == 0 {
		return transport.Transport{}, fmt.Errorf("kafka: no brokers configured")
	}

	saramaCfg, err := SaramaConfig(cfg)
	if err != nil {
		return transport.Transport{}, err
	}

	publisher, err := PublisherFactory(
		kafka.PublisherConfig{
			Brokers:               brokers,
			Marshaler:             kafka.NewWithPartitioningMarshaler(PartitionKey),
			OverwriteSaramaConfig: saramaCfg,
		},
		logger,
	)
	if err != nil {
		return transport.Transport{}, err
	}

	return transport.Transport{Publisher: publisher}, nil
}

// SaramaConfig translates bidgate settings into a sarama producer config.
func SaramaConfig(cfg transport.Config) (*sarama.Config, error) {
	sc := kafka.DefaultSaramaSyncPublisherConfig()

	if id := cfg.GetKafkaClientID(); id != "" {
		sc.ClientID = id
	}

	acks, err := RequiredAcks(cfg.GetKafkaRequiredAcks())
	if err != nil {
		return nil, err
	}
	sc.Producer.RequiredAcks = acks

	codec, err := Compression(cfg.GetKafkaCompression())
	if err != nil {
		return nil, err
	}
	sc.Producer.Compression = codec

	sc.Producer.Retry.Max = max(cfg.GetKafkaProducerRetries(), 0)

	if timeout := cfg.GetPublishTimeout(); timeout > 0 {
		// The gateway gives up after timeout; the broker wait may not exceed
		// a second so stuck requests release their slot quickly.
		sc.Producer.Timeout = min(timeout, time.Second)
	}

	return sc, nil
}

// RequiredAcks maps a delivery mode name onto sarama's ack levels.
func RequiredAcks(mode string) (sarama.RequiredAcks, error) {
	switch strings.ToLower(mode) {
	case transport.AcksNone:
		return sarama.NoResponse, nil
	case "", transport.AcksLeader:
		return sarama.WaitForLocal, nil
	case transport.AcksAll:
		return sarama.WaitForAll, nil
	default:
		return 0, fmt.Errorf("kafka: unknown required acks %q", mode)
	}
}

// Compression maps a codec name onto sarama's compression codecs.
func Compression(name string) (sarama.CompressionCodec, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return sarama.CompressionNone, nil
	case "gzip":
		return sarama.CompressionGZIP, nil
	case "snappy":
		return sarama.CompressionSnappy, nil
	case "lz4":
		return sarama.CompressionLZ4, nil
	case "zstd":
		return sarama.CompressionZSTD, nil
	default:
		return sarama.CompressionNone, fmt.Errorf("kafka: unknown compression %q", name)
	}
}

// PartitionKey keys Kafka records by the partition key header, falling back
// to the message UUID.
func PartitionKey(_ string, msg *message.Message) (string, error) {
	if key := msg.Metadata.Get(metadata.KeyPartition); key != "" {
		return key, nil
	}
	return msg.UUID, nil
}

// Capabilities returns the capabilities of this sink.
func Capabilities() transport.Capabilities {
	return transport.KafkaCapabilities
}
