// Package kafkago provides a Kafka sink for bidgate built on segmentio/kafka-go.
// It is an alternative to the sarama-backed kafka sink with fewer moving parts.
package kafkago

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/segmentio/kafka-go"

	"github.com/drblury/bidgate/internal/runtime/metadata"
	"github.com/drblury/bidgate/transport"
)

// TransportName is the name used to register this sink.
const TransportName = "kafkago"

const (
	// DefaultWriteTimeout bounds a single produce request when no publish timeout is configured.
	DefaultWriteTimeout = time.Second

	// DefaultBatchTimeout keeps per-request latency low at the cost of smaller batches.
	DefaultBatchTimeout = 5 * time.Millisecond
)

// Writer is the subset of *kafka.Writer used by the sink.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// WriterFactory allows overriding the writer creation for testing.
var WriterFactory = func(w *kafka.Writer) Writer {
	return w
}

// Probe checks that at least one broker is reachable. Tests replace it.
var Probe = func(ctx context.Context, brokers []string) error {
	var lastErr error
	for _, broker := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	return fmt.Errorf("kafkago: no reachable broker: %w", lastErr)
}

// Register adds the kafka-go sink to the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.KafkaGoCapabilities)
}

func init() {
	Register()
}

// Build creates a synchronous kafka-go writer keyed by the partition key header.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	brokers := cfg.GetKafkaBrokers()
	if len(brokers) == 0 {
		return transport.Transport{}, fmt.Errorf("kafkago: no brokers configured")
	}

	acks, err := RequiredAcks(cfg.GetKafkaRequiredAcks())
	if err != nil {
		return transport.Transport{}, err
	}

	compression, err := Compression(cfg.GetKafkaCompression())
	if err != nil {
		return transport.Transport{}, err
	}

	timeout := cfg.GetPublishTimeout()
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := Probe(probeCtx, brokers); err != nil {
		return transport.Transport{}, err
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           acks,
		Compression:            compression,
		BatchTimeout:           DefaultBatchTimeout,
		WriteTimeout:           timeout,
		MaxAttempts:            max(cfg.GetKafkaProducerRetries(), 0) + 1,
		AllowAutoTopicCreation: true,
	}
	if id := cfg.GetKafkaClientID(); id != "" {
		w.Transport = &kafka.Transport{ClientID: id}
	}

	logger.Info("kafka-go writer ready", watermill.LogFields{
		"brokers": strings.Join(brokers, ","),
		"acks":    cfg.GetKafkaRequiredAcks(),
	})

	return transport.Transport{Publisher: NewPublisher(WriterFactory(w), timeout, logger)}, nil
}

// Capabilities returns the capabilities of this sink.
func Capabilities() transport.Capabilities {
	return transport.KafkaGoCapabilities
}

// RequiredAcks maps a delivery mode name onto kafka-go ack levels.
func RequiredAcks(mode string) (kafka.RequiredAcks, error) {
	switch strings.ToLower(mode) {
	case transport.AcksNone:
		return kafka.RequireNone, nil
	case "", transport.AcksLeader:
		return kafka.RequireOne, nil
	case transport.AcksAll:
		return kafka.RequireAll, nil
	default:
		return kafka.RequireNone, fmt.Errorf("kafkago: unknown required acks %q", mode)
	}
}

// Compression maps a codec name onto kafka-go compression.
func Compression(name string) (kafka.Compression, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return 0, nil
	case "gzip":
		return kafka.Gzip, nil
	case "snappy":
		return kafka.Snappy, nil
	case "lz4":
		return kafka.Lz4, nil
	case "zstd":
		return kafka.Zstd, nil
	default:
		return 0, fmt.Errorf("kafkago: unknown compression %q", name)
	}
}

// Publisher adapts a kafka-go writer to message.Publisher.
type Publisher struct {
	writer  Writer
	timeout time.Duration
	logger  watermill.LoggerAdapter

	mu     sync.RWMutex
	closed bool
}

// NewPublisher wraps w. Every Publish call is bounded by timeout.
func NewPublisher(w Writer, timeout time.Duration, logger watermill.LoggerAdapter) *Publisher {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &Publisher{writer: w, timeout: timeout, logger: logger}
}

// Publish writes messages to topic and waits for the configured acks.
func (p *Publisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return fmt.Errorf("publisher is closed")
	}

	records := make([]kafka.Message, 0, len(messages))
	for _, msg := range messages {
		records = append(records, ToRecord(topic, msg))
	}

	ctx := context.Background()
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	if err := p.writer.WriteMessages(ctx, records...); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.writer.Close()
}

// ToRecord converts a watermill message into a kafka-go record. The record
// key is the partition key header, or the message UUID when absent.
func ToRecord(topic string, msg *message.Message) kafka.Message {
	key := msg.Metadata.Get(metadata.KeyPartition)
	if key == "" {
		key = msg.UUID
	}

	headers := make([]kafka.Header, 0, len(msg.Metadata)+1)
	headers = append(headers, kafka.Header{Key: "_watermill_message_uuid", Value: []byte(msg.UUID)})
	for k, v := range msg.Metadata {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	return kafka.Message{
		Topic:   topic,
		Key:     []byte(key),
		Value:   msg.Payload,
		Headers: headers,
	}
}
