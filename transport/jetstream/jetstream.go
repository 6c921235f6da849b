// Package jetstream provides a NATS JetStream sink for bidgate.
package jetstream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats.go"

	"github.com/drblury/bidgate/transport"
)

// TransportName is the name used to register this sink.
const TransportName = "nats-jetstream"

const (
	// DefaultStreamName is used when no stream is configured.
	DefaultStreamName = "BIDGATE"

	// DefaultMaxAge bounds how long the stream retains bid requests.
	DefaultMaxAge = 24 * time.Hour

	// DefaultAckWait is the publish acknowledgement wait.
	DefaultAckWait = time.Second
)

// Register adds the JetStream sink to the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.NATSJetStreamCapabilities)
}

func init() {
	Register()
}

// Build connects to NATS, ensures the stream exists, and returns a publisher
// that waits for the JetStream acknowledgement of every message.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	config := Config{
		URL:        cfg.GetNATSURL(),
		StreamName: cfg.GetNATSStream(),
		AckWait:    cfg.GetPublishTimeout(),
	}

	p, err := New(config, logger)
	if err != nil {
		return transport.Transport{}, err
	}

	return transport.Transport{Publisher: p}, nil
}

// Capabilities returns the capabilities of this sink.
func Capabilities() transport.Capabilities {
	return transport.NATSJetStreamCapabilities
}

// Config holds NATS JetStream-specific configuration.
type Config struct {
	// URL is the NATS server URL.
	URL string

	// StreamName is the name of the JetStream stream to publish into.
	StreamName string

	// AckWait bounds the wait for the stream acknowledgement.
	AckWait time.Duration

	// Replicas is the number of stream replicas (for clustering).
	Replicas int

	// MaxAge bounds message retention in the stream.
	MaxAge time.Duration
}

func (c Config) withDefaults() Config {
	if c.StreamName == "" {
		c.StreamName = DefaultStreamName
	}
	if c.AckWait <= 0 {
		c.AckWait = DefaultAckWait
	}
	if c.Replicas <= 0 {
		c.Replicas = 1
	}
	if c.MaxAge <= 0 {
		c.MaxAge = DefaultMaxAge
	}
	return c
}

// StreamPublisher is the subset of nats.JetStreamContext the sink publishes with.
type StreamPublisher interface {
	PublishMsg(m *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Publisher implements message.Publisher for NATS JetStream.
type Publisher struct {
	nc     *nats.Conn
	js     StreamPublisher
	config Config
	logger watermill.LoggerAdapter

	closed   bool
	closedMu sync.RWMutex
}

// New creates a new NATS JetStream publisher.
func New(cfg Config, logger watermill.LoggerAdapter) (*Publisher, error) {
	cfg = cfg.withDefaults()
	if cfg.URL == "" {
		return nil, fmt.Errorf("nats-jetstream: url is required")
	}

	nc, err := nats.Connect(cfg.URL, nats.Name("bidgate"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if err := ensureStream(js, cfg, logger); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream: %w", err)
	}

	p := NewWithStream(js, cfg, logger)
	p.nc = nc
	return p, nil
}

// NewWithStream creates a publisher on top of an existing JetStream context.
func NewWithStream(js StreamPublisher, cfg Config, logger watermill.LoggerAdapter) *Publisher {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &Publisher{
		js:     js,
		config: cfg.withDefaults(),
		logger: logger,
	}
}

func ensureStream(js nats.JetStreamContext, cfg Config, logger watermill.LoggerAdapter) error {
	streamCfg := &nats.StreamConfig{
		Name:      cfg.StreamName,
		Subjects:  []string{cfg.StreamName + ".>"},
		MaxAge:    cfg.MaxAge,
		Replicas:  cfg.Replicas,
		Retention: nats.LimitsPolicy,
	}

	if _, err := js.AddStream(streamCfg); err != nil {
		if _, err := js.UpdateStream(streamCfg); err != nil {
			return err
		}
		if logger != nil {
			logger.Info("JetStream stream updated", watermill.LogFields{
				"stream": cfg.StreamName,
			})
		}
	}
	return nil
}

// Publish publishes messages to the JetStream stream. The message UUID is
// sent as the JetStream message id so the stream drops duplicates.
func (p *Publisher) Publish(topic string, messages ...*message.Message) error {
	p.closedMu.RLock()
	defer p.closedMu.RUnlock()
	if p.closed {
		return fmt.Errorf("publisher is closed")
	}

	subject := p.Subject(topic)

	for _, msg := range messages {
		headers := nats.Header{}
		for k, v := range msg.Metadata {
			headers.Set(k, v)
		}

		natsMsg := &nats.Msg{
			Subject: subject,
			Data:    msg.Payload,
			Header:  headers,
		}

		if _, err := p.js.PublishMsg(natsMsg, nats.MsgId(msg.UUID), nats.AckWait(p.config.AckWait)); err != nil {
			return fmt.Errorf("failed to publish to JetStream: %w", err)
		}
	}

	return nil
}

// Subject maps a topic onto a subject inside the configured stream.
func (p *Publisher) Subject(topic string) string {
	return p.config.StreamName + "." + topic
}

// Close closes the JetStream connection.
func (p *Publisher) Close() error {
	p.closedMu.Lock()
	defer p.closedMu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	if p.nc != nil {
		if err := p.nc.Drain(); err != nil {
			p.nc.Close()
		}
	}
	return nil
}

// Capabilities returns the JetStream sink capabilities.
func (p *Publisher) Capabilities() transport.Capabilities {
	return transport.NATSJetStreamCapabilities
}
