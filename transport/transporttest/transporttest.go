// Package transporttest provides helpers for testing sinks.
package transporttest

import (
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Config is a field-backed implementation of transport.Config.
type Config struct {
	PubSubSystem string
	Timeout      time.Duration

	KafkaBrokers         []string
	KafkaClientID        string
	KafkaRequiredAcks    string
	KafkaProducerRetries int
	KafkaCompression     string

	NATSURL    string
	NATSStream string

	RabbitMQURL      string
	HTTPPublisherURL string
	IOFile           string

	AWSRegion          string
	AWSAccountID       string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSEndpoint        string
}

func (c *Config) GetPubSubSystem() string          { return c.PubSubSystem }
func (c *Config) GetPublishTimeout() time.Duration { return c.Timeout }
func (c *Config) GetKafkaBrokers() []string        { return c.KafkaBrokers }
func (c *Config) GetKafkaClientID() string         { return c.KafkaClientID }
func (c *Config) GetKafkaRequiredAcks() string     { return c.KafkaRequiredAcks }
func (c *Config) GetKafkaProducerRetries() int     { return c.KafkaProducerRetries }
func (c *Config) GetKafkaCompression() string      { return c.KafkaCompression }
func (c *Config) GetNATSURL() string               { return c.NATSURL }
func (c *Config) GetNATSStream() string            { return c.NATSStream }
func (c *Config) GetRabbitMQURL() string           { return c.RabbitMQURL }
func (c *Config) GetHTTPPublisherURL() string      { return c.HTTPPublisherURL }
func (c *Config) GetIOFile() string                { return c.IOFile }
func (c *Config) GetAWSRegion() string             { return c.AWSRegion }
func (c *Config) GetAWSAccountID() string          { return c.AWSAccountID }
func (c *Config) GetAWSAccessKeyID() string        { return c.AWSAccessKeyID }
func (c *Config) GetAWSSecretAccessKey() string    { return c.AWSSecretAccessKey }
func (c *Config) GetAWSEndpoint() string           { return c.AWSEndpoint }

// Publisher records published messages and returns Err from every Publish.
type Publisher struct {
	mu       sync.Mutex
	Err      error
	Messages []*message.Message
	Topics   []string
	Closed   bool

	// Block, when set, holds every Publish until it is closed.
	Block chan struct{}
	calls int
}

func (p *Publisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.Lock()
	p.calls++
	block := p.Block
	p.mu.Unlock()
	if block != nil {
		<-block
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	for _, msg := range messages {
		p.Messages = append(p.Messages, msg)
		p.Topics = append(p.Topics, topic)
	}
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}

// Published returns a copy of the recorded messages.
func (p *Publisher) Published() []*message.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*message.Message, len(p.Messages))
	copy(out, p.Messages)
	return out
}

// Calls returns how many times Publish was invoked.
func (p *Publisher) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// IsClosed reports whether Close was called.
func (p *Publisher) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Closed
}
