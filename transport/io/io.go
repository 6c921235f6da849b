// Package io provides an append-only file sink for bidgate. Each message is
// written as one JSON line, which makes the sink handy for replay fixtures
// and local debugging.
package io

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/bidgate/internal/runtime/jsoncodec"
	"github.com/drblury/bidgate/internal/runtime/metadata"
	"github.com/drblury/bidgate/transport"
)

// TransportName is the name used to register this sink.
const TransportName = "io"

// DefaultFilePath is the default file path if none is specified.
const DefaultFilePath = "bids.jsonl"

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(filePath string, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return NewPublisher(filePath, logger)
}

// Register registers the I/O sink with the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.IOCapabilities)
}

func init() {
	Register()
}

// Build creates a new file sink.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	filePath := cfg.GetIOFile()
	if filePath == "" {
		filePath = DefaultFilePath
	}

	pub, err := PublisherFactory(filePath, logger)
	if err != nil {
		return transport.Transport{}, err
	}

	return transport.Transport{Publisher: pub}, nil
}

// Capabilities returns the capabilities of this sink.
func Capabilities() transport.Capabilities {
	return transport.IOCapabilities
}

// Record is the JSON line written for every message.
type Record struct {
	UUID     string            `json:"uuid"`
	Topic    string            `json:"topic"`
	Metadata metadata.Metadata `json:"metadata"`
	Payload  []byte            `json:"payload"`
}

// Publisher appends messages to a file.
type Publisher struct {
	filePath string
	logger   watermill.LoggerAdapter

	mu     sync.Mutex
	file   *os.File
	closed bool
}

// NewPublisher opens (or creates) filePath for appending.
func NewPublisher(filePath string, logger watermill.LoggerAdapter) (*Publisher, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filePath, err)
	}
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	logger.Info("File sink opened", watermill.LogFields{"path": filePath})
	return &Publisher{filePath: filePath, logger: logger, file: f}, nil
}

// Publish writes messages to the file and syncs it before returning.
func (p *Publisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("publisher is closed")
	}

	for _, msg := range messages {
		rec := Record{
			UUID:     msg.UUID,
			Topic:    topic,
			Metadata: metadata.FromMessage(msg),
			Payload:  msg.Payload,
		}
		if err := jsoncodec.Encode(p.file, rec); err != nil {
			return err
		}
	}
	return p.file.Sync()
}

// Close closes the underlying file.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.file.Close()
}
