// Package channel provides an in-memory Go channel sink for bidgate.
// Messages only reach subscribers attached to the same process, so this sink
// is meant for local development and tests.
package channel

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/drblury/bidgate/transport"
)

// TransportName is the name used to register this sink.
const TransportName = "channel"

// OutputBuffer is the per-subscriber buffer of the in-memory pub/sub.
const OutputBuffer = 1024

// Factory allows overriding the channel creation for testing.
var Factory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) message.Publisher {
	return gochannel.NewGoChannel(cfg, logger)
}

// Register adds the channel sink to the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.ChannelCapabilities)
}

func init() {
	Register()
}

// Build creates a new Go channel sink.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	pub := Factory(gochannel.Config{OutputChannelBuffer: OutputBuffer}, logger)
	return transport.Transport{Publisher: pub}, nil
}

// Capabilities returns the capabilities of this sink.
func Capabilities() transport.Capabilities {
	return transport.ChannelCapabilities
}
