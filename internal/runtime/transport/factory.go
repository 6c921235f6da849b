// Package transport selects and builds the sink the gateway publishes to.
package transport

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/bidgate/internal/runtime/config"
	"github.com/drblury/bidgate/internal/runtime/errors"
	sinks "github.com/drblury/bidgate/transport"

	// Register every built-in sink.
	_ "github.com/drblury/bidgate/transport/transports"
)

// Sink is a built publisher together with what it guarantees.
type Sink struct {
	Name         string
	Publisher    message.Publisher
	Capabilities sinks.Capabilities
}

// Factory abstracts how the gateway initialises its sink.
type Factory interface {
	Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Sink, error)
}

// DefaultFactory returns the factory backed by the sink registry.
func DefaultFactory() Factory {
	return registryFactory{registry: sinks.DefaultRegistry}
}

// NewFactory returns a factory backed by registry.
func NewFactory(registry *sinks.Registry) Factory {
	return registryFactory{registry: registry}
}

type registryFactory struct {
	registry *sinks.Registry
}

func (f registryFactory) Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Sink, error) {
	if conf == nil {
		return Sink{}, errors.ErrConfigRequired
	}
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	t, err := f.registry.Build(ctx, conf, logger)
	if err != nil {
		return Sink{}, err
	}

	sink := Sink{
		Name:         conf.GetPubSubSystem(),
		Publisher:    t.Publisher,
		Capabilities: f.registry.GetCapabilities(conf.GetPubSubSystem()),
	}
	for _, warning := range CheckCapabilities(sink.Capabilities, conf) {
		logger.Info("sink capability warning", watermill.LogFields{"sink": sink.Name, "warning": warning})
	}
	return sink, nil
}

// CheckCapabilities lists the ways a sink falls short of what the gateway
// expects from its downstream: a local acknowledgement per publish, durable
// storage, keyed partitioning and room for a full request body.
func CheckCapabilities(caps sinks.Capabilities, conf *config.Config) []string {
	var warnings []string
	if caps.FireAndForget() {
		warnings = append(warnings, "sink does not confirm delivery; a published outcome only means the message left the process")
	}
	if !caps.Durable {
		warnings = append(warnings, "sink is not durable; messages are lost on restart")
	}
	if !caps.SupportsPartitioning {
		warnings = append(warnings, "sink ignores the partition key")
	}
	if conf != nil && !caps.Fits(conf.HTTPMaxBodyBytes) {
		warnings = append(warnings, fmt.Sprintf("sink accepts messages up to %d bytes but the body limit is %d", caps.MaxMessageSize, conf.HTTPMaxBodyBytes))
	}
	return warnings
}
