// Package http provides an HTTP webhook sink for bidgate.
package http

import (
	"context"
	"fmt"
	nethttp "net/http"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/bidgate/transport"
)

// TransportName is the name used to register this sink.
const TransportName = "http"

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(config http.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return http.NewPublisher(config, logger)
}

// Register adds the HTTP sink to the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.HTTPCapabilities)
}

func init() {
	Register()
}

// Build creates a publisher that POSTs every message to <url>/<topic>.
// Responses with a status of 400 or above fail the publish.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	base := strings.TrimSuffix(cfg.GetHTTPPublisherURL(), "/")
	if base == "" {
		return transport.Transport{}, fmt.Errorf("http: publisher url is required")
	}

	client := &nethttp.Client{Timeout: cfg.GetPublishTimeout()}

	publisher, err := PublisherFactory(
		http.PublisherConfig{
			MarshalMessageFunc: func(topic string, msg *message.Message) (*nethttp.Request, error) {
				return http.DefaultMarshalMessageFunc(base+"/"+topic, msg)
			},
			Client: client,
		},
		logger,
	)
	if err != nil {
		return transport.Transport{}, err
	}

	return transport.Transport{Publisher: publisher}, nil
}

// Capabilities returns the capabilities of this sink.
func Capabilities() transport.Capabilities {
	return transport.HTTPCapabilities
}
