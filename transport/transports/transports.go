// Package transports imports all built-in sinks for auto-registration.
// Import this package to have every sink registered with the default registry.
package transports

import (
	// Import all sinks for side-effect registration
	_ "github.com/drblury/bidgate/transport/aws"
	_ "github.com/drblury/bidgate/transport/channel"
	_ "github.com/drblury/bidgate/transport/http"
	_ "github.com/drblury/bidgate/transport/io"
	_ "github.com/drblury/bidgate/transport/jetstream"
	_ "github.com/drblury/bidgate/transport/kafka"
	_ "github.com/drblury/bidgate/transport/kafkago"
	_ "github.com/drblury/bidgate/transport/nats"
	_ "github.com/drblury/bidgate/transport/rabbitmq"
)
