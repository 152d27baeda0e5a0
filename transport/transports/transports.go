// Package transports imports all built-in transports for auto-registration.
// Import this package to have all transports registered with the default registry.
package transports

import (
	// Import all transports for side-effect registration
	_ "github.com/streamgate/streamgate/transport/aws"
	_ "github.com/streamgate/streamgate/transport/channel"
	_ "github.com/streamgate/streamgate/transport/http"
	_ "github.com/streamgate/streamgate/transport/io"
	_ "github.com/streamgate/streamgate/transport/jetstream"
	_ "github.com/streamgate/streamgate/transport/kafka"
	_ "github.com/streamgate/streamgate/transport/nats"
	_ "github.com/streamgate/streamgate/transport/rabbitmq"
)
