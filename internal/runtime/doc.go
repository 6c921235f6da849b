/*
Package runtime hosts the bid gateway: the gin HTTP surface, the sink built
from configuration, the publish adapter, the admission pipeline and the
metrics and tracing around it.

# Package Structure

## Gateway (gateway.go)

Gateway wires the pieces together and owns their lifecycle. NewGateway fails
fast when the configuration is invalid or the sink cannot be built, which is
the only way the process is allowed to abort.

## HTTP (http.go, middleware.go)

Routes POST /bid-request, GET /health and GET /metrics. Requests get a ULID
request id and a body size limit. Admissions run detached from client
cancellation so every request reaches a recorded outcome.

## Tracing (tracing.go)

Installs the OpenTelemetry provider and propagator when tracing is enabled.

# Sub-packages

  - admission/: Validator, Filter, Pipeline, outcomes and hooks
  - bid/: bid request model and decoder
  - config/: configuration loading and validation
  - errors/: sentinel errors
  - ids/: ULID generation for message and request ids
  - jsoncodec/: JSON encoding backed by sonic
  - logging/: logger interface and adapters
  - metadata/: message header helpers
  - metrics/: Prometheus collectors
  - publish/: bounded handoff to the sink
  - transport/: sink selection on top of the sink registry
*/
package runtime
