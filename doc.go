// Package bidgate is an admission gateway for advertising bid requests. It
// accepts bid requests over HTTP, decides per request whether to forward it
// and hands accepted requests to a message broker through Watermill.
//
// Every request runs through the same pipeline, strictly in order:
//
//   - decode: the body must be a single JSON object of the bid request shape
//   - validate: an id, a device and a site or an app must be present
//   - filter: requests that opted out of ad tracking or come from a blocked
//     private network are dropped
//   - publish: the request is serialised and handed to the sink with a bounded
//     wait and a bounded number of publishes in flight
//
// Each admission ends in exactly one Outcome, which the HTTP layer maps to a
// status code: 200 published, 204 dropped, 400 bad request, 500 serialization
// error and 503 broker unavailable (with Retry-After).
//
// # Sinks
//
// The sink is selected with Config.PubSubSystem:
//   - kafka: Kafka through watermill-kafka and sarama (default)
//   - kafkago: Kafka through segmentio/kafka-go
//   - channel: in-memory Go channels for local runs and tests
//   - nats, nats-jetstream: core NATS and JetStream with server acks
//   - rabbitmq: AMQP durable queues with publisher confirms
//   - aws, aws-sqs: SNS topics or SQS queues, LocalStack friendly
//   - http: POST to a collector endpoint
//   - io: append-only JSON lines file
//
// # Configuration
//
// LoadConfig reads defaults, an optional YAML file named by
// BIDGATE_CONFIG_FILE, KAFKA_BOOTSTRAP_SERVERS and BIDGATE_* environment
// variables, in that order. cmd/bidgate wires everything together.
//
// # Observability
//
// GET /metrics exposes requests_total, requests_accepted_total,
// requests_rejected_total and request_duration_seconds on a registry owned by
// the gateway. GET /health is a liveness probe. With tracing enabled every
// admission is recorded as a bidgate.admit span.
package bidgate
