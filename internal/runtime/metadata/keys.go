package metadata

// Metadata keys attached to every admitted bid request.
// These keys are reserved and should not be used for custom metadata.
const (
	// KeyCorrelationID ties the published message to the HTTP request that produced it.
	KeyCorrelationID = "correlation_id"

	// KeyBidID carries the bid request id.
	KeyBidID = "bid_id"

	// KeyContentType describes the payload encoding.
	KeyContentType = "content_type"

	// KeyReceivedAt records when the gateway received the request (RFC 3339, UTC).
	KeyReceivedAt = "received_at"

	// KeyPartition is the partition key used by sinks that support keyed routing.
	KeyPartition = "partition_key"

	// KeyInventory records whether the request came from a site or an app.
	KeyInventory = "inventory"

	// KeyRemoteAddr stores the client address seen by the HTTP layer.
	KeyRemoteAddr = "remote_addr"

	// KeyTraceParent carries the W3C trace context of the admission span.
	KeyTraceParent = "traceparent"
)
