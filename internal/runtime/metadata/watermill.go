package metadata

import (
	"maps"

	"github.com/ThreeDotsLabs/watermill/message"
)

// ToWatermill copies the headers into a watermill message metadata map.
func ToWatermill(md Metadata) message.Metadata {
	out := make(message.Metadata, len(md))
	maps.Copy(out, md)
	return out
}

// FromMessage reads the headers back from a published message.
func FromMessage(msg *message.Message) Metadata {
	if msg == nil {
		return Metadata{}
	}
	out := make(Metadata, len(msg.Metadata))
	maps.Copy(out, msg.Metadata)
	return out
}
