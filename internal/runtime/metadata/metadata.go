package metadata

import (
	"maps"
	"slices"
)

// Metadata holds the headers published next to a bid request. Every method
// that adds entries returns a copy, so a map shared between the HTTP layer
// and the publisher is never mutated in place.
//
// Metadata satisfies propagation.TextMapCarrier once cloned, which lets the
// admission span be injected straight into the outgoing headers.
type Metadata map[string]string

// New builds Metadata from alternating key/value pairs. A trailing key
// without a value is ignored.
func New(pairs ...string) Metadata {
	md := make(Metadata, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		md[pairs[i]] = pairs[i+1]
	}
	return md
}

// Clone returns a copy that is never nil.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return Metadata{}
	}
	return maps.Clone(m)
}

// With returns a copy carrying key=value.
func (m Metadata) With(key, value string) Metadata {
	out := m.Clone()
	out[key] = value
	return out
}

// WithAll returns a copy with entries layered on top.
func (m Metadata) WithAll(entries Metadata) Metadata {
	out := m.Clone()
	maps.Copy(out, entries)
	return out
}

// WithDefault returns a copy where key is set to value unless it already
// holds a non-empty value.
func (m Metadata) WithDefault(key, value string) Metadata {
	if m.Get(key) != "" {
		return m.Clone()
	}
	return m.With(key, value)
}

// Get returns the value for key, or "" when absent.
func (m Metadata) Get(key string) string {
	return m[key]
}

// Set stores value under key. Unlike With it mutates the receiver.
func (m Metadata) Set(key, value string) {
	m[key] = value
}

// Keys returns the keys in sorted order.
func (m Metadata) Keys() []string {
	return slices.Sorted(maps.Keys(m))
}
