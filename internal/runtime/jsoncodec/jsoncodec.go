// Package jsoncodec is the JSON encoding layer used for bid request payloads
// and file output. It is backed by sonic in standard-library compatible mode.
package jsoncodec

import (
	"io"

	"github.com/bytedance/sonic"
)

// ContentType is the MIME type of payloads produced by Default.
const ContentType = "application/json"

var defaultConfig = sonic.ConfigStd

// Codec turns values into wire payloads and back.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	ContentType() string
}

// Default is the sonic-backed JSON codec.
var Default Codec = sonicCodec{api: defaultConfig}

type sonicCodec struct {
	api sonic.API
}

func (c sonicCodec) Marshal(v any) ([]byte, error)      { return c.api.Marshal(v) }
func (c sonicCodec) Unmarshal(data []byte, v any) error { return c.api.Unmarshal(data, v) }
func (c sonicCodec) ContentType() string                { return ContentType }

func Marshal(v any) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return defaultConfig.MarshalIndent(v, prefix, indent)
}

func Unmarshal(data []byte, v any) error {
	return defaultConfig.Unmarshal(data, v)
}

// Valid reports whether data is a single well-formed JSON value.
func Valid(data []byte) bool {
	return defaultConfig.Valid(data)
}

func Encode(w io.Writer, v any) error {
	enc := defaultConfig.NewEncoder(w)
	return enc.Encode(v)
}

func Decode(r io.Reader, v any) error {
	dec := defaultConfig.NewDecoder(r)
	return dec.Decode(v)
}
