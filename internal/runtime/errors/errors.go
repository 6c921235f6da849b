// Package errors holds the sentinel errors shared across bidgate.
package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	// ErrMalformedPayload reports a body that is not a JSON object of the bid request shape.
	ErrMalformedPayload = sterrors.New("bidgate: malformed payload")

	// ErrBadRequest is the parent of every validation failure.
	ErrBadRequest = sterrors.New("bidgate: bad request")

	ErrMissingID        = fmt.Errorf("%w: missing id", ErrBadRequest)
	ErrMissingDevice    = fmt.Errorf("%w: missing device", ErrBadRequest)
	ErrMissingInventory = fmt.Errorf("%w: missing site or app", ErrBadRequest)

	// ErrSerialization reports an accepted request that could not be re-encoded.
	ErrSerialization = sterrors.New("bidgate: serialization error")

	// ErrBrokerUnavailable is the parent of every transient publish failure.
	ErrBrokerUnavailable = sterrors.New("bidgate: broker unavailable")

	ErrSendBufferFull  = fmt.Errorf("%w: send buffer full", ErrBrokerUnavailable)
	ErrPublishTimeout  = fmt.Errorf("%w: publish timed out", ErrBrokerUnavailable)
	ErrPublisherClosed = fmt.Errorf("%w: publisher closed", ErrBrokerUnavailable)

	ErrPublisherRequired = sterrors.New("bidgate: publisher is required")
	ErrConfigRequired    = sterrors.New("bidgate: configuration is required")
	ErrLoggerRequired    = sterrors.New("bidgate: logger is required")
)

// ConfigValidationError wraps the joined validation failures of a Config.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return "bidgate: invalid configuration: " + e.Err.Error()
}

func (e ConfigValidationError) Unwrap() error {
	return e.Err
}

// NewConfigValidationError wraps err, returning nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}
