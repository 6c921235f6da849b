package admission

import (
	"github.com/drblury/bidgate/internal/runtime/bid"
	"github.com/drblury/bidgate/internal/runtime/errors"
)

// Validator checks the structural preconditions of a request.
type Validator interface {
	Validate(req *bid.BidRequest) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(req *bid.BidRequest) error

// Validate calls f(req).
func (f ValidatorFunc) Validate(req *bid.BidRequest) error { return f(req) }

// StructuralValidator requires an id, a device and a site or an app, checked
// in that order.
type StructuralValidator struct{}

// Validate returns the first missing field as a sentinel wrapping
// errors.ErrBadRequest. It reads req only.
func (StructuralValidator) Validate(req *bid.BidRequest) error {
	switch {
	case req == nil || req.ID == "":
		return errors.ErrMissingID
	case req.Device == nil:
		return errors.ErrMissingDevice
	case !req.HasInventory():
		return errors.ErrMissingInventory
	}
	return nil
}
