package admission

import (
	"time"

	"github.com/drblury/bidgate/internal/runtime/metadata"
)

// Outcome is the terminal classification of one admission.
type Outcome int

const (
	OutcomePublished Outcome = iota
	OutcomeBadRequest
	OutcomeDropped
	OutcomeSerializationError
	OutcomeBrokerUnavailable
	// OutcomeInternalError reports a panic recovered inside a stage.
	OutcomeInternalError
)

var outcomeNames = [...]string{
	OutcomePublished:          "published",
	OutcomeBadRequest:         "bad_request",
	OutcomeDropped:            "dropped",
	OutcomeSerializationError: "serialization_error",
	OutcomeBrokerUnavailable:  "broker_unavailable",
	OutcomeInternalError:      "internal_error",
}

// Outcomes lists every outcome in declaration order.
func Outcomes() []Outcome {
	return []Outcome{
		OutcomePublished,
		OutcomeBadRequest,
		OutcomeDropped,
		OutcomeSerializationError,
		OutcomeBrokerUnavailable,
		OutcomeInternalError,
	}
}

// String returns the stable label used in metrics and logs.
func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeNames) {
		return "unknown"
	}
	return outcomeNames[o]
}

// Retryable reports whether the caller may retry the same request later.
func (o Outcome) Retryable() bool {
	return o == OutcomeBrokerUnavailable
}

// State is the last stage an admission reached.
type State int

const (
	StateReceived State = iota
	StateDecoded
	StateValidated
	StateFiltered
	StatePublished
)

var stateNames = [...]string{
	StateReceived:  "received",
	StateDecoded:   "decoded",
	StateValidated: "validated",
	StateFiltered:  "filtered",
	StatePublished: "published",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Result describes how an admission ended. Reason holds the validation
// error text, the drop rule name, or the publish failure.
type Result struct {
	Outcome Outcome
	Stage   State
	Reason  string
	Err     error
}

// Context is passed to hooks.
type Context struct {
	BidID     string
	Metadata  metadata.Metadata
	StartedAt time.Time
	// Duration is only set for OnDone.
	Duration time.Duration
}
