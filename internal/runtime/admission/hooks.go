package admission

import "github.com/drblury/bidgate/internal/runtime/logging"

// Hooks are callbacks around one admission. Nil hooks are skipped.
type Hooks struct {
	// OnStart runs before the first stage.
	OnStart func(ctx Context)

	// OnDone runs exactly once when the admission ends, including after a
	// recovered panic.
	OnDone func(ctx Context, res Result)
}

// Merge returns hooks that call h first and then other.
func (h Hooks) Merge(other Hooks) Hooks {
	return Hooks{
		OnStart: chainStartHooks(h.OnStart, other.OnStart),
		OnDone:  chainDoneHooks(h.OnDone, other.OnDone),
	}
}

func chainStartHooks(a, b func(Context)) func(Context) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx Context) {
		a(ctx)
		b(ctx)
	}
}

func chainDoneHooks(a, b func(Context, Result)) func(Context, Result) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx Context, res Result) {
		a(ctx, res)
		b(ctx, res)
	}
}

// LoggingHooks logs every finished admission. Failures the operator must act
// on are logged at error level, everything else at debug.
func LoggingHooks(logger logging.ServiceLogger) Hooks {
	return Hooks{
		OnDone: func(ctx Context, res Result) {
			fields := logging.LogFields{
				"bid_id":      ctx.BidID,
				"outcome":     res.Outcome.String(),
				"stage":       res.Stage.String(),
				"duration_ms": ctx.Duration.Milliseconds(),
			}
			if res.Reason != "" {
				fields["reason"] = res.Reason
			}
			switch res.Outcome {
			case OutcomeBrokerUnavailable, OutcomeSerializationError, OutcomeInternalError:
				logger.Error("admission failed", res.Err, fields)
			default:
				logger.Debug("admission finished", fields)
			}
		},
	}
}
