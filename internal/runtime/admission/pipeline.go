// Package admission decides what happens to one bid request: decode,
// validate, filter and publish, strictly in that order, ending in exactly
// one Outcome.
package admission

import (
	"context"
	sterrors "errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/bidgate/internal/runtime/bid"
	"github.com/drblury/bidgate/internal/runtime/errors"
	"github.com/drblury/bidgate/internal/runtime/metadata"
)

const (
	// SpanName is the name of the span opened for every admission.
	SpanName = "bidgate.admit"

	tracerName = "github.com/drblury/bidgate/internal/runtime/admission"
)

// Reasons recorded for outcomes that do not carry a validation error or a
// rule name.
const (
	ReasonMalformedPayload = "malformed_payload"
	ReasonSerialization    = "serialization_error"
	ReasonSendBufferFull   = "send_buffer_full"
	ReasonPublishTimeout   = "publish_timeout"
	ReasonPublisherClosed  = "publisher_closed"
	ReasonBrokerError      = "broker_error"
	ReasonPanic            = "panic"
)

// Publisher hands an accepted request to the downstream topic.
type Publisher interface {
	Publish(ctx context.Context, req *bid.BidRequest, md metadata.Metadata) error
}

// Pipeline runs admissions. It holds no per-request state and is safe for
// concurrent use.
type Pipeline struct {
	validator Validator
	filter    *Filter
	publisher Publisher
	hooks     Hooks
	tracer    trace.Tracer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithValidator replaces the StructuralValidator.
func WithValidator(v Validator) Option {
	return func(p *Pipeline) {
		if v != nil {
			p.validator = v
		}
	}
}

// WithFilter replaces the default filter.
func WithFilter(f *Filter) Option {
	return func(p *Pipeline) {
		if f != nil {
			p.filter = f
		}
	}
}

// WithHooks merges hooks after any already registered.
func WithHooks(h Hooks) Option {
	return func(p *Pipeline) {
		p.hooks = p.hooks.Merge(h)
	}
}

// WithTracerProvider sets the provider spans are created from. The global
// provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(p *Pipeline) {
		if tp != nil {
			p.tracer = tp.Tracer(tracerName)
		}
	}
}

// NewPipeline returns a pipeline publishing through pub.
func NewPipeline(pub Publisher, opts ...Option) (*Pipeline, error) {
	if pub == nil {
		return nil, errors.ErrPublisherRequired
	}
	p := &Pipeline{
		validator: StructuralValidator{},
		filter:    DefaultFilter(),
		publisher: pub,
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Filter returns the filter in use.
func (p *Pipeline) Filter() *Filter { return p.filter }

type execution struct {
	hookCtx Context
	stage   State
}

// AdmitPayload decodes body and admits the result. A payload that cannot be
// decoded ends as OutcomeBadRequest wrapping errors.ErrMalformedPayload.
func (p *Pipeline) AdmitPayload(ctx context.Context, body []byte, md metadata.Metadata) Result {
	return p.execute(ctx, md, "", func(ctx context.Context, ex *execution) Result {
		req, err := bid.Decode(body)
		if err != nil {
			return Result{Outcome: OutcomeBadRequest, Stage: ex.stage, Reason: ReasonMalformedPayload, Err: err}
		}
		ex.hookCtx.BidID = req.ID
		return p.admit(ctx, ex, req, md)
	})
}

// RejectPayload records a body that could not be read, for example because
// it exceeded the size limit, as a malformed admission.
func (p *Pipeline) RejectPayload(ctx context.Context, md metadata.Metadata, cause error) Result {
	return p.execute(ctx, md, "", func(_ context.Context, ex *execution) Result {
		return Result{
			Outcome: OutcomeBadRequest,
			Stage:   ex.stage,
			Reason:  ReasonMalformedPayload,
			Err:     fmt.Errorf("%w: %v", errors.ErrMalformedPayload, cause),
		}
	})
}

// Admit runs Validator, Filter and Publisher on an already decoded request.
func (p *Pipeline) Admit(ctx context.Context, req *bid.BidRequest, md metadata.Metadata) Result {
	var id string
	if req != nil {
		id = req.ID
	}
	return p.execute(ctx, md, id, func(ctx context.Context, ex *execution) Result {
		return p.admit(ctx, ex, req, md)
	})
}

func (p *Pipeline) execute(ctx context.Context, md metadata.Metadata, bidID string, run func(context.Context, *execution) Result) (res Result) {
	ctx, span := p.tracer.Start(ctx, SpanName)
	ex := &execution{
		hookCtx: Context{BidID: bidID, Metadata: md, StartedAt: time.Now()},
		stage:   StateReceived,
	}

	defer func() {
		if r := recover(); r != nil {
			res = Result{
				Outcome: OutcomeInternalError,
				Stage:   ex.stage,
				Reason:  ReasonPanic,
				Err:     fmt.Errorf("admission panicked: %v", r),
			}
		}
		ex.hookCtx.Duration = time.Since(ex.hookCtx.StartedAt)
		p.finishSpan(span, ex.hookCtx.BidID, res)
		if p.hooks.OnDone != nil {
			p.hooks.OnDone(ex.hookCtx, res)
		}
	}()

	if p.hooks.OnStart != nil {
		p.hooks.OnStart(ex.hookCtx)
	}
	return run(ctx, ex)
}

func (p *Pipeline) admit(ctx context.Context, ex *execution, req *bid.BidRequest, md metadata.Metadata) Result {
	ex.stage = StateDecoded
	if err := p.validator.Validate(req); err != nil {
		return Result{Outcome: OutcomeBadRequest, Stage: ex.stage, Reason: err.Error(), Err: err}
	}

	ex.stage = StateValidated
	if verdict := p.filter.Evaluate(req); verdict.Drop {
		return Result{Outcome: OutcomeDropped, Stage: ex.stage, Reason: verdict.Rule}
	}

	ex.stage = StateFiltered
	if err := p.publisher.Publish(ctx, req, withTraceContext(ctx, md)); err != nil {
		if sterrors.Is(err, errors.ErrSerialization) {
			return Result{Outcome: OutcomeSerializationError, Stage: ex.stage, Reason: ReasonSerialization, Err: err}
		}
		return Result{Outcome: OutcomeBrokerUnavailable, Stage: ex.stage, Reason: publishReason(err), Err: err}
	}

	ex.stage = StatePublished
	return Result{Outcome: OutcomePublished, Stage: ex.stage}
}

// publishReason classifies a publish failure. Anything that is not a
// serialization failure is treated as the broker being unavailable.
func publishReason(err error) string {
	switch {
	case sterrors.Is(err, errors.ErrSendBufferFull):
		return ReasonSendBufferFull
	case sterrors.Is(err, errors.ErrPublishTimeout):
		return ReasonPublishTimeout
	case sterrors.Is(err, errors.ErrPublisherClosed):
		return ReasonPublisherClosed
	default:
		return ReasonBrokerError
	}
}

func withTraceContext(ctx context.Context, md metadata.Metadata) metadata.Metadata {
	if !trace.SpanContextFromContext(ctx).IsValid() {
		return md
	}
	out := md.Clone()
	otel.GetTextMapPropagator().Inject(ctx, out)
	return out
}

func (p *Pipeline) finishSpan(span trace.Span, bidID string, res Result) {
	span.SetAttributes(
		attribute.String("bid.id", bidID),
		attribute.String("admission.outcome", res.Outcome.String()),
		attribute.String("admission.stage", res.Stage.String()),
		attribute.String("admission.reason", res.Reason),
	)
	switch res.Outcome {
	case OutcomeBrokerUnavailable, OutcomeSerializationError, OutcomeInternalError:
		if res.Err != nil {
			span.RecordError(res.Err)
		}
		span.SetStatus(codes.Error, res.Outcome.String())
	}
	span.End()
}
