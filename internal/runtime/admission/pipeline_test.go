package admission

import (
	"bytes"
	"context"
	sterrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/drblury/bidgate/internal/runtime/bid"
	"github.com/drblury/bidgate/internal/runtime/errors"
	"github.com/drblury/bidgate/internal/runtime/logging"
	"github.com/drblury/bidgate/internal/runtime/metadata"
	"github.com/drblury/bidgate/internal/runtime/publish"
	"github.com/drblury/bidgate/transport/transporttest"
)

type fakePublisher struct {
	err   error
	calls int
	md    metadata.Metadata
	req   *bid.BidRequest
	fn    func()
}

func (f *fakePublisher) Publish(_ context.Context, req *bid.BidRequest, md metadata.Metadata) error {
	f.calls++
	f.req = req
	f.md = md
	if f.fn != nil {
		f.fn()
	}
	return f.err
}

func newPipeline(t *testing.T, pub Publisher, opts ...Option) *Pipeline {
	t.Helper()
	p, err := NewPipeline(pub, opts...)
	require.NoError(t, err)
	return p
}

func TestNewPipelineRequiresPublisher(t *testing.T) {
	_, err := NewPipeline(nil)
	assert.ErrorIs(t, err, errors.ErrPublisherRequired)
}

func TestAdmitPayload_Scenarios(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		outcome   Outcome
		stage     State
		reason    string
		published bool
	}{
		{
			name:      "published",
			body:      `{"id":"r1","site":{"domain":"example.com"},"device":{"lmt":0,"ip":"8.8.8.8"}}`,
			outcome:   OutcomePublished,
			stage:     StatePublished,
			published: true,
		},
		{
			name:    "empty id",
			body:    `{"id":"","site":{"domain":"example.com"},"device":{"lmt":0}}`,
			outcome: OutcomeBadRequest,
			stage:   StateDecoded,
			reason:  errors.ErrMissingID.Error(),
		},
		{
			name:    "limit ad tracking",
			body:    `{"id":"r2","site":{"domain":"example.com"},"device":{"lmt":1}}`,
			outcome: OutcomeDropped,
			stage:   StateValidated,
			reason:  RuleLimitAdTracking,
		},
		{
			name:    "private network",
			body:    `{"id":"r3","app":{"bundle":"b"},"device":{"ip":"10.10.3.4"}}`,
			outcome: OutcomeDropped,
			stage:   StateValidated,
			reason:  RulePrivateNetwork,
		},
		{
			name:    "malformed",
			body:    `{"id":`,
			outcome: OutcomeBadRequest,
			stage:   StateReceived,
			reason:  ReasonMalformedPayload,
		},
		{
			name:    "missing inventory",
			body:    `{"id":"r4","device":{}}`,
			outcome: OutcomeBadRequest,
			stage:   StateDecoded,
			reason:  errors.ErrMissingInventory.Error(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &fakePublisher{}
			p := newPipeline(t, pub)

			res := p.AdmitPayload(context.Background(), []byte(tt.body), nil)

			assert.Equal(t, tt.outcome, res.Outcome)
			assert.Equal(t, tt.stage, res.Stage)
			assert.Equal(t, tt.reason, res.Reason)
			if tt.published {
				assert.Equal(t, 1, pub.calls)
			} else {
				assert.Zero(t, pub.calls, "nothing reaches the publisher")
			}
		})
	}
}

func TestAdmitPayload_MalformedWrapsSentinel(t *testing.T) {
	p := newPipeline(t, &fakePublisher{})
	res := p.AdmitPayload(context.Background(), []byte(`[]`), nil)
	assert.ErrorIs(t, res.Err, errors.ErrMalformedPayload)
	assert.False(t, res.Outcome.Retryable())
}

func TestAdmit_PublishFailures(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		outcome Outcome
		reason  string
	}{
		{"buffer full", errors.ErrSendBufferFull, OutcomeBrokerUnavailable, ReasonSendBufferFull},
		{"timeout", errors.ErrPublishTimeout, OutcomeBrokerUnavailable, ReasonPublishTimeout},
		{"closed", errors.ErrPublisherClosed, OutcomeBrokerUnavailable, ReasonPublisherClosed},
		{"wrapped broker error", fmt.Errorf("%w: leader not available", errors.ErrBrokerUnavailable), OutcomeBrokerUnavailable, ReasonBrokerError},
		{"unclassified error", sterrors.New("connection reset"), OutcomeBrokerUnavailable, ReasonBrokerError},
		{"serialization", fmt.Errorf("%w: bad float", errors.ErrSerialization), OutcomeSerializationError, ReasonSerialization},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &fakePublisher{err: tt.err}
			p := newPipeline(t, pub)

			res := p.Admit(context.Background(), requestWith(0, nil), nil)

			assert.Equal(t, tt.outcome, res.Outcome)
			assert.Equal(t, StateFiltered, res.Stage)
			assert.Equal(t, tt.reason, res.Reason)
			assert.ErrorIs(t, res.Err, tt.err)
			assert.Equal(t, 1, pub.calls)
		})
	}
}

func TestAdmit_NilRequest(t *testing.T) {
	pub := &fakePublisher{}
	res := newPipeline(t, pub).Admit(context.Background(), nil, nil)
	assert.Equal(t, OutcomeBadRequest, res.Outcome)
	assert.ErrorIs(t, res.Err, errors.ErrMissingID)
	assert.Zero(t, pub.calls)
}

func TestAdmit_CustomValidatorAndFilter(t *testing.T) {
	pub := &fakePublisher{}
	rejectAll := ValidatorFunc(func(*bid.BidRequest) error { return errors.ErrMissingDevice })
	p := newPipeline(t, pub, WithValidator(rejectAll))
	assert.Equal(t, OutcomeBadRequest, p.Admit(context.Background(), requestWith(0, nil), nil).Outcome)

	p = newPipeline(t, pub, WithFilter(NewFilter()))
	res := p.Admit(context.Background(), requestWith(1, bid.String("10.10.0.1")), nil)
	assert.Equal(t, OutcomePublished, res.Outcome)
	assert.Empty(t, p.Filter().Rules())
}

func TestAdmit_RecoversPanics(t *testing.T) {
	pub := &fakePublisher{fn: func() { panic("sink exploded") }}
	var done []Result
	p := newPipeline(t, pub, WithHooks(Hooks{OnDone: func(_ Context, res Result) { done = append(done, res) }}))

	res := p.Admit(context.Background(), requestWith(0, nil), nil)

	assert.Equal(t, OutcomeInternalError, res.Outcome)
	assert.Equal(t, StateFiltered, res.Stage)
	assert.Equal(t, ReasonPanic, res.Reason)
	assert.Contains(t, res.Err.Error(), "sink exploded")
	require.Len(t, done, 1, "OnDone runs once after a panic")
	assert.Equal(t, OutcomeInternalError, done[0].Outcome)
}

func TestAdmit_HooksFireOncePerExecution(t *testing.T) {
	var starts, dones int
	var last Context
	hooks := Hooks{
		OnStart: func(Context) { starts++ },
		OnDone: func(ctx Context, _ Result) {
			dones++
			last = ctx
		},
	}
	md := metadata.New(metadata.KeyCorrelationID, "c-1")
	p := newPipeline(t, &fakePublisher{}, WithHooks(hooks))

	p.AdmitPayload(context.Background(), []byte(`{"id":"r9","app":{},"device":{}}`), md)
	p.AdmitPayload(context.Background(), []byte(`nope`), md)
	p.Admit(context.Background(), requestWith(1, nil), md)

	assert.Equal(t, 3, starts)
	assert.Equal(t, 3, dones)
	assert.Equal(t, "r1", last.BidID)
	assert.Equal(t, "c-1", last.Metadata.Get(metadata.KeyCorrelationID))
	assert.False(t, last.StartedAt.IsZero())
}

func TestAdmit_SpanAttributes(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	p := newPipeline(t, &fakePublisher{err: errors.ErrSendBufferFull}, WithTracerProvider(tp))
	p.Admit(context.Background(), requestWith(0, nil), nil)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, SpanName, span.Name())
	assert.Equal(t, codes.Error, span.Status().Code)

	attrs := map[attribute.Key]string{}
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value.AsString()
	}
	assert.Equal(t, "r1", attrs["bid.id"])
	assert.Equal(t, "broker_unavailable", attrs["admission.outcome"])
	assert.Equal(t, "filtered", attrs["admission.stage"])
	assert.Equal(t, ReasonSendBufferFull, attrs["admission.reason"])
}

func TestAdmit_InjectsTraceContext(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	original := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(original) })

	pub := &fakePublisher{}
	md := metadata.New("custom", "x")
	newPipeline(t, pub, WithTracerProvider(tp)).Admit(context.Background(), requestWith(0, nil), md)

	assert.NotEmpty(t, pub.md.Get(metadata.KeyTraceParent))
	assert.Equal(t, "x", pub.md.Get("custom"))
	assert.Empty(t, md.Get(metadata.KeyTraceParent), "caller metadata is not mutated")
}

func TestLoggingHooks(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "debug", Output: &buf})
	require.NoError(t, err)

	p := newPipeline(t, &fakePublisher{err: errors.ErrPublishTimeout}, WithHooks(LoggingHooks(logger)))
	p.Admit(context.Background(), requestWith(0, nil), nil)
	assert.Contains(t, buf.String(), "admission failed")
	assert.Contains(t, buf.String(), "publish_timeout")

	buf.Reset()
	p.Admit(context.Background(), requestWith(1, nil), nil)
	assert.Contains(t, buf.String(), "admission finished")
	assert.Contains(t, buf.String(), RuleLimitAdTracking)
}

func TestAdmit_ThroughPublishAdapter(t *testing.T) {
	sink := &transporttest.Publisher{}
	adapter, err := publish.NewAdapter(sink, publish.Config{Topic: "bids"}, logging.Nop())
	require.NoError(t, err)

	p := newPipeline(t, adapter)
	res := p.AdmitPayload(context.Background(), []byte(`{"id":"r1","site":{"domain":"example.com"},"device":{"lmt":0,"ip":"8.8.8.8"}}`), nil)

	require.Equal(t, OutcomePublished, res.Outcome)
	msgs := sink.Published()
	require.Len(t, msgs, 1)
	assert.Equal(t, "r1", msgs[0].Metadata.Get(metadata.KeyBidID))

	sink.Err = sterrors.New("down")
	res = p.Admit(context.Background(), requestWith(0, nil), nil)
	assert.Equal(t, OutcomeBrokerUnavailable, res.Outcome)
	assert.True(t, res.Outcome.Retryable())
}

func TestRejectPayload(t *testing.T) {
	var dones int
	pub := &fakePublisher{}
	p := newPipeline(t, pub, WithHooks(Hooks{OnDone: func(Context, Result) { dones++ }}))

	res := p.RejectPayload(context.Background(), nil, sterrors.New("http: request body too large"))

	assert.Equal(t, OutcomeBadRequest, res.Outcome)
	assert.Equal(t, StateReceived, res.Stage)
	assert.ErrorIs(t, res.Err, errors.ErrMalformedPayload)
	assert.Equal(t, 1, dones)
	assert.Zero(t, pub.calls)
}

func TestAdmitConcurrentExecutions(t *testing.T) {
	sink := &transporttest.Publisher{}
	adapter, err := publish.NewAdapter(sink, publish.Config{Topic: "bids"}, logging.Nop())
	require.NoError(t, err)

	var starts, dones, published atomic.Int64
	p := newPipeline(t, adapter, WithHooks(Hooks{
		OnStart: func(Context) { starts.Add(1) },
		OnDone: func(_ Context, res Result) {
			dones.Add(1)
			if res.Outcome == OutcomePublished {
				published.Add(1)
			}
		},
	}))

	bodies := []string{
		`{"id":"ok-%d","site":{"domain":"example.com"},"device":{"lmt":0,"ip":"8.8.8.8"}}`,
		`{"id":"lmt-%d","site":{"domain":"example.com"},"device":{"lmt":1}}`,
		`{"id":"private-%d","app":{"bundle":"b"},"device":{"ip":"10.10.5.5"}}`,
		`{"id":"nodevice-%d","site":{"domain":"example.com"}}`,
	}
	const rounds = 50
	outcomes := make([]Outcome, rounds*len(bodies))

	var wg sync.WaitGroup
	for i := range outcomes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := fmt.Sprintf(bodies[i%len(bodies)], i)
			outcomes[i] = p.AdmitPayload(context.Background(), []byte(body), nil).Outcome
		}(i)
	}
	wg.Wait()

	for i, got := range outcomes {
		want := []Outcome{OutcomePublished, OutcomeDropped, OutcomeDropped, OutcomeBadRequest}[i%len(bodies)]
		assert.Equal(t, want, got, "request %d", i)
	}
	assert.Equal(t, rounds, sink.Calls())
	assert.Len(t, sink.Published(), rounds)
	assert.Equal(t, int64(rounds), published.Load())
	assert.Equal(t, int64(len(outcomes)), starts.Load())
	assert.Equal(t, int64(len(outcomes)), dones.Load())
	assert.Eventually(t, func() bool { return adapter.InFlight() == 0 }, time.Second, time.Millisecond)
}
