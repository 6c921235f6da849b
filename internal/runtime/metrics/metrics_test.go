package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/bidgate/internal/runtime/admission"
	"github.com/drblury/bidgate/internal/runtime/bid"
	"github.com/drblury/bidgate/internal/runtime/errors"
	"github.com/drblury/bidgate/internal/runtime/metadata"
)

type stubPublisher struct{ err error }

func (s stubPublisher) Publish(context.Context, *bid.BidRequest, metadata.Metadata) error {
	return s.err
}

func TestObserve(t *testing.T) {
	m := New()

	m.Observe(admission.Result{Outcome: admission.OutcomePublished}, time.Millisecond)
	m.Observe(admission.Result{Outcome: admission.OutcomeDropped, Reason: admission.RuleLimitAdTracking}, time.Millisecond)
	m.Observe(admission.Result{Outcome: admission.OutcomeBadRequest}, time.Millisecond)
	m.Observe(admission.Result{Outcome: admission.OutcomeBrokerUnavailable}, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsAccepted))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.requestsRejected))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("dropped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.filterDrops.WithLabelValues(admission.RuleLimitAdTracking)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.outcomes.WithLabelValues("internal_error")))
	assert.Equal(t, 4, testutil.CollectAndCount(m.duration))
}

func TestHooksThroughPipeline(t *testing.T) {
	m := New()
	p, err := admission.NewPipeline(stubPublisher{}, admission.WithHooks(m.Hooks()))
	require.NoError(t, err)

	ctx := context.Background()
	p.AdmitPayload(ctx, []byte(`{"id":"r1","site":{"domain":"example.com"},"device":{"lmt":0,"ip":"8.8.8.8"}}`), nil)
	p.AdmitPayload(ctx, []byte(`{"id":"","site":{"domain":"example.com"},"device":{"lmt":0}}`), nil)
	p.AdmitPayload(ctx, []byte(`{"id":"r2","site":{"domain":"example.com"},"device":{"lmt":1}}`), nil)
	p.AdmitPayload(ctx, []byte(`garbage`), nil)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.requestsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsAccepted))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.requestsRejected))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.outcomes.WithLabelValues("bad_request")))
}

func TestHooksCountBrokerFailures(t *testing.T) {
	m := New()
	p, err := admission.NewPipeline(stubPublisher{err: errors.ErrSendBufferFull}, admission.WithHooks(m.Hooks()))
	require.NoError(t, err)

	p.AdmitPayload(context.Background(), []byte(`{"id":"r1","app":{"bundle":"b"},"device":{}}`), nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("broker_unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsRejected))
}

func TestRegisterInFlight(t *testing.T) {
	m := New()
	var inFlight int64 = 7

	require.NoError(t, m.RegisterInFlight(func() int64 { return inFlight }))
	require.NoError(t, m.RegisterInFlight(func() int64 { return 0 }), "second registration is ignored")

	expected := `
# HELP publish_inflight Publishes handed to the sink and not yet acknowledged
# TYPE publish_inflight gauge
publish_inflight 7
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "publish_inflight"))
}

func TestHandler(t *testing.T) {
	m := New()
	m.Observe(admission.Result{Outcome: admission.OutcomePublished}, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	text := string(body)
	assert.Contains(t, text, "requests_accepted_total 1")
	assert.Contains(t, text, "requests_total")
	assert.Contains(t, text, `request_duration_seconds_bucket{outcome="published"`)
	assert.Contains(t, text, "go_goroutines")
}
