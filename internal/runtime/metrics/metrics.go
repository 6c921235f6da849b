// Package metrics exposes the gateway's Prometheus collectors on a registry
// owned by the gateway rather than the process-wide default.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/drblury/bidgate/internal/runtime/admission"
)

// DurationBuckets are tuned for admissions that normally finish in well
// under 10ms.
var DurationBuckets = []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// Metrics holds the admission collectors.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal    prometheus.Counter
	requestsAccepted prometheus.Counter
	requestsRejected prometheus.Counter
	outcomes         *prometheus.CounterVec
	filterDrops      *prometheus.CounterVec
	duration         *prometheus.HistogramVec

	inFlightOnce sync.Once
}

func newCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
}

func newCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
}

func newHistogramVec(name, help string, buckets []float64, labels []string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    name,
			Help:    help,
			Buckets: buckets,
		},
		labels,
	)
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry:         prometheus.NewRegistry(),
		requestsTotal:    newCounter("requests_total", "Bid requests received"),
		requestsAccepted: newCounter("requests_accepted_total", "Bid requests published to the topic"),
		requestsRejected: newCounter("requests_rejected_total", "Bid requests that ended in any outcome other than published"),
		outcomes:         newCounterVec("requests_outcome_total", "Bid requests by terminal outcome", []string{"outcome"}),
		filterDrops:      newCounterVec("filter_drops_total", "Bid requests dropped by filter rule", []string{"rule"}),
		duration:         newHistogramVec("request_duration_seconds", "Admission latency by outcome", DurationBuckets, []string{"outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestsTotal,
		m.requestsAccepted,
		m.requestsRejected,
		m.outcomes,
		m.filterDrops,
		m.duration,
	)

	for _, o := range admission.Outcomes() {
		m.outcomes.WithLabelValues(o.String())
	}
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RegisterInFlight exposes publish_inflight, sampled from fn at scrape time.
// Only the first call registers.
func (m *Metrics) RegisterInFlight(fn func() int64) error {
	var err error
	m.inFlightOnce.Do(func() {
		err = m.registry.Register(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "publish_inflight",
				Help: "Publishes handed to the sink and not yet acknowledged",
			},
			func() float64 { return float64(fn()) },
		))
	})
	return err
}

// Observe records one finished admission.
func (m *Metrics) Observe(res admission.Result, d time.Duration) {
	label := res.Outcome.String()
	m.outcomes.WithLabelValues(label).Inc()
	m.duration.WithLabelValues(label).Observe(d.Seconds())

	if res.Outcome == admission.OutcomePublished {
		m.requestsAccepted.Inc()
		return
	}
	m.requestsRejected.Inc()
	if res.Outcome == admission.OutcomeDropped {
		m.filterDrops.WithLabelValues(res.Reason).Inc()
	}
}

// Hooks returns admission hooks that feed these collectors.
func (m *Metrics) Hooks() admission.Hooks {
	return admission.Hooks{
		OnStart: func(admission.Context) {
			m.requestsTotal.Inc()
		},
		OnDone: func(ctx admission.Context, res admission.Result) {
			m.Observe(res, ctx.Duration)
		},
	}
}
