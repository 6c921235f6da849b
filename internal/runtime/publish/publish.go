// Package publish hands admitted bid requests to the configured watermill
// sink with a bounded in-flight window and a bounded wait for the sink's
// acknowledgement.
package publish

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"golang.org/x/sync/semaphore"

	"github.com/drblury/bidgate/internal/runtime/bid"
	"github.com/drblury/bidgate/internal/runtime/errors"
	"github.com/drblury/bidgate/internal/runtime/ids"
	"github.com/drblury/bidgate/internal/runtime/jsoncodec"
	"github.com/drblury/bidgate/internal/runtime/logging"
	"github.com/drblury/bidgate/internal/runtime/metadata"
)

const (
	DefaultTopic       = "bids"
	DefaultTimeout     = 250 * time.Millisecond
	DefaultMaxInFlight = 5000
)

// Config tunes an Adapter. Zero values fall back to the defaults.
type Config struct {
	Topic       string
	Timeout     time.Duration
	MaxInFlight int64
	Codec       jsoncodec.Codec
}

func (c Config) withDefaults() Config {
	if c.Topic == "" {
		c.Topic = DefaultTopic
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = DefaultMaxInFlight
	}
	if c.Codec == nil {
		c.Codec = jsoncodec.Default
	}
	return c
}

// Adapter wraps a message.Publisher. Every Publish call results in at most
// one Publish on the sink; there are no retries.
type Adapter struct {
	sink   message.Publisher
	cfg    Config
	logger logging.ServiceLogger

	slots    *semaphore.Weighted
	inFlight atomic.Int64

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewAdapter validates its inputs and returns a ready Adapter.
func NewAdapter(sink message.Publisher, cfg Config, logger logging.ServiceLogger) (*Adapter, error) {
	if sink == nil {
		return nil, errors.ErrPublisherRequired
	}
	if logger == nil {
		return nil, errors.ErrLoggerRequired
	}
	cfg = cfg.withDefaults()
	return &Adapter{
		sink:   sink,
		cfg:    cfg,
		logger: logger.With(logging.LogFields{"component": "publisher", "topic": cfg.Topic}),
		slots:  semaphore.NewWeighted(cfg.MaxInFlight),
	}, nil
}

// Topic returns the destination topic.
func (a *Adapter) Topic() string { return a.cfg.Topic }

// Timeout returns the bounded wait for a sink acknowledgement.
func (a *Adapter) Timeout() time.Duration { return a.cfg.Timeout }

// MaxInFlight returns the send buffer capacity.
func (a *Adapter) MaxInFlight() int64 { return a.cfg.MaxInFlight }

// InFlight reports handoffs the sink has not returned from yet.
func (a *Adapter) InFlight() int64 { return a.inFlight.Load() }

// Publish encodes req and hands it to the sink. Errors wrap
// errors.ErrSerialization or errors.ErrBrokerUnavailable. Cancellation of
// ctx does not abort the handoff; only the configured timeout bounds it.
func (a *Adapter) Publish(ctx context.Context, req *bid.BidRequest, md metadata.Metadata) error {
	payload, err := a.cfg.Codec.Marshal(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrSerialization, err)
	}

	a.mu.RLock()
	if a.closed {
		a.mu.RUnlock()
		return errors.ErrPublisherClosed
	}
	if !a.slots.TryAcquire(1) {
		a.mu.RUnlock()
		return errors.ErrSendBufferFull
	}
	a.inFlight.Add(1)
	a.wg.Add(1)
	a.mu.RUnlock()

	msg := message.NewMessage(ids.CreateULID(), payload)
	msg.Metadata = metadata.ToWatermill(a.headers(req, md, msg.UUID))
	msg.SetContext(context.WithoutCancel(ctx))

	done := make(chan error, 1)
	go func() {
		defer a.wg.Done()
		defer a.slots.Release(1)
		defer a.inFlight.Add(-1)
		done <- a.sink.Publish(a.cfg.Topic, msg)
	}()

	timer := time.NewTimer(a.cfg.Timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: %v", errors.ErrBrokerUnavailable, err)
		}
		return nil
	case <-timer.C:
		a.logger.Debug("sink acknowledgement timed out", logging.LogFields{
			"message_uuid": msg.UUID,
			"timeout":      a.cfg.Timeout.String(),
		})
		return errors.ErrPublishTimeout
	}
}

func (a *Adapter) headers(req *bid.BidRequest, md metadata.Metadata, uuid string) metadata.Metadata {
	return md.WithAll(metadata.Metadata{
		metadata.KeyBidID:       req.ID,
		metadata.KeyContentType: a.cfg.Codec.ContentType(),
		metadata.KeyPartition:   req.ID,
		metadata.KeyInventory:   req.InventoryKind(),
	}).
		WithDefault(metadata.KeyCorrelationID, uuid).
		WithDefault(metadata.KeyReceivedAt, receivedAt(uuid))
}

// receivedAt falls back to the timestamp inside the message ULID, so the
// header and the message id never disagree.
func receivedAt(uuid string) string {
	ts, ok := ids.Time(uuid)
	if !ok {
		ts = time.Now()
	}
	return ts.UTC().Format(time.RFC3339Nano)
}

// Close stops accepting new requests, waits up to the publish timeout for
// outstanding handoffs and closes the sink. It is safe to call more than once.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(a.cfg.Timeout):
		a.logger.Info("closing sink with handoffs outstanding", logging.LogFields{"in_flight": a.InFlight()})
	}

	if err := a.sink.Close(); err != nil {
		return fmt.Errorf("close sink: %w", err)
	}
	return nil
}
