package transport

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/bidgate/internal/runtime/config"
	"github.com/drblury/bidgate/internal/runtime/errors"
	"github.com/drblury/bidgate/internal/runtime/logging"
	sinks "github.com/drblury/bidgate/transport"
	"github.com/drblury/bidgate/transport/transporttest"
)

func testLogger() watermill.LoggerAdapter {
	slogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return logging.NewWatermillAdapter(logging.NewSlogServiceLogger(slogger))
}

func TestDefaultFactory_Build_Channel(t *testing.T) {
	cfg := config.Default()
	cfg.PubSubSystem = "channel"

	sink, err := DefaultFactory().Build(context.Background(), &cfg, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Publisher.Close() })

	assert.Equal(t, "channel", sink.Name)
	assert.NotNil(t, sink.Publisher)
	assert.Equal(t, sinks.ChannelCapabilities, sink.Capabilities)
}

func TestDefaultFactory_RegistersAllSinks(t *testing.T) {
	for _, name := range []string{"kafka", "kafkago", "channel", "nats", "nats-jetstream", "rabbitmq", "aws", "aws-sqs", "http", "io"} {
		assert.True(t, sinks.DefaultRegistry.Has(name), name)
	}
}

func TestFactory_Build_NilConfig(t *testing.T) {
	_, err := DefaultFactory().Build(context.Background(), nil, testLogger())
	assert.ErrorIs(t, err, errors.ErrConfigRequired)
}

func TestFactory_Build_UnknownSink(t *testing.T) {
	cfg := config.Default()
	cfg.PubSubSystem = "carrier-pigeon"

	_, err := DefaultFactory().Build(context.Background(), &cfg, testLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, sinks.ErrUnknownSink)
}

func TestFactory_Build_CustomRegistry(t *testing.T) {
	pub := &transporttest.Publisher{}
	registry := sinks.NewRegistry()
	registry.RegisterWithCapabilities("mock", func(context.Context, sinks.Config, watermill.LoggerAdapter) (sinks.Transport, error) {
		return sinks.Transport{Publisher: pub}, nil
	}, sinks.KafkaCapabilities)

	cfg := config.Default()
	cfg.PubSubSystem = "mock"

	sink, err := NewFactory(registry).Build(context.Background(), &cfg, nil)
	require.NoError(t, err)
	assert.Same(t, pub, sink.Publisher)
	assert.True(t, sink.Capabilities.ConfirmsDelivery)
}

func TestCheckCapabilities(t *testing.T) {
	cfg := config.Default()

	assert.Empty(t, CheckCapabilities(sinks.KafkaCapabilities, &cfg))

	warnings := CheckCapabilities(sinks.ChannelCapabilities, &cfg)
	assert.NotEmpty(t, warnings)

	cfg.HTTPMaxBodyBytes = 10 << 20
	warnings = CheckCapabilities(sinks.KafkaCapabilities, &cfg)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "body limit")
}
