package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/bidgate/internal/runtime/metadata"
	"github.com/drblury/bidgate/transport"
	"github.com/drblury/bidgate/transport/transporttest"
)

func TestRegister(t *testing.T) {
	original := transport.DefaultRegistry
	defer func() { transport.DefaultRegistry = original }()

	transport.DefaultRegistry = transport.NewRegistry()
	Register()

	caps := transport.GetCapabilities(TransportName)
	assert.Equal(t, "kafka", caps.Name)
	assert.True(t, caps.ConfirmsDelivery)
	assert.True(t, caps.SupportsPartitioning)
}

func TestCapabilities(t *testing.T) {
	assert.Equal(t, transport.KafkaCapabilities, Capabilities())
}

func TestBuild(t *testing.T) {
	t.Run("passes brokers and sarama config to the factory", func(t *testing.T) {
		original := PublisherFactory
		defer func() { PublisherFactory = original }()

		mockPub := &transporttest.Publisher{}
		PublisherFactory = func(cfg kafka.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
			assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers)
			require.NotNil(t, cfg.OverwriteSaramaConfig)
			assert.Equal(t, sarama.WaitForAll, cfg.OverwriteSaramaConfig.Producer.RequiredAcks)
			assert.Equal(t, "bidgate-test", cfg.OverwriteSaramaConfig.ClientID)
			assert.NotNil(t, cfg.Marshaler)
			return mockPub, nil
		}

		cfg := &transporttest.Config{
			KafkaBrokers:      []string{"localhost:9092"},
			KafkaClientID:     "bidgate-test",
			KafkaRequiredAcks: "all",
		}
		tr, err := Build(context.Background(), cfg, watermill.NopLogger{})

		require.NoError(t, err)
		assert.Same(t, mockPub, tr.Publisher)
	})

	t.Run("requires brokers", func(t *testing.T) {
		_, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no brokers")
	})

	t.Run("rejects unknown acks", func(t *testing.T) {
		cfg := &transporttest.Config{KafkaBrokers: []string{"b:9092"}, KafkaRequiredAcks: "some"}
		_, err := Build(context.Background(), cfg, watermill.NopLogger{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "required acks")
	})

	t.Run("returns error when publisher factory fails", func(t *testing.T) {
		original := PublisherFactory
		defer func() { PublisherFactory = original }()

		PublisherFactory = func(cfg kafka.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
			return nil, errors.New("kafka: client has run out of available brokers")
		}

		cfg := &transporttest.Config{KafkaBrokers: []string{"localhost:9092"}}
		_, err := Build(context.Background(), cfg, watermill.NopLogger{})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "out of available brokers")
	})
}

func TestSaramaConfig(t *testing.T) {
	cfg := &transporttest.Config{
		KafkaRequiredAcks:    "none",
		KafkaProducerRetries: 3,
		KafkaCompression:     "snappy",
		Timeout:              250 * time.Millisecond,
	}

	sc, err := SaramaConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, sarama.NoResponse, sc.Producer.RequiredAcks)
	assert.Equal(t, 3, sc.Producer.Retry.Max)
	assert.Equal(t, sarama.CompressionSnappy, sc.Producer.Compression)
	assert.Equal(t, 250*time.Millisecond, sc.Producer.Timeout)
	assert.True(t, sc.Producer.Return.Successes)
}

func TestSaramaConfig_NegativeRetriesClamped(t *testing.T) {
	sc, err := SaramaConfig(&transporttest.Config{KafkaProducerRetries: -1})
	require.NoError(t, err)
	assert.Equal(t, 0, sc.Producer.Retry.Max)
	assert.Equal(t, sarama.WaitForLocal, sc.Producer.RequiredAcks)
}

func TestRequiredAcks(t *testing.T) {
	tests := map[string]sarama.RequiredAcks{
		"":       sarama.WaitForLocal,
		"leader": sarama.WaitForLocal,
		"none":   sarama.NoResponse,
		"ALL":    sarama.WaitForAll,
	}
	for mode, want := range tests {
		got, err := RequiredAcks(mode)
		require.NoError(t, err, mode)
		assert.Equal(t, want, got, mode)
	}
}

func TestCompression(t *testing.T) {
	for _, name := range []string{"", "none", "gzip", "snappy", "lz4", "zstd"} {
		_, err := Compression(name)
		assert.NoError(t, err, name)
	}
	_, err := Compression("brotli")
	assert.Error(t, err)
}

func TestPartitionKey(t *testing.T) {
	msg := message.NewMessage("uuid-1", []byte("{}"))
	key, err := PartitionKey("bids", msg)
	require.NoError(t, err)
	assert.Equal(t, "uuid-1", key)

	msg.Metadata.Set(metadata.KeyPartition, "bid-42")
	key, err = PartitionKey("bids", msg)
	require.NoError(t, err)
	assert.Equal(t, "bid-42", key)
}
