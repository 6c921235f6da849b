package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	runtimeerrors "github.com/drblury/bidgate/internal/runtime/errors"
)

// Environment variables understood by Load.
const (
	EnvPrefix         = "BIDGATE_"
	EnvConfigFile     = "BIDGATE_CONFIG_FILE"
	EnvKafkaBootstrap = "KAFKA_BOOTSTRAP_SERVERS"
)

// listKeys are split on commas when read from the environment.
var listKeys = map[string]bool{
	"kafka_brokers":              true,
	"filter_blocked_ip_prefixes": true,
}

// Load reads the configuration from defaults, the optional YAML file named by
// BIDGATE_CONFIG_FILE, KAFKA_BOOTSTRAP_SERVERS and BIDGATE_* variables, in
// that order of precedence (later wins), then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := setDefaults(k); err != nil {
		return nil, err
	}

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("KAFKA_", ".", func(key, value string) (string, any) {
		if key != EnvKafkaBootstrap {
			return "", nil
		}
		return "kafka_brokers", splitList(value)
	}), nil); err != nil {
		return nil, err
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, runtimeerrors.NewConfigValidationError(err)
	}
	return &cfg, nil
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		PubSubSystem:            DefaultPubSubSystem,
		Topic:                   DefaultTopic,
		KafkaBrokers:            []string{DefaultKafkaBroker},
		KafkaClientID:           DefaultKafkaClientID,
		KafkaRequiredAcks:       DefaultKafkaRequiredAcks,
		HTTPAddress:             DefaultHTTPAddress,
		HTTPMaxBodyBytes:        DefaultHTTPMaxBodyBytes,
		HTTPReadTimeout:         DefaultHTTPReadTimeout,
		HTTPWriteTimeout:        DefaultHTTPWriteTimeout,
		ShutdownTimeout:         DefaultShutdownTimeout,
		PublishTimeout:          DefaultPublishTimeout,
		PublishMaxInFlight:      DefaultPublishMaxInFlight,
		FilterBlockedIPPrefixes: append([]string(nil), DefaultBlockedIPPrefixes...),
		LogLevel:                DefaultLogLevel,
		LogFormat:               DefaultLogFormat,
		LogBackend:              DefaultLogBackend,
		TracingExporter:         DefaultTracingExporter,
	}
}

func setDefaults(k *koanf.Koanf) error {
	d := Default()
	defaults := map[string]any{
		"pubsub_system":              d.PubSubSystem,
		"topic":                      d.Topic,
		"kafka_brokers":              d.KafkaBrokers,
		"kafka_client_id":            d.KafkaClientID,
		"kafka_required_acks":        d.KafkaRequiredAcks,
		"kafka_producer_retries":     0,
		"http_address":               d.HTTPAddress,
		"http_max_body_bytes":        d.HTTPMaxBodyBytes,
		"http_read_timeout":          d.HTTPReadTimeout,
		"http_write_timeout":         d.HTTPWriteTimeout,
		"shutdown_timeout":           d.ShutdownTimeout,
		"publish_timeout":            d.PublishTimeout,
		"publish_max_in_flight":      d.PublishMaxInFlight,
		"filter_blocked_ip_prefixes": d.FilterBlockedIPPrefixes,
		"log_level":                  d.LogLevel,
		"log_format":                 d.LogFormat,
		"log_backend":                d.LogBackend,
		"tracing_enabled":            false,
		"tracing_exporter":           d.TracingExporter,
	}
	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}
	return nil
}

// envKey maps BIDGATE_HTTP_ADDRESS to http_address and splits list values.
func envKey(key, value string) (string, any) {
	if key == EnvConfigFile {
		return "", nil
	}
	name := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	if listKeys[name] {
		return name, splitList(value)
	}
	return name, value
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) normalize() {
	c.PubSubSystem = strings.ToLower(strings.TrimSpace(c.PubSubSystem))
	c.KafkaRequiredAcks = strings.ToLower(c.KafkaRequiredAcks)
	c.KafkaCompression = strings.ToLower(c.KafkaCompression)
	c.LogFormat = strings.ToLower(c.LogFormat)
	c.LogBackend = strings.ToLower(c.LogBackend)
	c.TracingExporter = strings.ToLower(c.TracingExporter)
}
