package transport

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
)

var (
	// ErrUnknownSink is returned by Build when no builder is registered
	// under the configured pubsub system.
	ErrUnknownSink = errors.New("unknown sink")
	// ErrNoPublisher is returned when a builder succeeds without a publisher.
	ErrNoPublisher = errors.New("builder returned no publisher")
)

type sinkEntry struct {
	build Builder
	caps  Capabilities
}

// Registry maps pubsub system names to sink builders and what each sink
// guarantees. Sink packages add themselves from init.
type Registry struct {
	mu    sync.RWMutex
	sinks map[string]sinkEntry
}

// DefaultRegistry is the registry the sink packages register into.
var DefaultRegistry = NewRegistry()

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sinks: make(map[string]sinkEntry)}
}

// Register adds builder under name with capabilities unknown. Registering a
// name twice replaces the earlier builder.
func (r *Registry) Register(name string, builder Builder) {
	r.RegisterWithCapabilities(name, builder, Capabilities{Name: name})
}

// RegisterWithCapabilities adds builder under name together with its
// delivery guarantees.
func (r *Registry) RegisterWithCapabilities(name string, builder Builder, caps Capabilities) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[name] = sinkEntry{build: builder, caps: caps}
}

// GetCapabilities reports what the named sink guarantees. Unknown sinks get
// zero capabilities carrying only the name.
func (r *Registry) GetCapabilities(name string) Capabilities {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.sinks[name]; ok {
		return entry.caps
	}
	return Capabilities{Name: name}
}

// Build runs the builder registered for cfg.GetPubSubSystem().
func (r *Registry) Build(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error) {
	if cfg == nil {
		return Transport{}, errors.New("sink config is required")
	}
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	name := cfg.GetPubSubSystem()
	r.mu.RLock()
	entry, ok := r.sinks[name]
	r.mu.RUnlock()
	if !ok {
		return Transport{}, fmt.Errorf("%w %q (registered: %v)", ErrUnknownSink, name, r.Names())
	}

	t, err := entry.build(ctx, cfg, logger)
	if err != nil {
		return Transport{}, fmt.Errorf("build %s sink: %w", name, err)
	}
	if t.Publisher == nil {
		return Transport{}, fmt.Errorf("build %s sink: %w", name, ErrNoPublisher)
	}
	return t, nil
}

// Names returns the registered sink names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.sinks))
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sinks[name]
	return ok
}

// Register adds builder to DefaultRegistry.
func Register(name string, builder Builder) {
	DefaultRegistry.Register(name, builder)
}

// RegisterWithCapabilities adds builder and caps to DefaultRegistry.
func RegisterWithCapabilities(name string, builder Builder, caps Capabilities) {
	DefaultRegistry.RegisterWithCapabilities(name, builder, caps)
}

// Build creates a sink from DefaultRegistry.
func Build(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error) {
	return DefaultRegistry.Build(ctx, cfg, logger)
}
