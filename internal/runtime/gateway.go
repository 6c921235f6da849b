package runtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/drblury/bidgate/internal/runtime/admission"
	configpkg "github.com/drblury/bidgate/internal/runtime/config"
	errspkg "github.com/drblury/bidgate/internal/runtime/errors"
	loggingpkg "github.com/drblury/bidgate/internal/runtime/logging"
	"github.com/drblury/bidgate/internal/runtime/metrics"
	"github.com/drblury/bidgate/internal/runtime/publish"
	transportpkg "github.com/drblury/bidgate/internal/runtime/transport"
)

// GatewayDependencies holds optional collaborators. Leave fields nil to get
// the defaults.
type GatewayDependencies struct {
	TransportFactory transportpkg.Factory
	Validator        admission.Validator
	// Rules are evaluated after the built-in filter rules.
	Rules          []admission.Rule
	Hooks          admission.Hooks
	TracerProvider trace.TracerProvider
}

// Gateway wires the HTTP surface, the admission pipeline and the sink.
type Gateway struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	sink      transportpkg.Sink
	publisher *publish.Adapter
	pipeline  *admission.Pipeline
	metrics   *metrics.Metrics
	engine    *gin.Engine
	handler   http.Handler
	server    *http.Server

	shutdownTracer func(context.Context) error
	closeOnce      sync.Once
	closeErr       error
}

// NewGateway builds the sink and everything in front of it. Any error is a
// startup failure: the sink could not be reached or the configuration is
// invalid.
func NewGateway(ctx context.Context, conf *configpkg.Config, log loggingpkg.ServiceLogger, deps GatewayDependencies) (*Gateway, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	if err := configpkg.ValidateConfig(conf); err != nil {
		return nil, errspkg.NewConfigValidationError(err)
	}

	log.Info("Creating bid gateway", loggingpkg.LogFields{
		"pubsub_system": conf.PubSubSystem,
		"topic":         conf.Topic,
		"config":        conf.String(),
	})

	g := &Gateway{Conf: conf, Logger: log, shutdownTracer: func(context.Context) error { return nil }}

	tp := deps.TracerProvider
	if tp == nil {
		provider, shutdown, err := InitTracer(conf, log)
		if err != nil {
			return nil, err
		}
		tp, g.shutdownTracer = provider, shutdown
	}

	factory := deps.TransportFactory
	if factory == nil {
		factory = transportpkg.DefaultFactory()
	}
	sink, err := factory.Build(ctx, conf, loggingpkg.NewWatermillAdapter(loggingpkg.Named(log, "sink")))
	if err != nil {
		_ = g.shutdownTracer(ctx)
		return nil, fmt.Errorf("build sink %q: %w", conf.PubSubSystem, err)
	}
	g.sink = sink

	g.publisher, err = publish.NewAdapter(sink.Publisher, publish.Config{
		Topic:       conf.Topic,
		Timeout:     conf.PublishTimeout,
		MaxInFlight: int64(conf.PublishMaxInFlight),
	}, loggingpkg.Named(log, "publisher"))
	if err != nil {
		_ = sink.Publisher.Close()
		_ = g.shutdownTracer(ctx)
		return nil, err
	}

	g.metrics = metrics.New()
	if err := g.metrics.RegisterInFlight(g.publisher.InFlight); err != nil {
		_ = g.Close()
		return nil, fmt.Errorf("register in-flight gauge: %w", err)
	}

	filter := admission.DefaultFilter(conf.FilterBlockedIPPrefixes...).With(deps.Rules...)
	g.pipeline, err = admission.NewPipeline(g.publisher,
		admission.WithValidator(deps.Validator),
		admission.WithFilter(filter),
		admission.WithHooks(g.metrics.Hooks()),
		admission.WithHooks(admission.LoggingHooks(loggingpkg.Named(log, "admission"))),
		admission.WithHooks(deps.Hooks),
		admission.WithTracerProvider(tp),
	)
	if err != nil {
		_ = g.Close()
		return nil, err
	}

	g.engine = g.newEngine()
	g.handler = g.engine
	if conf.TracingEnabled {
		g.handler = otelhttp.NewHandler(g.engine, serviceName, otelhttp.WithTracerProvider(tp))
	}
	g.server = &http.Server{
		Addr:              conf.HTTPAddress,
		Handler:           g.handler,
		ReadTimeout:       conf.HTTPReadTimeout,
		ReadHeaderTimeout: conf.HTTPReadTimeout,
		WriteTimeout:      conf.HTTPWriteTimeout,
	}
	return g, nil
}

// Handler returns the HTTP handler serving every route.
func (g *Gateway) Handler() http.Handler { return g.handler }

// Pipeline returns the admission pipeline.
func (g *Gateway) Pipeline() *admission.Pipeline { return g.pipeline }

// Metrics returns the gateway's collectors.
func (g *Gateway) Metrics() *metrics.Metrics { return g.metrics }

// Sink returns the sink requests are published to.
func (g *Gateway) Sink() transportpkg.Sink { return g.sink }

// Start listens on the configured address and serves until ctx is cancelled.
func (g *Gateway) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.Conf.HTTPAddress)
	if err != nil {
		_ = g.Close()
		return fmt.Errorf("listen on %s: %w", g.Conf.HTTPAddress, err)
	}
	return g.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts the server down
// gracefully and releases the sink.
func (g *Gateway) Serve(ctx context.Context, ln net.Listener) error {
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		g.Logger.Info("Starting HTTP server", loggingpkg.LogFields{"address": ln.Addr().String()})
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.Conf.ShutdownTimeout)
		defer cancel()

		g.Logger.Info("Shutting down HTTP server", loggingpkg.LogFields{"timeout": g.Conf.ShutdownTimeout.String()})
		err := g.server.Shutdown(shutdownCtx)
		return errors.Join(err, g.Close())
	})

	return eg.Wait()
}

// Close releases the sink and flushes traces. It is safe to call more than
// once.
func (g *Gateway) Close() error {
	g.closeOnce.Do(func() {
		var errs []error
		if g.publisher != nil {
			errs = append(errs, g.publisher.Close())
		}
		if g.shutdownTracer != nil {
			errs = append(errs, g.shutdownTracer(context.Background()))
		}
		g.closeErr = errors.Join(errs...)
	})
	return g.closeErr
}
