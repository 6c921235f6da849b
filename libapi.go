package bidgate

import (
	runtimepkg "github.com/drblury/bidgate/internal/runtime"
	"github.com/drblury/bidgate/internal/runtime/admission"
	"github.com/drblury/bidgate/internal/runtime/bid"
	configpkg "github.com/drblury/bidgate/internal/runtime/config"
	errspkg "github.com/drblury/bidgate/internal/runtime/errors"
	idspkg "github.com/drblury/bidgate/internal/runtime/ids"
	jsoncodec "github.com/drblury/bidgate/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/bidgate/internal/runtime/logging"
	metadatapkg "github.com/drblury/bidgate/internal/runtime/metadata"
	metricspkg "github.com/drblury/bidgate/internal/runtime/metrics"
	publishpkg "github.com/drblury/bidgate/internal/runtime/publish"
	transportpkg "github.com/drblury/bidgate/internal/runtime/transport"
	sinkpkg "github.com/drblury/bidgate/transport"
)

type (
	Config                = configpkg.Config
	ConfigValidationError = errspkg.ConfigValidationError

	Gateway             = runtimepkg.Gateway
	GatewayDependencies = runtimepkg.GatewayDependencies

	BidRequest = bid.BidRequest
	Site       = bid.Site
	App        = bid.App
	Device     = bid.Device
	User       = bid.User

	Pipeline         = admission.Pipeline
	PipelineOption   = admission.Option
	Validator        = admission.Validator
	ValidatorFunc    = admission.ValidatorFunc
	Filter           = admission.Filter
	Rule             = admission.Rule
	Verdict          = admission.Verdict
	Outcome          = admission.Outcome
	State            = admission.State
	Result           = admission.Result
	AdmissionContext = admission.Context
	AdmissionHooks   = admission.Hooks

	Publisher        = admission.Publisher
	PublishAdapter   = publishpkg.Adapter
	PublishConfig    = publishpkg.Config
	Metrics          = metricspkg.Metrics
	Sink             = transportpkg.Sink
	TransportFactory = transportpkg.Factory

	Metadata = metadatapkg.Metadata

	LogFields                 = loggingpkg.LogFields
	ServiceLogger             = loggingpkg.ServiceLogger
	LoggingOptions            = loggingpkg.Options
	EntryLoggerAdapter[T any] = loggingpkg.EntryLoggerAdapter[T]

	TransportBuilder      = sinkpkg.Builder
	TransportConfig       = sinkpkg.Config
	TransportRegistry     = sinkpkg.Registry
	TransportCapabilities = sinkpkg.Capabilities
)

const (
	OutcomePublished          = admission.OutcomePublished
	OutcomeBadRequest         = admission.OutcomeBadRequest
	OutcomeDropped            = admission.OutcomeDropped
	OutcomeSerializationError = admission.OutcomeSerializationError
	OutcomeBrokerUnavailable  = admission.OutcomeBrokerUnavailable
	OutcomeInternalError      = admission.OutcomeInternalError
)

// Metadata keys attached to every published bid request.
const (
	MetadataKeyCorrelationID = metadatapkg.KeyCorrelationID
	MetadataKeyBidID         = metadatapkg.KeyBidID
	MetadataKeyContentType   = metadatapkg.KeyContentType
	MetadataKeyReceivedAt    = metadatapkg.KeyReceivedAt
	MetadataKeyPartition     = metadatapkg.KeyPartition
	MetadataKeyInventory     = metadatapkg.KeyInventory
	MetadataKeyRemoteAddr    = metadatapkg.KeyRemoteAddr
	MetadataKeyTraceParent   = metadatapkg.KeyTraceParent
)

var (
	NewGateway     = runtimepkg.NewGateway
	InitTracer     = runtimepkg.InitTracer
	LoadConfig     = configpkg.Load
	DefaultConfig  = configpkg.Default
	ValidateConfig = configpkg.ValidateConfig

	DecodeBidRequest = bid.Decode
	EncodeBidRequest = bid.Encode

	NewPipeline          = admission.NewPipeline
	WithValidator        = admission.WithValidator
	WithFilter           = admission.WithFilter
	WithHooks            = admission.WithHooks
	WithTracerProvider   = admission.WithTracerProvider
	NewFilter            = admission.NewFilter
	DefaultFilter        = admission.DefaultFilter
	LimitAdTrackingRule  = admission.LimitAdTracking
	PrivateNetworkRule   = admission.PrivateNetwork
	LoggingHooks         = admission.LoggingHooks
	NewPublishAdapter    = publishpkg.NewAdapter
	NewMetrics           = metricspkg.New
	DefaultSinkFactory   = transportpkg.DefaultFactory
	NewSinkFactory       = transportpkg.NewFactory
	CheckCapabilities    = transportpkg.CheckCapabilities
	StructuralValidation = admission.StructuralValidator{}

	DefaultTransportRegistry = sinkpkg.DefaultRegistry
	RegisterTransport        = sinkpkg.Register
	BuildTransport           = sinkpkg.Build
	GetCapabilities          = sinkpkg.GetCapabilities

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	ErrMalformedPayload  = errspkg.ErrMalformedPayload
	ErrBadRequest        = errspkg.ErrBadRequest
	ErrMissingID         = errspkg.ErrMissingID
	ErrMissingDevice     = errspkg.ErrMissingDevice
	ErrMissingInventory  = errspkg.ErrMissingInventory
	ErrSerialization     = errspkg.ErrSerialization
	ErrBrokerUnavailable = errspkg.ErrBrokerUnavailable
	ErrSendBufferFull    = errspkg.ErrSendBufferFull
	ErrPublishTimeout    = errspkg.ErrPublishTimeout
	ErrPublisherClosed   = errspkg.ErrPublisherClosed
	ErrPublisherRequired = errspkg.ErrPublisherRequired
	ErrConfigRequired    = errspkg.ErrConfigRequired
	ErrLoggerRequired    = errspkg.ErrLoggerRequired
	ErrUnknownSink       = sinkpkg.ErrUnknownSink
	ErrNoPublisher       = sinkpkg.ErrNoPublisher

	NewLogger            = loggingpkg.New
	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger
	NamedLogger          = loggingpkg.Named

	NewMetadata = metadatapkg.New

	CreateULID = idspkg.CreateULID
)

func NewEntryServiceLogger[T EntryLoggerAdapter[T]](entry T) ServiceLogger {
	return loggingpkg.NewEntryServiceLogger(entry)
}
