package aws

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-aws/sqs"
	"github.com/ThreeDotsLabs/watermill/message"
	amazonsqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	smithyendpoints "github.com/aws/smithy-go/endpoints"

	"github.com/drblury/bidgate/transport"
)

// SQSTransportName is the name used to register the SQS sink.
const SQSTransportName = "aws-sqs"

// SQSPublisherFactory allows overriding the SQS publisher creation for testing.
var SQSPublisherFactory = func(cfg sqs.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return sqs.NewPublisher(cfg, logger)
}

// SQSCapabilities returns the capabilities of the SQS sink.
func SQSCapabilities() transport.Capabilities {
	return transport.AWSSQSCapabilities
}

func (s session) sqsOptions() []func(*amazonsqs.Options) {
	if s.endpoint == nil {
		return nil
	}
	return []func(*amazonsqs.Options){
		amazonsqs.WithEndpointResolverV2(sqs.OverrideEndpointResolver{
			Endpoint: smithyendpoints.Endpoint{URI: *s.endpoint},
		}),
	}
}

// BuildSQS creates an SQS publisher that sends each bid request straight to
// a queue named after the topic.
func BuildSQS(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	s, err := loadSession(ctx, cfg, logger)
	if err != nil {
		return transport.Transport{}, err
	}

	pub, err := SQSPublisherFactory(sqs.PublisherConfig{
		AWSConfig: s.cfg,
		Marshaler: sqs.DefaultMarshalerUnmarshaler{},
		OptFns:    s.sqsOptions(),
	}, logger)
	if err != nil {
		return transport.Transport{}, err
	}
	return transport.Transport{Publisher: pub}, nil
}
