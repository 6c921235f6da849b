// Package aws provides the AWS SNS and SQS sinks for bidgate.
package aws

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-aws/sns"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	amazonsns "github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/drblury/bidgate/transport"
)

// TransportName is the name used to register the SNS sink.
const TransportName = "aws"

const (
	localstackAccountID = "000000000000"
	awsAccountIDLength  = 12
)

// Factory hooks, swapped in tests.
var (
	DefaultConfigLoader  = awsconfig.LoadDefaultConfig
	TopicResolverFactory = sns.NewGenerateArnTopicResolver
	PublisherFactory     = func(cfg sns.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
		return sns.NewPublisher(cfg, logger)
	}
)

// Register adds the SNS and SQS sinks to the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.AWSCapabilities)
	transport.RegisterWithCapabilities(SQSTransportName, BuildSQS, transport.AWSSQSCapabilities)
}

func init() {
	Register()
}

// Capabilities returns the capabilities of the SNS sink.
func Capabilities() transport.Capabilities {
	return transport.AWSCapabilities
}

// session is the resolved AWS configuration shared by both sinks.
type session struct {
	cfg      aws.Config
	endpoint *url.URL
}

func loadSession(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (session, error) {
	var opts []func(*awsconfig.LoadOptions) error
	region := cfg.GetAWSRegion()
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if key, secret := cfg.GetAWSAccessKeyID(), cfg.GetAWSSecretAccessKey(); key != "" && secret != "" {
		logger.Debug("Using static AWS credentials", nil)
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(key, secret, "")))
	}

	awsCfg, err := DefaultConfigLoader(ctx, opts...)
	if err != nil {
		return session{}, fmt.Errorf("load aws config: %w", err)
	}
	// Loaders that ignore options still get the configured region.
	if region != "" {
		awsCfg.Region = region
	}

	endpoint, err := awsEndpointURL(cfg)
	if err != nil {
		return session{}, err
	}

	logger.Info("AWS session ready", watermill.LogFields{
		"region":          awsCfg.Region,
		"custom_endpoint": endpoint != nil,
	})
	return session{cfg: awsCfg, endpoint: endpoint}, nil
}

func (s session) snsOptions() []func(*amazonsns.Options) {
	if s.endpoint == nil {
		return nil
	}
	base := s.endpoint.String()
	return []func(*amazonsns.Options){
		func(o *amazonsns.Options) { o.BaseEndpoint = aws.String(base) },
	}
}

// Build creates an SNS publisher. The topic name is turned into an ARN from
// the configured account and region.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	s, err := loadSession(ctx, cfg, logger)
	if err != nil {
		return transport.Transport{}, err
	}

	accountID, region := resolveAccountAndRegion(cfg, logger, s.cfg.Region)
	resolver, err := TopicResolverFactory(accountID, region)
	if err != nil {
		return transport.Transport{}, fmt.Errorf("sns topic resolver: %w", err)
	}

	pub, err := PublisherFactory(sns.PublisherConfig{
		TopicResolver: resolver,
		AWSConfig:     s.cfg,
		Marshaler:     sns.DefaultMarshalerUnmarshaler{},
		OptFns:        s.snsOptions(),
	}, logger)
	if err != nil {
		return transport.Transport{}, err
	}
	return transport.Transport{Publisher: pub}, nil
}

// resolveAccountAndRegion picks the account used in topic ARNs. With a custom
// endpoint (LocalStack) a missing or malformed account id falls back to the
// LocalStack default.
func resolveAccountAndRegion(cfg transport.Config, logger watermill.LoggerAdapter, fallbackRegion string) (accountID, region string) {
	region = fallbackRegion
	if cfg == nil {
		return "", region
	}
	if r := cfg.GetAWSRegion(); r != "" {
		region = r
	}

	accountID = strings.Trim(cfg.GetAWSAccountID(), "\"' ")
	if cfg.GetAWSEndpoint() == "" || len(accountID) == awsAccountIDLength {
		return accountID, region
	}
	logger.Info("Using LocalStack account id", watermill.LogFields{
		"configured": accountID,
		"account_id": localstackAccountID,
	})
	return localstackAccountID, region
}

func awsEndpointURL(cfg transport.Config) (*url.URL, error) {
	if cfg == nil || cfg.GetAWSEndpoint() == "" {
		return nil, nil
	}
	u, err := url.Parse(cfg.GetAWSEndpoint())
	if err != nil {
		return nil, fmt.Errorf("parse aws endpoint: %w", err)
	}
	return u, nil
}
