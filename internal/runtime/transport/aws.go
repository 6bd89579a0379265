package transport

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	amazonsns "github.com/aws/aws-sdk-go-v2/service/sns"
	amazonsqs "github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/drblury/qbroker/internal/runtime/config"
	errspkg "github.com/drblury/qbroker/internal/runtime/errors"
	"github.com/drblury/qbroker/internal/runtime/logging"
)

var (
	AWSDefaultConfigLoader = awsconfig.LoadDefaultConfig
	SQSAPIFactory          = func(cfg aws.Config, optFns ...func(*amazonsqs.Options)) SQSAPI {
		return amazonsqs.NewFromConfig(cfg, optFns...)
	}
	SNSAPIFactory = func(cfg aws.Config, optFns ...func(*amazonsns.Options)) SNSAPI {
		return amazonsns.NewFromConfig(cfg, optFns...)
	}
)

// NewSQSClientFromConfig loads the AWS configuration described by conf and
// returns an SQSClient with SNS publishing enabled.
func NewSQSClientFromConfig(ctx context.Context, conf *config.Config, logger logging.ServiceLogger) (*SQSClient, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if logger == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	if err := conf.Validate(); err != nil {
		return nil, errspkg.NewConfigValidationError(err)
	}

	cfg, err := createAWSConfig(ctx, conf, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Created AWS config", logging.LogFields{
		"region":          cfg.Region,
		"custom_endpoint": hasCustomEndpoint(cfg),
	})

	var sqsOpts []func(*amazonsqs.Options)
	var snsOpts []func(*amazonsns.Options)
	if hasCustomEndpoint(cfg) {
		endpoint := aws.ToString(cfg.BaseEndpoint)
		sqsOpts = append(sqsOpts, func(o *amazonsqs.Options) { o.BaseEndpoint = aws.String(endpoint) })
		snsOpts = append(snsOpts, func(o *amazonsns.Options) { o.BaseEndpoint = aws.String(endpoint) })
	}

	return NewSQSClient(SQSAPIFactory(*cfg, sqsOpts...), SNSAPIFactory(*cfg, snsOpts...))
}

func createAWSConfig(ctx context.Context, conf *config.Config, logger logging.ServiceLogger) (*aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if conf.AWSRegion != "" {
		logger.Debug("Setting AWS region from config", logging.LogFields{"region": conf.AWSRegion})
		opts = append(opts, awsconfig.WithRegion(conf.AWSRegion))
	}
	if conf.AWSAccessKeyID != "" && conf.AWSSecretAccessKey != "" {
		logger.Debug("Using static AWS credentials from config", nil)
		opts = append(opts, awsconfig.WithCredentialsProvider(staticCredentialsProvider(conf.AWSAccessKeyID, conf.AWSSecretAccessKey)))
	}

	cfg, err := AWSDefaultConfigLoader(ctx, opts...)
	if err != nil {
		fields := logging.LogFields{}
		if conf.AWSRegion != "" {
			fields["requested_region"] = conf.AWSRegion
		}
		logger.Error("Failed to load AWS default config", err, fields)
		return nil, err
	}
	// Loaders replaced in tests may ignore the options.
	if conf.AWSRegion != "" {
		cfg.Region = conf.AWSRegion
	}
	if conf.AWSEndpoint != "" {
		cfg.BaseEndpoint = aws.String(conf.AWSEndpoint)
	}

	return &cfg, nil
}

func hasCustomEndpoint(cfg *aws.Config) bool {
	return cfg != nil && cfg.BaseEndpoint != nil && *cfg.BaseEndpoint != ""
}

func staticCredentialsProvider(accessKeyID, secretAccessKey string) aws.CredentialsProvider {
	return aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
		return aws.Credentials{
			AccessKeyID:     accessKeyID,
			SecretAccessKey: secretAccessKey,
		}, nil
	})
}
