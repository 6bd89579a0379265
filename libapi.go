package qbroker

import (
	"context"

	runtimepkg "github.com/drblury/qbroker/internal/runtime"
	codecpkg "github.com/drblury/qbroker/internal/runtime/codec"
	configpkg "github.com/drblury/qbroker/internal/runtime/config"
	envelopepkg "github.com/drblury/qbroker/internal/runtime/envelope"
	errspkg "github.com/drblury/qbroker/internal/runtime/errors"
	loggingpkg "github.com/drblury/qbroker/internal/runtime/logging"
	metadatapkg "github.com/drblury/qbroker/internal/runtime/metadata"
	transportpkg "github.com/drblury/qbroker/internal/runtime/transport"
	versionpkg "github.com/drblury/qbroker/internal/runtime/version"
)

// LibraryVersion is written to the version attribute of every message built
// with NewMessage.
const LibraryVersion = versionpkg.Library

const (
	DefaultNameAttributeKey    = envelopepkg.DefaultNameKey
	DefaultVersionAttributeKey = envelopepkg.DefaultVersionKey
)

type (
	Broker             = runtimepkg.Broker
	BrokerDependencies = runtimepkg.BrokerDependencies
	BrokerMetrics      = runtimepkg.BrokerMetrics

	Processor[T any]      = runtimepkg.Processor[T]
	ProcessorFuncs[T any] = runtimepkg.ProcessorFuncs[T]
	Reply                 = runtimepkg.Reply
	RegisterOption        = runtimepkg.RegisterOption
	Stage                 = runtimepkg.Stage
	StageError            = runtimepkg.StageError
	PanicError            = runtimepkg.PanicError

	MessageContext = runtimepkg.MessageContext
	MessageHooks   = runtimepkg.MessageHooks
	Outcome        = runtimepkg.Outcome

	Envelope               = envelopepkg.Envelope
	AttributeKeys          = envelopepkg.AttributeKeys
	Attribute              = envelopepkg.Attribute
	MalformedEnvelopeError = envelopepkg.MalformedEnvelopeError

	Settings      = configpkg.Settings
	Config        = configpkg.Config
	ConfigFile    = configpkg.File
	BrokerSection = configpkg.BrokerSection

	Client         = transportpkg.Client
	Message        = transportpkg.Message
	ReceiveRequest = transportpkg.ReceiveRequest
	SQSClient      = transportpkg.SQSClient
	SQSAPI         = transportpkg.SQSAPI
	SNSAPI         = transportpkg.SNSAPI
	MemoryClient   = transportpkg.MemoryClient

	Codec = codecpkg.Codec

	Metadata = metadatapkg.Metadata

	LogFields                 = loggingpkg.LogFields
	ServiceLogger             = loggingpkg.ServiceLogger
	EntryLogger               = loggingpkg.EntryLogger
	EntryLoggerAdapter[T any] = loggingpkg.EntryLoggerAdapter[T]

	ConfigValidationError = errspkg.ConfigValidationError
	TransportError        = errspkg.TransportError
)

const (
	StageReceived = runtimepkg.StageReceived
	StageDecode   = runtimepkg.StageDecode
	StageValidate = runtimepkg.StageValidate
	StageProcess  = runtimepkg.StageProcess
	StageReply    = runtimepkg.StageReply
	StageDelete   = runtimepkg.StageDelete

	OutcomeSuccess = runtimepkg.OutcomeSuccess
	OutcomeInvalid = runtimepkg.OutcomeInvalid
	OutcomeError   = runtimepkg.OutcomeError
)

var (
	NewBroker        = runtimepkg.NewBroker
	NewBrokerMetrics = runtimepkg.NewBrokerMetrics
	WithCodec        = runtimepkg.WithCodec

	LoggingHooks  = runtimepkg.LoggingHooks
	AlertingHooks = runtimepkg.AlertingHooks

	ParseEnvelope        = envelopepkg.Parse
	Attr                 = envelopepkg.Attr
	DefaultAttributeKeys = envelopepkg.DefaultAttributeKeys

	DefaultSettings = configpkg.DefaultSettings
	ValidateConfig  = configpkg.ValidateConfig
	LoadConfig      = configpkg.Load
	ParseConfig     = configpkg.Parse

	NewSQSClient    = transportpkg.NewSQSClient
	NewMemoryClient = transportpkg.NewMemoryClient

	JSONCodec      = codecpkg.JSON
	ProtoJSONCodec = codecpkg.ProtoJSON
	Marshal        = codecpkg.Marshal

	CompareVersions = versionpkg.Compare

	ErrBrokerRequired           = errspkg.ErrBrokerRequired
	ErrClientRequired           = errspkg.ErrClientRequired
	ErrQueueURLRequired         = errspkg.ErrQueueURLRequired
	ErrMessageNameRequired      = errspkg.ErrMessageNameRequired
	ErrProcessorFactoryRequired = errspkg.ErrProcessorFactoryRequired
	ErrProcessorRequired        = errspkg.ErrProcessorRequired
	ErrDuplicateMessageName     = errspkg.ErrDuplicateMessageName
	ErrRegistryFrozen           = errspkg.ErrRegistryFrozen
	ErrFetchInProgress          = errspkg.ErrFetchInProgress
	ErrSettingsRequired         = errspkg.ErrSettingsRequired
	ErrConfigRequired           = errspkg.ErrConfigRequired
	ErrLoggerRequired           = errspkg.ErrLoggerRequired
	ErrMessageRequired          = errspkg.ErrMessageRequired
	ErrDestinationRequired      = errspkg.ErrDestinationRequired
	ErrMalformedEnvelope        = envelopepkg.ErrMalformedEnvelope
	IsTransportError            = errspkg.IsTransportError

	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger
	NewNopServiceLogger       = loggingpkg.NewNopServiceLogger
)

// Register binds name to a processor factory on broker. The factory runs once
// per received message.
func Register[T any](broker *Broker, name string, factory func() Processor[T], opts ...RegisterOption) error {
	return runtimepkg.Register(broker, name, factory, opts...)
}

// RegisterFuncs registers a processor built from plain functions.
func RegisterFuncs[T any](broker *Broker, name string, funcs ProcessorFuncs[T], opts ...RegisterOption) error {
	return runtimepkg.Register(broker, name, func() Processor[T] { return funcs }, opts...)
}

// NewEntryServiceLogger wraps an entry style logger (for example a
// logrus.Entry).
func NewEntryServiceLogger[T EntryLoggerAdapter[T]](entry T) ServiceLogger {
	return loggingpkg.NewEntryServiceLogger(entry)
}

// NewMessage builds an outgoing envelope with the default attribute keys.
// Use Broker.NewMessage when the broker is configured with custom keys.
func NewMessage(name, body string, attrs ...Attribute) *Envelope {
	return envelopepkg.New(envelopepkg.DefaultAttributeKeys(), name, body, attrs...)
}

// NewJSONMessage marshals v with the default JSON codec and wraps it in an
// outgoing envelope.
func NewJSONMessage(name string, v any, attrs ...Attribute) (*Envelope, error) {
	body, err := codecpkg.Marshal(v)
	if err != nil {
		return nil, err
	}
	return NewMessage(name, body, attrs...), nil
}

// NewMetadata builds Metadata from alternating key/value pairs.
func NewMetadata(pairs ...string) Metadata {
	return metadatapkg.New(pairs...)
}

// NewSQSClientFromConfig loads AWS configuration for conf and returns an
// SQS client with SNS reply publishing.
func NewSQSClientFromConfig(ctx context.Context, conf *Config, logger ServiceLogger) (*SQSClient, error) {
	return transportpkg.NewSQSClientFromConfig(ctx, conf, logger)
}
