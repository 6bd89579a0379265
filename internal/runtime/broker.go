package runtime

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	configpkg "github.com/drblury/qbroker/internal/runtime/config"
	"github.com/drblury/qbroker/internal/runtime/envelope"
	errspkg "github.com/drblury/qbroker/internal/runtime/errors"
	loggingpkg "github.com/drblury/qbroker/internal/runtime/logging"
	transportpkg "github.com/drblury/qbroker/internal/runtime/transport"
)

const tracerName = "github.com/drblury/qbroker"

// BrokerDependencies holds the optional collaborators a Broker can use.
// Leave fields nil to skip the related feature.
type BrokerDependencies struct {
	Metrics        *BrokerMetrics
	TracerProvider trace.TracerProvider // Defaults to the global otel provider.
	Hooks          MessageHooks
}

// Broker polls one queue and dispatches each message to the processor
// registered for its name. A Broker runs at most one Fetch at a time.
type Broker struct {
	Logger loggingpkg.ServiceLogger

	client   transportpkg.Client
	registry *registry
	metrics  *BrokerMetrics
	tracer   trace.Tracer
	hooks    MessageHooks

	settingsMu sync.RWMutex
	settings   configpkg.Settings

	fetching atomic.Bool
}

// NewBroker constructs a Broker with default settings. Configure it with
// Setup and register processors before calling Fetch.
func NewBroker(client transportpkg.Client, log loggingpkg.ServiceLogger, deps BrokerDependencies) (*Broker, error) {
	if client == nil {
		return nil, errspkg.ErrClientRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}

	provider := deps.TracerProvider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	if deps.Metrics != nil {
		if err := deps.Metrics.Register(); err != nil {
			return nil, fmt.Errorf("qbroker: register metrics: %w", err)
		}
	}

	return &Broker{
		Logger:   log,
		client:   client,
		registry: newRegistry(),
		metrics:  deps.Metrics,
		tracer:   provider.Tracer(tracerName),
		hooks:    deps.Hooks,
		settings: configpkg.DefaultSettings(),
	}, nil
}

// Setup applies mutator to a fresh copy of the default settings and commits
// the result only if it succeeds.
func (b *Broker) Setup(mutator func(*configpkg.Settings) error) error {
	if mutator == nil {
		return errspkg.ErrSettingsRequired
	}
	if b.fetching.Load() {
		return errspkg.ErrFetchInProgress
	}

	next, err := configpkg.DefaultSettings().Apply(mutator)
	if err != nil {
		return err
	}

	b.settingsMu.Lock()
	b.settings = next
	b.settingsMu.Unlock()

	b.Logger.Debug("Broker configured", loggingpkg.LogFields{
		"queue_url":         next.QueueURL(),
		"max_messages":      next.MaxMessages(),
		"wait_time_seconds": next.WaitTimeSeconds(),
		"fetch_until_empty": next.FetchUntilEmpty(),
	})
	return nil
}

// Settings returns a snapshot of the current settings.
func (b *Broker) Settings() configpkg.Settings {
	b.settingsMu.RLock()
	defer b.settingsMu.RUnlock()
	return b.settings
}

// AttributeKeys returns the attribute keys used for message name and version.
func (b *Broker) AttributeKeys() envelope.AttributeKeys {
	s := b.Settings()
	return envelope.AttributeKeys{Name: s.NameAttributeKey(), Version: s.VersionAttributeKey()}
}

// RegisteredNames lists the registered message names in sorted order.
func (b *Broker) RegisteredNames() []string {
	return b.registry.names()
}

// NewMessage builds an outgoing envelope carrying the broker's name and
// version attribute keys.
func (b *Broker) NewMessage(name, body string, attrs ...envelope.Attribute) *envelope.Envelope {
	return envelope.New(b.AttributeKeys(), name, body, attrs...)
}

// Send delivers msg to destination, a queue url or SNS topic arn, and returns
// the id the queue service assigned.
func (b *Broker) Send(ctx context.Context, msg *envelope.Envelope, destination string) (string, error) {
	if msg == nil {
		return "", errspkg.ErrMessageRequired
	}
	if destination == "" {
		return "", errspkg.ErrDestinationRequired
	}

	id, err := b.client.Send(ctx, destination, msg.Body(), msg.Attributes())
	if err != nil {
		return "", err
	}
	b.Logger.Info("Sent message.", loggingpkg.LogFields{
		"message_id":   id,
		"message_name": msg.Name(),
		"destination":  destination,
	})
	return id, nil
}

// Delete removes msg from the configured queue using its receipt handle.
func (b *Broker) Delete(ctx context.Context, msg *envelope.Envelope) error {
	if msg == nil {
		return errspkg.ErrMessageRequired
	}
	queueURL := b.Settings().QueueURL()
	if queueURL == "" {
		return errspkg.ErrQueueURLRequired
	}

	if err := b.client.Delete(ctx, queueURL, msg.ReceiptHandle()); err != nil {
		return err
	}
	b.metrics.recordDeleted(queueURL)
	b.Logger.Info("Message deleted from queue.", loggingpkg.LogFields{"message_id": msg.ID()})
	return nil
}
