package runtime

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/drblury/qbroker/internal/runtime/codec"
	"github.com/drblury/qbroker/internal/runtime/envelope"
	errspkg "github.com/drblury/qbroker/internal/runtime/errors"
	loggingpkg "github.com/drblury/qbroker/internal/runtime/logging"
)

// RegisterOption customises a single registration.
type RegisterOption func(*registrationOptions)

type registrationOptions struct {
	codec codec.Codec
}

// WithCodec decodes message bodies with c instead of the default JSON codec.
func WithCodec(c codec.Codec) RegisterOption {
	return func(o *registrationOptions) {
		if c != nil {
			o.codec = c
		}
	}
}

// lifecycle is the type-erased view of one Processor instance bound to a
// single message.
type lifecycle interface {
	received(ctx context.Context, msg *envelope.Envelope) error
	decode(msg *envelope.Envelope) error
	validate(ctx context.Context, msg *envelope.Envelope) (bool, error)
	process(ctx context.Context, msg *envelope.Envelope) (*Reply, error)
	fail(ctx context.Context, msg *envelope.Envelope, reason error) error
}

type registration interface {
	newLifecycle() (lifecycle, error)
	codecName() string
}

type typedRegistration[T any] struct {
	factory func() Processor[T]
	codec   codec.Codec
}

func (r typedRegistration[T]) newLifecycle() (lifecycle, error) {
	p := r.factory()
	if p == nil {
		return nil, errspkg.ErrProcessorRequired
	}
	return &typedLifecycle[T]{processor: p, codec: r.codec}, nil
}

func (r typedRegistration[T]) codecName() string {
	return r.codec.Name()
}

type typedLifecycle[T any] struct {
	processor Processor[T]
	codec     codec.Codec
	body      *T
	model     *T
}

func (l *typedLifecycle[T]) received(ctx context.Context, msg *envelope.Envelope) error {
	return l.processor.Received(ctx, msg)
}

func (l *typedLifecycle[T]) decode(msg *envelope.Envelope) error {
	body := new(T)
	if err := l.codec.Unmarshal([]byte(msg.Body()), body); err != nil {
		return err
	}
	l.body = body
	return nil
}

func (l *typedLifecycle[T]) validate(ctx context.Context, msg *envelope.Envelope) (bool, error) {
	model, err := l.processor.Validate(ctx, msg, l.body)
	if err != nil {
		return false, err
	}
	l.model = model
	return model != nil, nil
}

func (l *typedLifecycle[T]) process(ctx context.Context, msg *envelope.Envelope) (*Reply, error) {
	return l.processor.Process(ctx, msg, l.model)
}

func (l *typedLifecycle[T]) fail(ctx context.Context, msg *envelope.Envelope, reason error) error {
	return l.processor.Error(ctx, msg, reason)
}

// registry maps message names to processor registrations. It rejects
// changes once frozen.
type registry struct {
	mu      sync.RWMutex
	entries map[string]registration
	frozen  bool
}

func newRegistry() *registry {
	return &registry{entries: make(map[string]registration)}
}

func (r *registry) add(name string, reg registration) error {
	if name == "" {
		return errspkg.ErrMessageNameRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return errspkg.ErrRegistryFrozen
	}
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("%w: %q", errspkg.ErrDuplicateMessageName, name)
	}
	r.entries[name] = reg
	return nil
}

func (r *registry) lookup(name string) (registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.entries[name]
	return reg, ok
}

func (r *registry) freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

func (r *registry) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register binds name to a processor factory on b. The factory is called once
// per received message. Registration must happen before the first Fetch.
func Register[T any](b *Broker, name string, factory func() Processor[T], opts ...RegisterOption) error {
	if b == nil {
		return errspkg.ErrBrokerRequired
	}
	if factory == nil {
		return errspkg.ErrProcessorFactoryRequired
	}

	options := registrationOptions{codec: codec.JSON}
	for _, opt := range opts {
		opt(&options)
	}

	if err := b.registry.add(name, typedRegistration[T]{factory: factory, codec: options.codec}); err != nil {
		return err
	}
	b.Logger.Debug("Registered processor", loggingpkg.LogFields{
		"message_name": name,
		"codec":        options.codec.Name(),
	})
	return nil
}
