package runtime

import (
	"context"
	"time"

	"github.com/drblury/qbroker/internal/runtime/metadata"
)

// Outcome is how the lifecycle of a dispatched message ended.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeInvalid Outcome = "invalid"
	OutcomeError   Outcome = "error"
)

// MessageContext provides information about a dispatched message to hooks.
type MessageContext struct {
	// Name is the message name the processor was looked up by.
	Name string
	// Version is the producer version found on the message.
	Version string
	// Queue is the queue url the message was received from.
	Queue string
	// MessageID is the transport assigned message id.
	MessageID string
	// CycleID identifies the fetch call that received the message.
	CycleID string
	// Attributes is a copy of the message attributes.
	Attributes metadata.Metadata
	// Context is the context passed to the processor stages.
	Context context.Context
	// StartedAt is when the lifecycle began.
	StartedAt time.Time
	// Duration is only set in OnMessageDone and OnMessageError.
	Duration time.Duration
	// Outcome is only set in OnMessageDone and OnMessageError.
	Outcome Outcome
}

// MessageHooks defines callbacks around each dispatched message.
// All hooks are optional - nil hooks are simply not called. Messages that are
// malformed or have no registered processor never reach the hooks.
type MessageHooks struct {
	// OnMessageStart is called before Received.
	OnMessageStart func(ctx MessageContext)

	// OnMessageDone is called when the message ended as success or invalid.
	OnMessageDone func(ctx MessageContext)

	// OnMessageError is called after the Error stage with the stage failure.
	OnMessageError func(ctx MessageContext, err error)
}

// Merge combines two MessageHooks, creating a new MessageHooks that calls both.
// The hooks from 'other' are called after the hooks from 'h'.
func (h MessageHooks) Merge(other MessageHooks) MessageHooks {
	return MessageHooks{
		OnMessageStart: chainHooks(h.OnMessageStart, other.OnMessageStart),
		OnMessageDone:  chainHooks(h.OnMessageDone, other.OnMessageDone),
		OnMessageError: chainErrorHooks(h.OnMessageError, other.OnMessageError),
	}
}

func chainHooks(a, b func(MessageContext)) func(MessageContext) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx MessageContext) {
		a(ctx)
		b(ctx)
	}
}

func chainErrorHooks(a, b func(MessageContext, error)) func(MessageContext, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx MessageContext, err error) {
		a(ctx, err)
		b(ctx, err)
	}
}

func (h MessageHooks) start(ctx MessageContext) {
	if h.OnMessageStart != nil {
		h.OnMessageStart(ctx)
	}
}

func (h MessageHooks) finish(ctx MessageContext, err error) {
	if err != nil {
		if h.OnMessageError != nil {
			h.OnMessageError(ctx, err)
		}
		return
	}
	if h.OnMessageDone != nil {
		h.OnMessageDone(ctx)
	}
}

// LoggingHooks returns pre-built hooks that log message lifecycle events.
func LoggingHooks(logger interface {
	Info(msg string, fields map[string]any)
	Error(msg string, err error, fields map[string]any)
}) MessageHooks {
	return MessageHooks{
		OnMessageStart: func(ctx MessageContext) {
			logger.Info("Message started", map[string]any{
				"message_name": ctx.Name,
				"queue_url":    ctx.Queue,
				"message_id":   ctx.MessageID,
			})
		},
		OnMessageDone: func(ctx MessageContext) {
			logger.Info("Message completed", map[string]any{
				"message_name": ctx.Name,
				"queue_url":    ctx.Queue,
				"message_id":   ctx.MessageID,
				"outcome":      string(ctx.Outcome),
				"duration_ms":  ctx.Duration.Milliseconds(),
			})
		},
		OnMessageError: func(ctx MessageContext, err error) {
			logger.Error("Message failed", err, map[string]any{
				"message_name": ctx.Name,
				"queue_url":    ctx.Queue,
				"message_id":   ctx.MessageID,
				"duration_ms":  ctx.Duration.Milliseconds(),
			})
		},
	}
}

// AlertingHooks returns pre-built hooks that trigger alerts on message errors.
func AlertingHooks(alertFunc func(ctx MessageContext, err error)) MessageHooks {
	return MessageHooks{
		OnMessageError: alertFunc,
	}
}
