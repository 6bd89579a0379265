package runtime

import (
	"context"
	"fmt"

	"github.com/drblury/qbroker/internal/runtime/envelope"
)

// Processor handles one message type through four stages. The broker builds
// a fresh Processor for every message, so implementations may keep
// per-message state in fields.
//
// Received is always called first. Validate receives the decoded body and
// returns the model to process, or nil to mark the message invalid. Process
// runs the business logic and may return a Reply to send. Error is called
// only when one of the earlier stages failed; an error returned from Error
// aborts the whole fetch.
type Processor[T any] interface {
	Received(ctx context.Context, msg *envelope.Envelope) error
	Validate(ctx context.Context, msg *envelope.Envelope, body *T) (*T, error)
	Process(ctx context.Context, msg *envelope.Envelope, model *T) (*Reply, error)
	Error(ctx context.Context, msg *envelope.Envelope, reason error) error
}

// Reply is a message a processor asks the broker to send after a
// successful Process. Replies without a destination are dropped.
type Reply struct {
	Message     *envelope.Envelope
	Destination string
}

// ProcessorFuncs adapts plain functions to Processor. Nil Received and Error
// do nothing, a nil Validate passes the body through and a nil Process
// returns no reply.
type ProcessorFuncs[T any] struct {
	OnReceived func(ctx context.Context, msg *envelope.Envelope) error
	OnValidate func(ctx context.Context, msg *envelope.Envelope, body *T) (*T, error)
	OnProcess  func(ctx context.Context, msg *envelope.Envelope, model *T) (*Reply, error)
	OnError    func(ctx context.Context, msg *envelope.Envelope, reason error) error
}

func (f ProcessorFuncs[T]) Received(ctx context.Context, msg *envelope.Envelope) error {
	if f.OnReceived == nil {
		return nil
	}
	return f.OnReceived(ctx, msg)
}

func (f ProcessorFuncs[T]) Validate(ctx context.Context, msg *envelope.Envelope, body *T) (*T, error) {
	if f.OnValidate == nil {
		return body, nil
	}
	return f.OnValidate(ctx, msg, body)
}

func (f ProcessorFuncs[T]) Process(ctx context.Context, msg *envelope.Envelope, model *T) (*Reply, error) {
	if f.OnProcess == nil {
		return nil, nil
	}
	return f.OnProcess(ctx, msg, model)
}

func (f ProcessorFuncs[T]) Error(ctx context.Context, msg *envelope.Envelope, reason error) error {
	if f.OnError == nil {
		return nil
	}
	return f.OnError(ctx, msg, reason)
}

// Stage names the lifecycle step a failure came from.
type Stage string

const (
	StageReceived Stage = "received"
	StageDecode   Stage = "decode"
	StageValidate Stage = "validate"
	StageProcess  Stage = "process"
	StageReply    Stage = "reply"
	StageDelete   Stage = "delete"
)

// StageError is the reason handed to Processor.Error.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("qbroker: %s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// PanicError carries a value recovered from a panicking stage.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// runStage calls fn and wraps its error, or a recovered panic, in a
// StageError.
func runStage(stage Stage, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &StageError{Stage: stage, Err: &PanicError{Value: r}}
		}
	}()
	if err := fn(); err != nil {
		return &StageError{Stage: stage, Err: err}
	}
	return nil
}
