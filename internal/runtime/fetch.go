package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	configpkg "github.com/drblury/qbroker/internal/runtime/config"
	"github.com/drblury/qbroker/internal/runtime/envelope"
	errspkg "github.com/drblury/qbroker/internal/runtime/errors"
	"github.com/drblury/qbroker/internal/runtime/ids"
	loggingpkg "github.com/drblury/qbroker/internal/runtime/logging"
	transportpkg "github.com/drblury/qbroker/internal/runtime/transport"
	"github.com/drblury/qbroker/internal/runtime/version"
)

// cycle carries the state shared by every message of one Fetch call.
type cycle struct {
	id       string
	settings configpkg.Settings
	keys     envelope.AttributeKeys
	log      loggingpkg.ServiceLogger
}

// Fetch receives batches from the configured queue and dispatches every
// message in order. With FetchUntilEmpty it keeps receiving until a batch
// comes back empty. Failed receives, failures inside a processor's Error
// stage and failed deletes on the error path abort the call.
func (b *Broker) Fetch(ctx context.Context) (err error) {
	if !b.fetching.CompareAndSwap(false, true) {
		return errspkg.ErrFetchInProgress
	}
	defer b.fetching.Store(false)

	b.registry.freeze()

	settings := b.Settings()
	if err := settings.RequireQueueURL(); err != nil {
		return err
	}

	c := &cycle{
		id:       ids.NewCycleID(),
		settings: settings,
		keys:     envelope.AttributeKeys{Name: settings.NameAttributeKey(), Version: settings.VersionAttributeKey()},
	}
	c.log = b.Logger.With(loggingpkg.LogFields{
		"cycle_id":  c.id,
		"queue_url": settings.QueueURL(),
	})

	ctx, span := b.tracer.Start(ctx, "qbroker.fetch", trace.WithAttributes(
		attribute.String("qbroker.cycle_id", c.id),
		attribute.String("messaging.destination.name", settings.QueueURL()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		b.metrics.recordFetch(err)
	}()

	for batches := 0; ; batches++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		c.log.Debug("Fetching queue messages.", nil)
		batch, err := b.client.Receive(ctx, transportpkg.ReceiveRequest{
			QueueURL:          settings.QueueURL(),
			MaxMessages:       settings.MaxMessages(),
			WaitTimeSeconds:   settings.WaitTimeSeconds(),
			VisibilityTimeout: settings.VisibilityTimeout(),
		})
		if err != nil {
			c.log.Error("Failed to receive queue messages", err, nil)
			return fmt.Errorf("qbroker: receive messages: %w", err)
		}
		if len(batch) == 0 {
			c.log.Debug("No messages received.", loggingpkg.LogFields{"batches": batches})
			return nil
		}

		b.metrics.recordReceived(settings.QueueURL(), len(batch))
		c.log.Info("Processing messages.", loggingpkg.LogFields{"count": len(batch)})
		span.AddEvent("batch", trace.WithAttributes(attribute.Int("qbroker.batch_size", len(batch))))

		for _, raw := range batch {
			if err := b.dispatch(ctx, c, raw); err != nil {
				return err
			}
		}

		if !settings.FetchUntilEmpty() {
			return nil
		}
	}
}

// dispatch runs one raw message through parsing, the version check and its
// processor. Only fatal errors are returned.
func (b *Broker) dispatch(ctx context.Context, c *cycle, raw transportpkg.Message) error {
	msg, err := envelope.Parse(raw, c.keys)
	if err != nil {
		b.metrics.recordSkipped("malformed")
		c.log.Warn("Skipping malformed message.", loggingpkg.LogFields{
			"message_id": raw.ID,
			"error":      err.Error(),
		})
		return nil
	}

	log := c.log.With(loggingpkg.LogFields{
		"message_id":   msg.ID(),
		"message_name": msg.Name(),
	})
	log.Info("Processing message.", nil)

	b.checkVersion(log, msg)

	reg, ok := b.registry.lookup(msg.Name())
	if !ok {
		b.metrics.recordSkipped("unregistered")
		log.Warn("No processor registered for message, skipping.", nil)
		return nil
	}
	lc, err := reg.newLifecycle()
	if err != nil {
		return fmt.Errorf("qbroker: build processor for %q: %w", msg.Name(), err)
	}

	ctx, span := b.tracer.Start(ctx, "qbroker.process", trace.WithAttributes(
		attribute.String("messaging.message.id", msg.ID()),
		attribute.String("qbroker.message_name", msg.Name()),
		attribute.String("qbroker.message_version", msg.Version()),
		attribute.String("qbroker.codec", reg.codecName()),
	))
	defer span.End()

	mctx := MessageContext{
		Name:       msg.Name(),
		Version:    msg.Version(),
		Queue:      c.settings.QueueURL(),
		MessageID:  msg.ID(),
		CycleID:    c.id,
		Attributes: msg.Attributes(),
		Context:    ctx,
		StartedAt:  time.Now(),
	}
	b.hooks.start(mctx)

	outcome, failure, fatal := b.runLifecycle(ctx, c, log, msg, lc)

	mctx.Duration = time.Since(mctx.StartedAt)
	mctx.Outcome = outcome
	b.metrics.recordProcessed(msg.Name(), outcome, mctx.Duration)
	span.SetAttributes(attribute.String("qbroker.outcome", string(outcome)))
	if failure != nil {
		span.RecordError(failure)
		span.SetStatus(codes.Error, failure.Error())
	}
	b.hooks.finish(mctx, failure)

	return fatal
}

// checkVersion warns when the producer version differs from the library
// version. It never affects dispatch.
func (b *Broker) checkVersion(log loggingpkg.ServiceLogger, msg *envelope.Envelope) {
	fields := loggingpkg.LogFields{
		"message_version": msg.Version(),
		"library_version": version.Library,
	}

	cmp, err := version.CompareToLibrary(msg.Version())
	switch {
	case err != nil:
		b.metrics.recordVersionMismatch("unparseable")
		fields["error"] = err.Error()
		log.Warn("Message version is not a valid semantic version.", fields)
	case cmp < 0:
		b.metrics.recordVersionMismatch("older")
		log.Warn("Message was produced by an older library version.", fields)
	case cmp > 0:
		b.metrics.recordVersionMismatch("newer")
		log.Warn("Message was produced by a newer library version.", fields)
	}
}

// runLifecycle drives one processor. failure is the stage error handed to
// the Error stage, fatal is non-nil when the fetch must stop.
func (b *Broker) runLifecycle(ctx context.Context, c *cycle, log loggingpkg.ServiceLogger, msg *envelope.Envelope, lc lifecycle) (outcome Outcome, failure, fatal error) {
	outcome = OutcomeSuccess
	failure = func() error {
		log.Debug("Executing processor message received.", nil)
		if err := runStage(StageReceived, func() error { return lc.received(ctx, msg) }); err != nil {
			return err
		}

		if err := runStage(StageDecode, func() error { return lc.decode(msg) }); err != nil {
			return err
		}

		log.Debug("Executing processor message validation.", nil)
		var valid bool
		if err := runStage(StageValidate, func() (err error) {
			valid, err = lc.validate(ctx, msg)
			return err
		}); err != nil {
			return err
		}
		if !valid {
			outcome = OutcomeInvalid
			log.Info("Message is invalid.", nil)
			if c.settings.DeleteOnInvalid() {
				if err := b.Delete(ctx, msg); err != nil {
					return &StageError{Stage: StageDelete, Err: err}
				}
			}
			return nil
		}

		log.Debug("Executing processor message processing.", nil)
		var reply *Reply
		if err := runStage(StageProcess, func() (err error) {
			reply, err = lc.process(ctx, msg)
			return err
		}); err != nil {
			return err
		}

		if reply != nil && reply.Destination != "" {
			if _, err := b.Send(ctx, reply.Message, reply.Destination); err != nil {
				return &StageError{Stage: StageReply, Err: err}
			}
			b.metrics.recordReply(msg.Name())
		}

		if c.settings.DeleteOnSuccess() {
			if err := b.Delete(ctx, msg); err != nil {
				return &StageError{Stage: StageDelete, Err: err}
			}
		}
		return nil
	}()
	if failure == nil {
		return outcome, nil, nil
	}

	outcome = OutcomeError
	log.Error("Message processing failed.", failure, nil)

	log.Debug("Executing processor message error.", nil)
	if err := runErrorStage(ctx, msg, lc, failure); err != nil {
		return outcome, failure, fmt.Errorf("qbroker: error stage for message %s: %w", msg.ID(), err)
	}

	if c.settings.DeleteOnError() {
		if err := b.Delete(ctx, msg); err != nil {
			log.Error("Failed to delete message after processing error.", err, nil)
			return outcome, failure, fmt.Errorf("qbroker: delete message %s after error: %w", msg.ID(), errors.Join(err, failure))
		}
	}
	return outcome, failure, nil
}

// runErrorStage converts a panic inside Error into an error so the fetch
// can return it.
func runErrorStage(ctx context.Context, msg *envelope.Envelope, lc lifecycle, reason error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return lc.fail(ctx, msg, reason)
}
