/*
Package runtime provides the queue polling and dispatch core for qbroker.

# Architecture Overview

A Broker owns one queue. Fetch receives batches through a transport.Client,
turns each raw message into an envelope.Envelope and hands it to the
Processor registered for the message name. Messages are handled one at a
time, in the order the queue returned them.

# Package Structure

## Broker (broker.go, fetch.go)

The Broker struct wires together:
  - The queue client (SQS or in-memory)
  - Settings applied through Setup
  - The processor registry
  - Optional Prometheus metrics, OpenTelemetry tracing and message hooks

## Processors (processor.go, registry.go)

Processors implement four stages: Received, Validate, Process and Error.
Register binds a message name to a factory; the factory runs once per
message. Bodies are decoded with the JSON codec unless WithCodec selects
another one.

## Delete policy

After a message is dispatched the broker deletes it according to the
DeleteOnSuccess, DeleteOnInvalid and DeleteOnError settings. Malformed
messages and messages without a registered processor are left on the queue.

## Hooks & Metrics (hooks.go, metrics.go)

MessageHooks observe each dispatched message. BrokerMetrics counts received,
skipped, processed and deleted messages.

# Sub-packages

  - config/: Broker settings, AWS configuration and YAML loading
  - envelope/: Envelope parsing and outgoing message construction
  - errors/: Sentinel errors and error types
  - codec/: Body codecs (sonic JSON, protojson)
  - ids/: ULID generation for fetch cycle ids
  - logging/: Logger interface and adapters
  - metadata/: Message attribute helpers
  - transport/: Queue clients (SQS, in-memory)
  - version/: Library version and semantic version comparison

# Usage Example

	client := transport.NewMemoryClient()
	broker, _ := runtime.NewBroker(client, logger, runtime.BrokerDependencies{})

	_ = broker.Setup(func(s *config.Settings) error {
		return s.SetQueueURL("orders")
	})

	_ = runtime.Register(broker, "OrderCreated", func() runtime.Processor[Order] {
		return &orderProcessor{}
	})

	err := broker.Fetch(ctx)
*/
package runtime
