// Package qbroker polls an Amazon SQS queue and dispatches each message to a
// processor chosen by the message name attribute. Every message carries a
// name and the library version that produced it; messages missing either
// are skipped and left on the queue.
//
// A processor implements four stages. Received observes the raw message,
// Validate gets the decoded body and may reject it by returning nil, Process
// runs the business logic and may return a Reply for the broker to send, and
// Error is called only when one of the earlier stages failed. The broker
// builds a fresh processor for every message and handles messages one at a
// time in queue order.
//
// After a message is handled it is deleted according to the broker
// settings: DeleteOnSuccess, DeleteOnInvalid and DeleteOnError are
// independent and all default to true. A failed receive, a failure returned
// from a processor's Error stage, or a failed delete on the error path stops
// Fetch and is returned to the caller.
//
// A minimal setup creates a client (NewSQSClientFromConfig or
// NewMemoryClient), a Broker, configures it with Setup, registers
// processors and calls Fetch:
//
//	broker, _ := qbroker.NewBroker(client, logger, qbroker.BrokerDependencies{})
//	_ = broker.Setup(func(s *qbroker.Settings) error {
//		return s.SetQueueURL(queueURL)
//	})
//	_ = qbroker.Register(broker, "OrderCreated", newOrderProcessor)
//	err := broker.Fetch(ctx)
//
// # Observability
//
// BrokerDependencies accepts Prometheus metrics (NewBrokerMetrics), an
// OpenTelemetry tracer provider and MessageHooks. Logging goes through the
// ServiceLogger injected at construction; NewNopServiceLogger silences it.
package qbroker
