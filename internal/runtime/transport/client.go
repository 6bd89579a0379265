// Package transport moves raw messages between the broker and a queue
// service. SQSClient talks to Amazon SQS (and SNS for topic replies);
// MemoryClient keeps everything in process for tests and examples.
package transport

import (
	"context"

	"github.com/drblury/qbroker/internal/runtime/metadata"
)

// Message is a raw queue message as delivered by the queue service.
type Message struct {
	ID            string
	ReceiptHandle string
	Body          string
	Attributes    metadata.Metadata
}

// ReceiveRequest describes a single receive call.
type ReceiveRequest struct {
	QueueURL        string
	MaxMessages     int
	WaitTimeSeconds int
	// VisibilityTimeout overrides the queue default when positive.
	VisibilityTimeout int
}

// Client is the queue service contract the broker depends on. Receive must
// request every message attribute. Implementations report failed calls as
// *errors.TransportError.
type Client interface {
	Receive(ctx context.Context, req ReceiveRequest) ([]Message, error)
	Send(ctx context.Context, destination, body string, attrs metadata.Metadata) (string, error)
	Delete(ctx context.Context, queueURL, receiptHandle string) error
}
