package transport

import (
	"context"
	"net/http"
	"sync"

	errspkg "github.com/drblury/qbroker/internal/runtime/errors"
	"github.com/drblury/qbroker/internal/runtime/ids"
	"github.com/drblury/qbroker/internal/runtime/metadata"
)

// MemoryClient is an in-process Client. Received messages stay in flight
// until deleted or made visible again with Redeliver.
type MemoryClient struct {
	mu     sync.Mutex
	queues map[string]*memoryQueue
}

type memoryQueue struct {
	visible  []Message
	inFlight map[string]Message
}

// NewMemoryClient returns an empty in-memory client. Queues are created on
// first use.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{queues: make(map[string]*memoryQueue)}
}

func (c *MemoryClient) queue(url string) *memoryQueue {
	q, ok := c.queues[url]
	if !ok {
		q = &memoryQueue{inFlight: make(map[string]Message)}
		c.queues[url] = q
	}
	return q
}

func (c *MemoryClient) Receive(ctx context.Context, req ReceiveRequest) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, &errspkg.TransportError{Op: "receive", Queue: req.QueueURL, Err: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	q := c.queue(req.QueueURL)
	n := min(req.MaxMessages, len(q.visible))
	if n <= 0 {
		return nil, nil
	}

	batch := make([]Message, 0, n)
	for _, msg := range q.visible[:n] {
		msg.ReceiptHandle = ids.New()
		q.inFlight[msg.ReceiptHandle] = msg
		msg.Attributes = msg.Attributes.Clone()
		batch = append(batch, msg)
	}
	q.visible = q.visible[n:]
	return batch, nil
}

func (c *MemoryClient) Send(ctx context.Context, destination, body string, attrs metadata.Metadata) (string, error) {
	if destination == "" {
		return "", errspkg.ErrDestinationRequired
	}
	if err := ctx.Err(); err != nil {
		return "", &errspkg.TransportError{Op: "send", Queue: destination, Err: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	msg := Message{ID: ids.New(), Body: body, Attributes: attrs.Clone()}
	q := c.queue(destination)
	q.visible = append(q.visible, msg)
	return msg.ID, nil
}

func (c *MemoryClient) Delete(ctx context.Context, queueURL, receiptHandle string) error {
	if err := ctx.Err(); err != nil {
		return &errspkg.TransportError{Op: "delete", Queue: queueURL, Err: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	q := c.queue(queueURL)
	if _, ok := q.inFlight[receiptHandle]; !ok {
		return &errspkg.TransportError{Op: "delete", Queue: queueURL, StatusCode: http.StatusBadRequest}
	}
	delete(q.inFlight, receiptHandle)
	return nil
}

// Redeliver makes every in-flight message on queueURL visible again, as if
// its visibility timeout had expired.
func (c *MemoryClient) Redeliver(queueURL string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	q := c.queue(queueURL)
	n := len(q.inFlight)
	for handle, msg := range q.inFlight {
		msg.ReceiptHandle = ""
		q.visible = append(q.visible, msg)
		delete(q.inFlight, handle)
	}
	return n
}

// Len returns the number of visible and in-flight messages on queueURL.
func (c *MemoryClient) Len(queueURL string) (visible, inFlight int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	q := c.queue(queueURL)
	return len(q.visible), len(q.inFlight)
}

// Peek returns copies of the visible messages on queueURL without receiving
// them.
func (c *MemoryClient) Peek(queueURL string) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	q := c.queue(queueURL)
	out := make([]Message, len(q.visible))
	for i, msg := range q.visible {
		msg.Attributes = msg.Attributes.Clone()
		out[i] = msg
	}
	return out
}
