package runtime

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/drblury/qbroker/internal/runtime/config"
	"github.com/drblury/qbroker/internal/runtime/envelope"
	errspkg "github.com/drblury/qbroker/internal/runtime/errors"
	loggingpkg "github.com/drblury/qbroker/internal/runtime/logging"
	"github.com/drblury/qbroker/internal/runtime/metadata"
	transportpkg "github.com/drblury/qbroker/internal/runtime/transport"
	"github.com/drblury/qbroker/internal/runtime/version"
)

const testQueue = "https://sqs.eu-central-1.amazonaws.com/000000000000/orders"

type order struct {
	ID   int    `json:"id"`
	Item string `json:"item"`
}

type logEntry struct {
	level  string
	msg    string
	fields loggingpkg.LogFields
	err    error
}

type logSink struct {
	mu      sync.Mutex
	entries []logEntry
}

// recordingLogger captures every entry, including those written by children
// created with With.
type recordingLogger struct {
	sink   *logSink
	fields loggingpkg.LogFields
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{sink: &logSink{}}
}

func (l *recordingLogger) With(fields loggingpkg.LogFields) loggingpkg.ServiceLogger {
	merged := loggingpkg.LogFields{}
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &recordingLogger{sink: l.sink, fields: merged}
}

func (l *recordingLogger) record(level, msg string, err error, fields loggingpkg.LogFields) {
	merged := loggingpkg.LogFields{}
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	l.sink.mu.Lock()
	l.sink.entries = append(l.sink.entries, logEntry{level: level, msg: msg, fields: merged, err: err})
	l.sink.mu.Unlock()
}

func (l *recordingLogger) Debug(msg string, fields loggingpkg.LogFields) {
	l.record("debug", msg, nil, fields)
}

func (l *recordingLogger) Info(msg string, fields loggingpkg.LogFields) {
	l.record("info", msg, nil, fields)
}

func (l *recordingLogger) Warn(msg string, fields loggingpkg.LogFields) {
	l.record("warn", msg, nil, fields)
}

func (l *recordingLogger) Error(msg string, err error, fields loggingpkg.LogFields) {
	l.record("error", msg, err, fields)
}

func (l *recordingLogger) Trace(msg string, fields loggingpkg.LogFields) {
	l.record("trace", msg, nil, fields)
}

func (l *recordingLogger) count(level, msg string) int {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	n := 0
	for _, e := range l.sink.entries {
		if e.level == level && (msg == "" || e.msg == msg) {
			n++
		}
	}
	return n
}

type sentMessage struct {
	destination string
	body        string
	attrs       metadata.Metadata
}

// scriptedClient returns prepared batches and can fail any call.
type scriptedClient struct {
	mu sync.Mutex

	batches    [][]transportpkg.Message
	receiveErr error
	sendErr    error
	deleteErr  error
	onReceive  func()

	receiveCalls int
	requests     []transportpkg.ReceiveRequest
	sent         []sentMessage
	deleted      []string
}

func newScriptedClient(batches ...[]transportpkg.Message) *scriptedClient {
	return &scriptedClient{batches: batches}
}

func (c *scriptedClient) Receive(ctx context.Context, req transportpkg.ReceiveRequest) ([]transportpkg.Message, error) {
	if c.onReceive != nil {
		c.onReceive()
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.receiveCalls++
	c.requests = append(c.requests, req)
	if c.receiveErr != nil {
		return nil, c.receiveErr
	}
	if len(c.batches) == 0 {
		return nil, nil
	}
	batch := c.batches[0]
	c.batches = c.batches[1:]
	return batch, nil
}

func (c *scriptedClient) Send(ctx context.Context, destination, body string, attrs metadata.Metadata) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sendErr != nil {
		return "", c.sendErr
	}
	c.sent = append(c.sent, sentMessage{destination: destination, body: body, attrs: attrs})
	return "reply-id", nil
}

func (c *scriptedClient) Delete(ctx context.Context, queueURL, receiptHandle string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.deleteErr != nil {
		return c.deleteErr
	}
	c.deleted = append(c.deleted, receiptHandle)
	return nil
}

func (c *scriptedClient) deletedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.deleted)
}

func badRequest(op string) error {
	return &errspkg.TransportError{Op: op, Queue: testQueue, StatusCode: http.StatusBadRequest}
}

// rawMessage builds a received message carrying the default attribute keys.
func rawMessage(id, name, ver, body string) transportpkg.Message {
	attrs := metadata.Metadata{}
	if name != "" {
		attrs[envelope.DefaultNameKey] = name
	}
	if ver != "" {
		attrs[envelope.DefaultVersionKey] = ver
	}
	return transportpkg.Message{ID: id, ReceiptHandle: "rh-" + id, Body: body, Attributes: attrs}
}

func orderMessage(id string) transportpkg.Message {
	return rawMessage(id, "OrderCreated", version.Library, `{"id":1,"item":"book"}`)
}

// recorder counts stage invocations across every processor built by its
// factory.
type recorder struct {
	mu sync.Mutex

	factoryCalls int
	received     int
	validated    int
	processed    int
	errored      int
	reasons      []error
	bodies       []order

	receivedErr error
	validateFn  func(*order) (*order, error)
	processFn   func(*envelope.Envelope, *order) (*Reply, error)
	errorFn     func(error) error
}

func (r *recorder) factory() Processor[order] {
	r.mu.Lock()
	r.factoryCalls++
	r.mu.Unlock()

	return ProcessorFuncs[order]{
		OnReceived: func(ctx context.Context, msg *envelope.Envelope) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.received++
			return r.receivedErr
		},
		OnValidate: func(ctx context.Context, msg *envelope.Envelope, body *order) (*order, error) {
			r.mu.Lock()
			r.validated++
			r.bodies = append(r.bodies, *body)
			fn := r.validateFn
			r.mu.Unlock()
			if fn != nil {
				return fn(body)
			}
			return body, nil
		},
		OnProcess: func(ctx context.Context, msg *envelope.Envelope, model *order) (*Reply, error) {
			r.mu.Lock()
			r.processed++
			fn := r.processFn
			r.mu.Unlock()
			if fn != nil {
				return fn(msg, model)
			}
			return nil, nil
		},
		OnError: func(ctx context.Context, msg *envelope.Envelope, reason error) error {
			r.mu.Lock()
			r.errored++
			r.reasons = append(r.reasons, reason)
			fn := r.errorFn
			r.mu.Unlock()
			if fn != nil {
				return fn(reason)
			}
			return nil
		},
	}
}

func newTestBroker(t *testing.T, client transportpkg.Client, deps BrokerDependencies, mutators ...func(*config.Settings) error) (*Broker, *recordingLogger) {
	t.Helper()
	logger := newRecordingLogger()
	b, err := NewBroker(client, logger, deps)
	if err != nil {
		t.Fatalf("NewBroker: %v", err)
	}
	all := append([]func(*config.Settings) error{
		func(s *config.Settings) error { return s.SetQueueURL(testQueue) },
	}, mutators...)
	if err := b.Setup(func(s *config.Settings) error {
		for _, m := range all {
			if err := m(s); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	return b, logger
}

func registerRecorder(t *testing.T, b *Broker, r *recorder) {
	t.Helper()
	if err := Register(b, "OrderCreated", r.factory); err != nil {
		t.Fatalf("Register: %v", err)
	}
}

var errBoom = errors.New("boom")
