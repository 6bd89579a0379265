package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrBrokerRequired           = sterrors.New("qbroker: broker is required")
	ErrClientRequired           = sterrors.New("qbroker: queue client is required")
	ErrQueueURLRequired         = sterrors.New("qbroker: queue url is required")
	ErrMessageNameRequired      = sterrors.New("qbroker: message name is required")
	ErrProcessorFactoryRequired = sterrors.New("qbroker: processor factory is required")
	ErrProcessorRequired        = sterrors.New("qbroker: processor factory returned nil")
	ErrDuplicateMessageName     = sterrors.New("qbroker: message name already registered")
	ErrRegistryFrozen           = sterrors.New("qbroker: registry is frozen once fetching has started")
	ErrFetchInProgress          = sterrors.New("qbroker: fetch already in progress")
	ErrSettingsRequired         = sterrors.New("qbroker: settings mutator is required")
	ErrConfigRequired           = sterrors.New("qbroker: configuration is required")
	ErrLoggerRequired           = sterrors.New("qbroker: logger is required")
	ErrMessageRequired          = sterrors.New("qbroker: message is required")
	ErrDestinationRequired      = sterrors.New("qbroker: destination queue is required")
)

// ConfigValidationError reports settings or configuration values that were
// rejected at assignment or validation time.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return "qbroker: invalid configuration: " + e.Err.Error()
}

func (e ConfigValidationError) Unwrap() error {
	return e.Err
}

// NewConfigValidationError wraps err, returning nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}

// TransportError is returned when the queue service answers a receive, send
// or delete call with a non-success status or the call itself fails.
type TransportError struct {
	Op         string
	Queue      string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("qbroker: %s on queue %q failed", e.Op, e.Queue)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" with status %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err carries a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return sterrors.As(err, &te)
}
