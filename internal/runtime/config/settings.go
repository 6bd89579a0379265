package config

import (
	"errors"
	"fmt"

	errspkg "github.com/drblury/qbroker/internal/runtime/errors"
)

const (
	MinMaxMessages       = 1
	MaxMaxMessages       = 10
	DefaultMaxMessages   = 5
	MaxWaitTimeSeconds   = 20
	MaxVisibilityTimeout = 43200

	DefaultNameAttributeKey    = "qbMessageName"
	DefaultVersionAttributeKey = "qbMessageVersion"
)

// Settings controls how a broker polls its queue and which outcomes delete
// the processed message. Setters validate eagerly and leave the previous
// value in place when they reject the new one.
type Settings struct {
	maxMessages       int
	waitTimeSeconds   int
	visibilityTimeout int
	queueURL          string

	fetchUntilEmpty bool
	deleteOnSuccess bool
	deleteOnInvalid bool
	deleteOnError   bool

	nameKey    string
	versionKey string
}

// DefaultSettings returns the settings a broker starts with.
func DefaultSettings() Settings {
	return Settings{
		maxMessages:     DefaultMaxMessages,
		fetchUntilEmpty: true,
		deleteOnSuccess: true,
		deleteOnInvalid: true,
		deleteOnError:   true,
		nameKey:         DefaultNameAttributeKey,
		versionKey:      DefaultVersionAttributeKey,
	}
}

func invalid(format string, args ...any) error {
	return errspkg.NewConfigValidationError(fmt.Errorf(format, args...))
}

// SetMaxMessages sets how many messages a single receive may return.
func (s *Settings) SetMaxMessages(n int) error {
	if n < MinMaxMessages || n > MaxMaxMessages {
		return invalid("max messages must be within %d and %d, got %d", MinMaxMessages, MaxMaxMessages, n)
	}
	s.maxMessages = n
	return nil
}

// SetWaitTimeSeconds sets how long a receive waits for messages to arrive.
func (s *Settings) SetWaitTimeSeconds(n int) error {
	if n < 0 || n > MaxWaitTimeSeconds {
		return invalid("wait time must be within 0 and %d seconds, got %d", MaxWaitTimeSeconds, n)
	}
	s.waitTimeSeconds = n
	return nil
}

// SetVisibilityTimeout overrides the queue visibility timeout for received
// messages. Zero keeps the queue default.
func (s *Settings) SetVisibilityTimeout(n int) error {
	if n < 0 || n > MaxVisibilityTimeout {
		return invalid("visibility timeout must be within 0 and %d seconds, got %d", MaxVisibilityTimeout, n)
	}
	s.visibilityTimeout = n
	return nil
}

// SetQueueURL sets the queue polled by Fetch and used by Delete.
func (s *Settings) SetQueueURL(queueURL string) error {
	if queueURL == "" {
		return errspkg.NewConfigValidationError(errspkg.ErrQueueURLRequired)
	}
	s.queueURL = queueURL
	return nil
}

func (s *Settings) SetFetchUntilEmpty(v bool) error {
	s.fetchUntilEmpty = v
	return nil
}

func (s *Settings) SetDeleteOnSuccess(v bool) error {
	s.deleteOnSuccess = v
	return nil
}

func (s *Settings) SetDeleteOnInvalid(v bool) error {
	s.deleteOnInvalid = v
	return nil
}

func (s *Settings) SetDeleteOnError(v bool) error {
	s.deleteOnError = v
	return nil
}

// SetAttributeKeys changes the attribute keys carrying the message name and
// version.
func (s *Settings) SetAttributeKeys(nameKey, versionKey string) error {
	switch {
	case nameKey == "":
		return invalid("name attribute key is required")
	case versionKey == "":
		return invalid("version attribute key is required")
	case nameKey == versionKey:
		return invalid("name and version attribute keys must differ, both are %q", nameKey)
	}
	s.nameKey = nameKey
	s.versionKey = versionKey
	return nil
}

func (s Settings) MaxMessages() int            { return s.maxMessages }
func (s Settings) WaitTimeSeconds() int        { return s.waitTimeSeconds }
func (s Settings) VisibilityTimeout() int      { return s.visibilityTimeout }
func (s Settings) QueueURL() string            { return s.queueURL }
func (s Settings) FetchUntilEmpty() bool       { return s.fetchUntilEmpty }
func (s Settings) DeleteOnSuccess() bool       { return s.deleteOnSuccess }
func (s Settings) DeleteOnInvalid() bool       { return s.deleteOnInvalid }
func (s Settings) DeleteOnError() bool         { return s.deleteOnError }
func (s Settings) NameAttributeKey() string    { return s.nameKey }
func (s Settings) VersionAttributeKey() string { return s.versionKey }

// RequireQueueURL returns an error when no queue url has been configured.
func (s Settings) RequireQueueURL() error {
	if s.queueURL == "" {
		return errspkg.ErrQueueURLRequired
	}
	return nil
}

// Apply runs each mutator against a copy of s and returns the result only if
// every mutator succeeds.
func (s Settings) Apply(mutators ...func(*Settings) error) (Settings, error) {
	next := s
	var errs []error
	for _, m := range mutators {
		if m == nil {
			continue
		}
		if err := m(&next); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return s, err
	}
	return next, nil
}
