// Package envelope validates raw queue messages and builds outgoing ones.
package envelope

import (
	"errors"
	"fmt"

	metadatapkg "github.com/drblury/qbroker/internal/runtime/metadata"
	transportpkg "github.com/drblury/qbroker/internal/runtime/transport"
	"github.com/drblury/qbroker/internal/runtime/version"
)

const (
	DefaultNameKey    = "qbMessageName"
	DefaultVersionKey = "qbMessageVersion"
)

// ErrMalformedEnvelope matches every MalformedEnvelopeError via errors.Is.
var ErrMalformedEnvelope = errors.New("qbroker: malformed envelope")

// AttributeKeys names the two attributes every envelope must carry.
type AttributeKeys struct {
	Name    string
	Version string
}

// DefaultAttributeKeys returns the library default attribute keys.
func DefaultAttributeKeys() AttributeKeys {
	return AttributeKeys{Name: DefaultNameKey, Version: DefaultVersionKey}
}

// MalformedEnvelopeError reports a raw message missing a required attribute.
type MalformedEnvelopeError struct {
	MessageID  string
	MissingKey string
}

func (e *MalformedEnvelopeError) Error() string {
	return fmt.Sprintf("qbroker: malformed envelope %s: missing attribute %q", e.MessageID, e.MissingKey)
}

func (e *MalformedEnvelopeError) Is(target error) bool {
	return target == ErrMalformedEnvelope
}

// Attribute is a single string message attribute.
type Attribute struct {
	Key   string
	Value string
}

// Attr is shorthand for constructing an Attribute.
func Attr(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

// Envelope is the validated, read-only view of one queue message.
type Envelope struct {
	msg     transportpkg.Message
	name    string
	version string
}

// Parse validates that msg carries both required attributes.
func Parse(msg transportpkg.Message, keys AttributeKeys) (*Envelope, error) {
	name, ok := msg.Attributes.Lookup(keys.Name)
	if !ok {
		return nil, &MalformedEnvelopeError{MessageID: msg.ID, MissingKey: keys.Name}
	}
	ver, ok := msg.Attributes.Lookup(keys.Version)
	if !ok {
		return nil, &MalformedEnvelopeError{MessageID: msg.ID, MissingKey: keys.Version}
	}

	msg.Attributes = msg.Attributes.Clone()
	return &Envelope{msg: msg, name: name, version: ver}, nil
}

// New builds an outgoing envelope. The name and library version attributes
// are set first; attrs then replace or insert any other key, but never the
// two reserved ones.
func New(keys AttributeKeys, name, body string, attrs ...Attribute) *Envelope {
	base := metadatapkg.New(keys.Name, name, keys.Version, version.Library)

	extra := make(metadatapkg.Metadata, len(attrs))
	for _, a := range attrs {
		extra[a.Key] = a.Value
	}

	return &Envelope{
		msg: transportpkg.Message{
			Body:       body,
			Attributes: base.WithAllExcept(extra, keys.Name, keys.Version),
		},
		name:    name,
		version: version.Library,
	}
}

func (e *Envelope) ID() string            { return e.msg.ID }
func (e *Envelope) ReceiptHandle() string { return e.msg.ReceiptHandle }
func (e *Envelope) Body() string          { return e.msg.Body }
func (e *Envelope) Name() string          { return e.name }
func (e *Envelope) Version() string       { return e.version }

// Attributes returns a copy of every attribute on the message.
func (e *Envelope) Attributes() metadatapkg.Metadata {
	return e.msg.Attributes.Clone()
}

// Attribute returns a single attribute value.
func (e *Envelope) Attribute(key string) (string, bool) {
	return e.msg.Attributes.Lookup(key)
}

// Message returns a copy of the underlying transport message.
func (e *Envelope) Message() transportpkg.Message {
	msg := e.msg
	msg.Attributes = e.msg.Attributes.Clone()
	return msg
}
