package envelope

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	metadatapkg "github.com/drblury/qbroker/internal/runtime/metadata"
	transportpkg "github.com/drblury/qbroker/internal/runtime/transport"
	"github.com/drblury/qbroker/internal/runtime/version"
)

func TestNewThenParseRoundTrips(t *testing.T) {
	keys := DefaultAttributeKeys()
	cases := []struct {
		name string
		body string
	}{
		{"orders.created", `{"id":1}`},
		{"x", ""},
		{"unicode-✓", "body with spaces\nand newlines"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := New(keys, tc.name, tc.body, Attr("tenant", "acme"))

			msg := out.Message()
			msg.ID = "m-1"
			msg.ReceiptHandle = "rh-1"

			in, err := Parse(msg, keys)
			require.NoError(t, err)
			assert.Equal(t, tc.name, in.Name())
			assert.Equal(t, version.Library, in.Version())
			assert.Equal(t, tc.body, in.Body())
			assert.Equal(t, "m-1", in.ID())
			assert.Equal(t, "rh-1", in.ReceiptHandle())

			tenant, ok := in.Attribute("tenant")
			assert.True(t, ok)
			assert.Equal(t, "acme", tenant)
		})
	}
}

func TestNewProtectsReservedKeys(t *testing.T) {
	keys := DefaultAttributeKeys()
	env := New(keys, "orders", "{}",
		Attr(DefaultNameKey, "spoofed"),
		Attr(DefaultVersionKey, "9.9.9"),
		Attr("trace", "first"),
		Attr("trace", "second"),
	)

	attrs := env.Attributes()
	assert.Equal(t, "orders", attrs[DefaultNameKey])
	assert.Equal(t, version.Library, attrs[DefaultVersionKey])
	assert.Equal(t, "second", attrs["trace"])
	assert.Len(t, attrs, 3)
}

func TestNewUsesConfiguredKeys(t *testing.T) {
	keys := AttributeKeys{Name: "type", Version: "schema"}
	env := New(keys, "orders", "{}")

	attrs := env.Attributes()
	assert.Equal(t, "orders", attrs["type"])
	assert.Equal(t, version.Library, attrs["schema"])
	_, hasDefault := attrs[DefaultNameKey]
	assert.False(t, hasDefault)
}

func TestParseMissingAttributes(t *testing.T) {
	keys := DefaultAttributeKeys()
	tests := []struct {
		name    string
		attrs   metadatapkg.Metadata
		missing string
	}{
		{"no attributes", nil, DefaultNameKey},
		{"missing name", metadatapkg.New(DefaultVersionKey, "1.0.0"), DefaultNameKey},
		{"missing version", metadatapkg.New(DefaultNameKey, "orders"), DefaultVersionKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(transportpkg.Message{ID: "abc", Attributes: tt.attrs}, keys)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedEnvelope))

			var malformed *MalformedEnvelopeError
			require.True(t, errors.As(err, &malformed))
			assert.Equal(t, "abc", malformed.MessageID)
			assert.Equal(t, tt.missing, malformed.MissingKey)
		})
	}
}

func TestParseDoesNotAliasAttributes(t *testing.T) {
	raw := transportpkg.Message{
		ID:         "1",
		Attributes: metadatapkg.New(DefaultNameKey, "orders", DefaultVersionKey, "1.0.0"),
	}
	env, err := Parse(raw, DefaultAttributeKeys())
	require.NoError(t, err)

	raw.Attributes[DefaultNameKey] = "mutated"
	env.Attributes()[DefaultNameKey] = "mutated"

	name, _ := env.Attribute(DefaultNameKey)
	assert.Equal(t, "orders", name)
	assert.Equal(t, "orders", env.Name())
}
