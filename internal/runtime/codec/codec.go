// Package codec decodes queue message bodies into processor models.
package codec

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// Codec converts between message bodies and model values.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// ErrNotProtoMessage is returned by the protojson codec for non-protobuf values.
var ErrNotProtoMessage = errors.New("qbroker: value does not implement proto.Message")

var (
	// JSON is the default body codec.
	JSON Codec = jsonCodec{api: sonic.ConfigStd}
	// ProtoJSON decodes bodies written with the protobuf JSON mapping.
	ProtoJSON Codec = protoJSONCodec{}
)

type jsonCodec struct {
	api sonic.API
}

func (jsonCodec) Name() string { return "json" }

func (c jsonCodec) Marshal(v any) ([]byte, error) {
	return c.api.Marshal(v)
}

func (c jsonCodec) Unmarshal(data []byte, v any) error {
	return c.api.Unmarshal(data, v)
}

type protoJSONCodec struct{}

func (protoJSONCodec) Name() string { return "protojson" }

func (protoJSONCodec) Marshal(v any) ([]byte, error) {
	msg, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrNotProtoMessage, v)
	}
	return protojson.Marshal(msg)
}

func (protoJSONCodec) Unmarshal(data []byte, v any) error {
	msg, ok := v.(proto.Message)
	if !ok {
		return fmt.Errorf("%w: %T", ErrNotProtoMessage, v)
	}
	return protojson.UnmarshalOptions{DiscardUnknown: true}.Unmarshal(data, msg)
}

// Marshal encodes v using the default JSON codec and returns the body string.
func Marshal(v any) (string, error) {
	data, err := JSON.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
