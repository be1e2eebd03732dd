// Package serialization encodes job records and message payloads for storage.
// Every stored value carries a one-byte format prefix so readers can decode
// records written by producers using either codec.
package serialization

import (
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Format identifies the wire encoding of a stored value
type Format byte

const (
	// FormatJSON is the default encoding for records and schemaless payloads
	FormatJSON Format = 0x00
	// FormatProtobuf is used for payloads that are proto messages
	FormatProtobuf Format = 0x01
)

var (
	// ErrUnknownFormat is returned when the format byte is not recognized
	ErrUnknownFormat = errors.New("unknown serialization format")
	// ErrEncode is returned when encoding fails
	ErrEncode = errors.New("failed to encode value")
	// ErrDecode is returned when decoding fails
	ErrDecode = errors.New("failed to decode value")
)

// Codec serializes values with a format prefix and detects the format on read
type Codec struct {
	// Default is the format used by Encode
	Default Format
}

// NewJSONCodec returns a codec that encodes with JSON
func NewJSONCodec() *Codec {
	return &Codec{Default: FormatJSON}
}

// NewProtobufCodec returns a codec that encodes proto messages
func NewProtobufCodec() *Codec {
	return &Codec{Default: FormatProtobuf}
}

// Encode serializes v using the codec's default format
func (c *Codec) Encode(v interface{}) ([]byte, error) {
	return c.EncodeAs(v, c.Default)
}

// EncodeAs serializes v using the given format and prepends the format byte
func (c *Codec) EncodeAs(v interface{}, format Format) ([]byte, error) {
	var data []byte
	var err error

	switch format {
	case FormatJSON:
		data, err = json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w (json): %v", ErrEncode, err)
		}
	case FormatProtobuf:
		data, err = marshalProtobuf(v)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownFormat, byte(format))
	}

	out := make([]byte, len(data)+1)
	out[0] = byte(format)
	copy(out[1:], data)
	return out, nil
}

// Decode deserializes data into v, detecting the format from the prefix.
// Values written without a prefix are treated as legacy JSON.
func (c *Codec) Decode(data []byte, v interface{}) error {
	format, payload, err := DetectFormat(data)
	if err != nil {
		return err
	}

	switch format {
	case FormatJSON:
		if err := json.Unmarshal(payload, v); err != nil {
			return fmt.Errorf("%w (json): %v", ErrDecode, err)
		}
		return nil
	case FormatProtobuf:
		return unmarshalProtobuf(payload, v)
	default:
		return fmt.Errorf("%w: 0x%02X", ErrUnknownFormat, byte(format))
	}
}

// marshalProtobuf encodes v as protobuf. Proto messages marshal directly;
// any other value is carried as a google.protobuf.Struct, so schemaless job
// records can ride the protobuf wire format too.
func marshalProtobuf(v interface{}) ([]byte, error) {
	if msg, ok := v.(proto.Message); ok {
		data, err := proto.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("%w (protobuf): %v", ErrEncode, err)
		}
		return data, nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w (protobuf): %v", ErrEncode, err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %T is neither a proto message nor an object", ErrEncode, v)
	}
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("%w (protobuf): %v", ErrEncode, err)
	}
	data, err := proto.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("%w (protobuf): %v", ErrEncode, err)
	}
	return data, nil
}

// unmarshalProtobuf is the inverse of marshalProtobuf
func unmarshalProtobuf(payload []byte, v interface{}) error {
	if msg, ok := v.(proto.Message); ok {
		if err := proto.Unmarshal(payload, msg); err != nil {
			return fmt.Errorf("%w (protobuf): %v", ErrDecode, err)
		}
		return nil
	}

	var st structpb.Struct
	if err := proto.Unmarshal(payload, &st); err != nil {
		return fmt.Errorf("%w (protobuf): %v", ErrDecode, err)
	}
	raw, err := st.MarshalJSON()
	if err != nil {
		return fmt.Errorf("%w (protobuf): %v", ErrDecode, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w (protobuf): %v", ErrDecode, err)
	}
	return nil
}

// DetectFormat returns the format of data and the payload without its prefix
func DetectFormat(data []byte) (Format, []byte, error) {
	if len(data) == 0 {
		return FormatJSON, nil, fmt.Errorf("%w: empty value", ErrDecode)
	}

	switch Format(data[0]) {
	case FormatJSON, FormatProtobuf:
		if len(data) < 2 {
			return Format(data[0]), nil, fmt.Errorf("%w: value too short", ErrDecode)
		}
		return Format(data[0]), data[1:], nil
	default:
		// Legacy JSON written without a prefix starts with '{' or '['
		if data[0] == '{' || data[0] == '[' {
			return FormatJSON, data, nil
		}
		return FormatJSON, data, fmt.Errorf("%w: leading byte 0x%02X", ErrUnknownFormat, data[0])
	}
}
