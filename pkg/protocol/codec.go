package protocol

import (
	"fmt"
	"reflect"

	"github.com/hashicorp/go-msgpack/v2/codec"
)

// Codec encodes and decodes frames as msgpack arrays.
// A Codec is safe for concurrent use; encoders and decoders are created
// per call from a shared, read-only handle.
type Codec struct {
	handle *codec.MsgpackHandle
}

// NewCodec creates a codec configured for schema-less decoding:
// maps decode as map[string]any, integers as int64, strings as string.
func NewCodec() *Codec {
	h := &codec.MsgpackHandle{WriteExt: true}
	h.MapType = reflect.TypeOf(map[string]any(nil))
	h.SliceType = reflect.TypeOf([]any(nil))
	h.RawToString = true
	h.SignedInteger = true
	return &Codec{handle: h}
}

// Encode encodes a frame to bytes.
func (c *Codec) Encode(f Frame) ([]byte, error) {
	var out []byte
	enc := codec.NewEncoderBytes(&out, c.handle)
	if err := enc.Encode(f.value()); err != nil {
		return nil, fmt.Errorf("protocol: encode %s: %w", f.Op, err)
	}
	if len(out) > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	return out, nil
}

// Decode decodes bytes into a frame.
// Any failure is returned as an E101 error (errors.Is(err, ErrDecode));
// the caller logs and drops the frame. Unknown opcodes decode successfully
// so the caller can log them by name.
func (c *Codec) Decode(data []byte) (f Frame, err error) {
	if len(data) == 0 {
		return Frame{}, decodeError(-1, ErrEmptyFrame)
	}
	if len(data) > MaxFrameSize {
		return Frame{}, decodeError(-1, ErrFrameTooLarge)
	}

	defer func() {
		if r := recover(); r != nil {
			f = Frame{}
			err = decodeError(-1, fmt.Errorf("panic: %v", r))
		}
	}()

	var raw any
	dec := codec.NewDecoderBytes(data, c.handle)
	if err := dec.Decode(&raw); err != nil {
		return Frame{}, decodeError(-1, err)
	}

	list, ok := raw.([]any)
	if !ok {
		return Frame{}, decodeError(-1, fmt.Errorf("frame is %T, want array", raw))
	}
	if len(list) == 0 {
		return Frame{}, decodeError(-1, ErrEmptyFrame)
	}
	op, ok := asInt(list[0])
	if !ok {
		return Frame{}, decodeError(-1, fmt.Errorf("opcode is %T, want integer", list[0]))
	}
	return Frame{Op: Opcode(op), Fields: list[1:]}, nil
}

// EncodeValue encodes an arbitrary value. Used by tests and tooling that
// need to build raw, possibly malformed, frames.
func (c *Codec) EncodeValue(v any) ([]byte, error) {
	var out []byte
	enc := codec.NewEncoderBytes(&out, c.handle)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return out, nil
}
