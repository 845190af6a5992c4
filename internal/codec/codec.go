// Package codec holds the msgpack settings shared by every encoder of the module.
package codec

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrDecode is returned when the input is not a well-formed msgpack unit.
var ErrDecode = errors.New("malformed msgpack input")

// NewEncoder returns encoder configured the way peers on the network expect.
func NewEncoder(buf *bytes.Buffer) *msgpack.Encoder {
	enc := msgpack.NewEncoder(buf)
	enc.UseCompactInts(true)
	enc.SetSortMapKeys(true)
	return enc
}

// Marshal encodes value.
func Marshal(v any) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := NewEncoder(buf).Encode(v); err != nil {
		return nil, errors.WithStack(err)
	}
	return buf.Bytes(), nil
}

// decodeError keeps the cause of the failure while matching ErrDecode.
type decodeError struct {
	cause error
}

func (e decodeError) Error() string {
	return ErrDecode.Error() + ": " + e.cause.Error()
}

func (e decodeError) Is(target error) bool {
	return target == ErrDecode
}

func (e decodeError) Unwrap() error {
	return e.cause
}

// Unmarshal decodes single msgpack unit into v. Trailing bytes are reported as error.
func Unmarshal(data []byte, v any) error {
	r := bytes.NewReader(data)
	if err := msgpack.NewDecoder(r).Decode(v); err != nil {
		return errors.WithStack(decodeError{cause: err})
	}
	if r.Len() != 0 {
		return errors.Wrapf(ErrDecode, "%d trailing bytes", r.Len())
	}
	return nil
}

// Remaining returns the number of bytes not yet consumed by the decoder, when it is known.
func Remaining(dec *msgpack.Decoder) (int, bool) {
	r, ok := dec.Buffered().(interface{ Len() int })
	if !ok {
		return 0, false
	}
	return r.Len(), true
}
