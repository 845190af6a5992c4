package wire

import "github.com/outofforest/zeropeer/internal/codec"

// ErrDecode is returned when payload cannot be decoded.
var ErrDecode = codec.ErrDecode

// Marshal encodes catalog message.
func Marshal(msg any) ([]byte, error) {
	return codec.Marshal(msg)
}

// Unmarshal decodes catalog message. Absent fields keep their zero value.
func Unmarshal(data []byte, msg any) error {
	return codec.Unmarshal(data, msg)
}
