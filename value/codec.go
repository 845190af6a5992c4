package value

import (
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"

	"github.com/outofforest/zeropeer/internal/codec"
)

var (
	// ErrDecode is returned when wire bytes do not form a well-formed value.
	ErrDecode = codec.ErrDecode

	// ErrInvalidKey is returned when object key is not a valid UTF-8 string.
	ErrInvalidKey = errors.New("object key is not a valid string")

	// ErrUnsupportedType is returned by FromGo for types having no wire representation.
	ErrUnsupportedType = errors.New("unsupported type")
)

// allocHint caps preallocation for decoded collections, the rest grows with the items actually read.
const allocHint = 1024

var (
	_ msgpack.CustomEncoder = Value{}
	_ msgpack.CustomDecoder = &Value{}
)

// Encode encodes value to wire bytes.
func Encode(v Value) ([]byte, error) {
	return codec.Marshal(v)
}

// Decode decodes value from wire bytes.
func Decode(data []byte) (Value, error) {
	var v Value
	if err := codec.Unmarshal(data, &v); err != nil {
		return Value{}, err
	}
	return v, nil
}

// EncodeMsgpack encodes value using msgpack encoder.
func (v Value) EncodeMsgpack(enc *msgpack.Encoder) error {
	switch v.kind {
	case KindNull:
		return enc.EncodeNil()
	case KindBool:
		return enc.EncodeBool(v.data.(bool))
	case KindNumber:
		n := v.data.(Number)
		switch n.kind {
		case posInt:
			return enc.EncodeUint(n.bits)
		case negInt:
			return enc.EncodeInt(int64(n.bits))
		default:
			return enc.EncodeFloat64(n.Float64())
		}
	case KindString:
		return enc.EncodeString(v.data.(string))
	case KindBytes:
		// Nil buffer would be encoded as msgpack nil.
		b := v.data.([]byte)
		if b == nil {
			b = []byte{}
		}
		return enc.EncodeBytes(b)
	case KindArray:
		items := v.data.([]Value)
		if err := enc.EncodeArrayLen(len(items)); err != nil {
			return err
		}
		for _, item := range items {
			if err := item.EncodeMsgpack(enc); err != nil {
				return err
			}
		}
		return nil
	case KindObject:
		fields := v.data.(map[string]Value)
		if err := enc.EncodeMapLen(len(fields)); err != nil {
			return err
		}
		for _, k := range sortedKeys(fields) {
			if !utf8.ValidString(k) {
				return errors.Wrapf(ErrInvalidKey, "key %q", k)
			}
			if err := enc.EncodeString(k); err != nil {
				return err
			}
			if err := fields[k].EncodeMsgpack(enc); err != nil {
				return err
			}
		}
		return nil
	default:
		return errors.Errorf("unknown value kind %d", v.kind)
	}
}

// DecodeMsgpack decodes value using msgpack decoder. Variant is chosen by the msgpack type code.
func (v *Value) DecodeMsgpack(dec *msgpack.Decoder) error {
	c, err := dec.PeekCode()
	if err != nil {
		return err
	}

	switch {
	case c == msgpcode.Nil:
		if err := dec.DecodeNil(); err != nil {
			return err
		}
		*v = Null()
	case c == msgpcode.False || c == msgpcode.True:
		b, err := dec.DecodeBool()
		if err != nil {
			return err
		}
		*v = Bool(b)
	case c >= msgpcode.Uint8 && c <= msgpcode.Uint64:
		u, err := dec.DecodeUint64()
		if err != nil {
			return err
		}
		*v = Uint(u)
	case msgpcode.IsFixedNum(c) || (c >= msgpcode.Int8 && c <= msgpcode.Int64):
		i, err := dec.DecodeInt64()
		if err != nil {
			return err
		}
		*v = Int(i)
	case c == msgpcode.Float || c == msgpcode.Double:
		f, err := dec.DecodeFloat64()
		if err != nil {
			return err
		}
		*v = Float(f)
	case msgpcode.IsString(c):
		s, err := dec.DecodeString()
		if err != nil {
			return err
		}
		*v = String(s)
	case msgpcode.IsBin(c):
		b, err := dec.DecodeBytes()
		if err != nil {
			return err
		}
		*v = Bytes(b)
	case msgpcode.IsFixedArray(c) || c == msgpcode.Array16 || c == msgpcode.Array32:
		n, err := dec.DecodeArrayLen()
		if err != nil {
			return err
		}
		if err := checkLen(dec, n, 1); err != nil {
			return err
		}
		items := make([]Value, 0, min(n, allocHint))
		for range n {
			var item Value
			if err := item.DecodeMsgpack(dec); err != nil {
				return err
			}
			items = append(items, item)
		}
		*v = Array(items...)
	case msgpcode.IsFixedMap(c) || c == msgpcode.Map16 || c == msgpcode.Map32:
		n, err := dec.DecodeMapLen()
		if err != nil {
			return err
		}
		if err := checkLen(dec, n, 2); err != nil {
			return err
		}
		fields := make(map[string]Value, min(n, allocHint))
		for range n {
			kc, err := dec.PeekCode()
			if err != nil {
				return err
			}
			if !msgpcode.IsString(kc) {
				return errors.Wrapf(ErrInvalidKey, "msgpack code 0x%x", kc)
			}
			k, err := dec.DecodeString()
			if err != nil {
				return err
			}
			var item Value
			if err := item.DecodeMsgpack(dec); err != nil {
				return err
			}
			fields[k] = item
		}
		*v = Object(fields)
	default:
		return errors.Wrapf(ErrDecode, "unsupported msgpack code 0x%x", c)
	}

	return nil
}

// checkLen rejects collections announcing more items than the remaining input may hold.
// Each item takes at least minItemSize bytes.
func checkLen(dec *msgpack.Decoder, n, minItemSize int) error {
	if n < 0 {
		return nil
	}
	if left, ok := codec.Remaining(dec); ok && n > left/minItemSize {
		return errors.Wrapf(ErrDecode, "%d items announced, %d bytes left", n, left)
	}
	return nil
}

// FromGo converts plain Go value to Value.
func FromGo(x any) (Value, error) {
	switch x := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case int:
		return Int(int64(x)), nil
	case int8:
		return Int(int64(x)), nil
	case int16:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint:
		return Uint(uint64(x)), nil
	case uint8:
		return Uint(uint64(x)), nil
	case uint16:
		return Uint(uint64(x)), nil
	case uint32:
		return Uint(uint64(x)), nil
	case uint64:
		return Uint(x), nil
	case float32:
		return Float(float64(x)), nil
	case float64:
		return Float(x), nil
	case string:
		return String(x), nil
	case []byte:
		return Bytes(x), nil
	case []any:
		items := make([]Value, 0, len(x))
		for _, item := range x {
			v, err := FromGo(item)
			if err != nil {
				return Value{}, err
			}
			items = append(items, v)
		}
		return Array(items...), nil
	case map[string]any:
		fields := make(map[string]Value, len(x))
		for k, item := range x {
			v, err := FromGo(item)
			if err != nil {
				return Value{}, err
			}
			fields[k] = v
		}
		return Object(fields), nil
	default:
		return Value{}, errors.Wrapf(ErrUnsupportedType, "%T", x)
	}
}

// MustFromGo is like FromGo but panics on error.
func MustFromGo(x any) Value {
	v, err := FromGo(x)
	if err != nil {
		panic(err)
	}
	return v
}
