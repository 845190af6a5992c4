// Package value implements the dynamically typed value carried by the loosely typed
// fields of the protocol (site update diffs).
//
// Value mirrors msgpack on the wire: strings and raw byte buffers are distinct kinds
// and the variant of a decoded value is taken from the msgpack type code, never from
// application level hints.
package value

import (
	"bytes"
	"math"
	"slices"

	"github.com/samber/lo"
)

// Kind is the variant of a Value.
type Kind uint8

// Kinds of values. The zero Kind is KindNull.
const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindBytes
	KindArray
	KindObject
)

var kindNames = map[Kind]string{
	KindNull:   "null",
	KindBool:   "bool",
	KindNumber: "number",
	KindString: "string",
	KindBytes:  "bytes",
	KindArray:  "array",
	KindObject: "object",
}

func (k Kind) String() string {
	if name, exists := kindNames[k]; exists {
		return name
	}
	return "unknown"
}

// Value is a closed union of the wire value variants. The zero Value is null.
type Value struct {
	kind Kind
	data any
}

// Null returns the null value.
func Null() Value {
	return Value{}
}

// Bool returns boolean value.
func Bool(b bool) Value {
	return Value{kind: KindBool, data: b}
}

// Num returns numeric value.
func Num(n Number) Value {
	return Value{kind: KindNumber, data: n}
}

// Int returns numeric value holding signed integer.
func Int(i int64) Value {
	return Num(IntNumber(i))
}

// Uint returns numeric value holding unsigned integer.
func Uint(u uint64) Value {
	return Num(UintNumber(u))
}

// Float returns numeric value holding float.
func Float(f float64) Value {
	return Num(FloatNumber(f))
}

// String returns UTF-8 string value.
func String(s string) Value {
	return Value{kind: KindString, data: s}
}

// Bytes returns raw byte buffer value.
func Bytes(b []byte) Value {
	if b == nil {
		b = []byte{}
	}
	return Value{kind: KindBytes, data: b}
}

// Array returns ordered list of values.
func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, data: items}
}

// Object returns map of values.
func Object(fields map[string]Value) Value {
	if fields == nil {
		fields = map[string]Value{}
	}
	return Value{kind: KindObject, data: fields}
}

// Kind returns the variant of the value.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull reports whether value is null.
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// AsBool returns boolean held by the value.
func (v Value) AsBool() (bool, bool) {
	b, ok := v.data.(bool)
	return b, ok && v.kind == KindBool
}

// AsNumber returns number held by the value.
func (v Value) AsNumber() (Number, bool) {
	n, ok := v.data.(Number)
	return n, ok && v.kind == KindNumber
}

// AsString returns string held by the value.
func (v Value) AsString() (string, bool) {
	s, ok := v.data.(string)
	return s, ok && v.kind == KindString
}

// AsBytes returns byte buffer held by the value.
func (v Value) AsBytes() ([]byte, bool) {
	b, ok := v.data.([]byte)
	return b, ok && v.kind == KindBytes
}

// AsArray returns items held by the value.
func (v Value) AsArray() ([]Value, bool) {
	items, ok := v.data.([]Value)
	return items, ok && v.kind == KindArray
}

// AsObject returns fields held by the value.
func (v Value) AsObject() (map[string]Value, bool) {
	fields, ok := v.data.(map[string]Value)
	return fields, ok && v.kind == KindObject
}

// Equal compares values structurally. Bytes never equal strings, even with the same content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}

	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.data.(bool) == o.data.(bool)
	case KindNumber:
		return v.data.(Number) == o.data.(Number)
	case KindString:
		return v.data.(string) == o.data.(string)
	case KindBytes:
		return bytes.Equal(v.data.([]byte), o.data.([]byte))
	case KindArray:
		a, b := v.data.([]Value), o.data.([]Value)
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if !a[i].Equal(b[i]) {
				return false
			}
		}
		return true
	case KindObject:
		a, b := v.data.(map[string]Value), o.data.(map[string]Value)
		if len(a) != len(b) {
			return false
		}
		for k, av := range a {
			bv, exists := b[k]
			if !exists || !av.Equal(bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Keys returns keys of the object in sorted order, nil for other kinds.
func (v Value) Keys() []string {
	fields, ok := v.AsObject()
	if !ok {
		return nil
	}
	return sortedKeys(fields)
}

type numberKind uint8

const (
	posInt numberKind = iota
	negInt
	float
)

// Number is an integer or floating point number.
// Non-negative integers are always stored as unsigned ones, so Int(5) equals Uint(5).
type Number struct {
	kind numberKind
	bits uint64
}

// IntNumber creates number from signed integer.
func IntNumber(i int64) Number {
	if i >= 0 {
		return Number{kind: posInt, bits: uint64(i)}
	}
	return Number{kind: negInt, bits: uint64(i)}
}

// UintNumber creates number from unsigned integer.
func UintNumber(u uint64) Number {
	return Number{kind: posInt, bits: u}
}

// FloatNumber creates number from float.
func FloatNumber(f float64) Number {
	return Number{kind: float, bits: math.Float64bits(f)}
}

// IsFloat reports whether number is a float.
func (n Number) IsFloat() bool {
	return n.kind == float
}

// Int64 returns number as int64 if it is an integer fitting the type.
func (n Number) Int64() (int64, bool) {
	switch n.kind {
	case negInt:
		return int64(n.bits), true
	case posInt:
		return int64(n.bits), n.bits <= math.MaxInt64
	default:
		return 0, false
	}
}

// Uint64 returns number as uint64 if it is a non-negative integer.
func (n Number) Uint64() (uint64, bool) {
	return n.bits, n.kind == posInt
}

// Float64 returns number converted to float64.
func (n Number) Float64() float64 {
	switch n.kind {
	case posInt:
		return float64(n.bits)
	case negInt:
		return float64(int64(n.bits))
	default:
		return math.Float64frombits(n.bits)
	}
}

func sortedKeys(fields map[string]Value) []string {
	keys := lo.Keys(fields)
	slices.Sort(keys)
	return keys
}
