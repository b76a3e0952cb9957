// Package codec converts between backend wire representations and native
// typed values. It owns the Value union, the column/parameter TypeInfo
// metadata, and the per-kind encode/decode registry used by every backend.
package codec

import (
	"bytes"
	"math/big"
	"net/netip"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wireql/wireql/pkg/sqlerr"
)

// Kind is the backend-agnostic type tag of a Value. Backends map their
// wire type identifiers onto kinds when they build their Registry.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindInt2
	KindInt4
	KindInt8
	KindFloat4
	KindFloat8
	KindDecimal
	KindText
	KindBytes
	KindDate
	KindTime
	KindTimestamp
	KindTimestampTZ
	KindUUID
	KindJSON
	KindInet
	KindBigInt
	KindArray
)

var kindNames = map[Kind]string{
	KindInvalid:     "invalid",
	KindBool:        "bool",
	KindInt2:        "int2",
	KindInt4:        "int4",
	KindInt8:        "int8",
	KindFloat4:      "float4",
	KindFloat8:      "float8",
	KindDecimal:     "decimal",
	KindText:        "text",
	KindBytes:       "bytes",
	KindDate:        "date",
	KindTime:        "time",
	KindTimestamp:   "timestamp",
	KindTimestampTZ: "timestamptz",
	KindUUID:        "uuid",
	KindJSON:        "json",
	KindInet:        "inet",
	KindBigInt:      "bigint",
	KindArray:       "array",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "invalid"
}

// MarshalText makes kinds serialize by name, keeping the offline describe
// cache readable and stable across releases.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(data []byte) error {
	s := string(data)
	for kind, name := range kindNames {
		if name == s {
			*k = kind
			return nil
		}
	}
	return sqlerr.Newf(sqlerr.KindTypeMismatch, "unknown type kind %q", s)
}

// Value is a tagged union over the supported scalar and extended types.
// NULL is carried out-of-band in the valid flag; the payload of a NULL
// value is never meaningful. Values decoded in borrowed mode alias the
// wire buffer they came from and must be Cloned before the buffer is
// reused.
type Value struct {
	kind     Kind
	valid    bool
	borrowed bool

	b     bool
	i     int64
	f     float64
	s     string
	raw   []byte
	t     time.Time
	u     uuid.UUID
	d     decimal.Decimal
	bi    *big.Int
	ip    netip.Prefix
	elem  Kind
	items []Value
}

// Null returns the NULL value of the given kind.
func Null(kind Kind) Value {
	return Value{kind: kind}
}

func Bool(v bool) Value    { return Value{kind: KindBool, valid: true, b: v} }
func Int2(v int16) Value   { return Value{kind: KindInt2, valid: true, i: int64(v)} }
func Int4(v int32) Value   { return Value{kind: KindInt4, valid: true, i: int64(v)} }
func Int8(v int64) Value   { return Value{kind: KindInt8, valid: true, i: v} }
func Float4(v float32) Value {
	return Value{kind: KindFloat4, valid: true, f: float64(v)}
}
func Float8(v float64) Value { return Value{kind: KindFloat8, valid: true, f: v} }
func Text(v string) Value    { return Value{kind: KindText, valid: true, s: v} }

// Bytes wraps v without copying. The caller keeps ownership of the slice.
func Bytes(v []byte) Value {
	return Value{kind: KindBytes, valid: true, raw: v, borrowed: true}
}

// BytesCopy copies v into an owned value.
func BytesCopy(v []byte) Value {
	owned := make([]byte, len(v))
	copy(owned, v)
	return Value{kind: KindBytes, valid: true, raw: owned}
}

func Date(v time.Time) Value {
	y, m, d := v.Date()
	return Value{kind: KindDate, valid: true, t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// TimeOfDay carries a clock offset with no date component. The offset is
// a signed duration: backends whose TIME type is really an elapsed time
// (negative, or past 24 hours) round-trip without loss. Resolution is one
// microsecond, the finest grain every supported wire format carries;
// finer input is truncated on construction so that encoding is lossless.
func TimeOfDay(v time.Duration) Value {
	return Value{kind: KindTime, valid: true, i: int64(v.Truncate(time.Microsecond))}
}

func Timestamp(v time.Time) Value {
	return Value{kind: KindTimestamp, valid: true, t: v.UTC().Truncate(time.Microsecond)}
}

func TimestampTZ(v time.Time) Value {
	return Value{kind: KindTimestampTZ, valid: true, t: v.Truncate(time.Microsecond)}
}

func UUID(v uuid.UUID) Value { return Value{kind: KindUUID, valid: true, u: v} }

// JSON wraps raw JSON bytes without copying.
func JSON(v []byte) Value {
	return Value{kind: KindJSON, valid: true, raw: v, borrowed: true}
}

func Decimal(v decimal.Decimal) Value {
	return Value{kind: KindDecimal, valid: true, d: v}
}

func Inet(v netip.Prefix) Value { return Value{kind: KindInet, valid: true, ip: v} }

// BigInt copies v into an owned arbitrary-precision integer value.
func BigInt(v *big.Int) Value {
	return Value{kind: KindBigInt, valid: true, bi: new(big.Int).Set(v)}
}

// Array wraps items as an array over one element kind. Every non-NULL
// item must already carry the element kind; NULL items are allowed. The
// items slice is taken over, not copied.
func Array(elem Kind, items []Value) (Value, error) {
	if elem == KindInvalid || elem == KindArray {
		return Value{}, sqlerr.Newf(sqlerr.KindTypeMismatch, "invalid array element kind %s", elem)
	}
	for i, item := range items {
		if !item.IsNull() && item.Kind() != elem {
			return Value{}, sqlerr.Newf(sqlerr.KindTypeMismatch,
				"array item %d is %s, not %s", i, item.Kind(), elem)
		}
	}
	return Value{kind: KindArray, valid: true, elem: elem, items: items}, nil
}

// NullArray returns the NULL value of an array type over elem.
func NullArray(elem Kind) Value {
	return Value{kind: KindArray, elem: elem}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return !v.valid }

// Borrowed reports whether the value aliases a wire buffer it does not
// own. An array is borrowed when any of its items is.
func (v Value) Borrowed() bool {
	if v.kind == KindArray {
		for _, item := range v.items {
			if item.Borrowed() {
				return true
			}
		}
		return false
	}
	return v.borrowed
}

// Clone detaches the value from any borrowed buffer, returning a value
// that owns all of its storage.
func (v Value) Clone() Value {
	if v.kind == KindArray {
		if !v.Borrowed() {
			return v
		}
		out := v
		out.items = make([]Value, len(v.items))
		for i, item := range v.items {
			out.items[i] = item.Clone()
		}
		return out
	}
	if !v.borrowed {
		return v
	}
	out := v
	out.raw = make([]byte, len(v.raw))
	copy(out.raw, v.raw)
	out.borrowed = false
	return out
}

func (v Value) accessErr(want Kind) error {
	if !v.valid {
		return sqlerr.Newf(sqlerr.KindTypeMismatch, "value is NULL, not %s", want)
	}
	return sqlerr.Newf(sqlerr.KindTypeMismatch, "value is %s, not %s", v.kind, want)
}

func (v Value) Bool() (bool, error) {
	if !v.valid || v.kind != KindBool {
		return false, v.accessErr(KindBool)
	}
	return v.b, nil
}

// Int returns the value of any integer width as int64.
func (v Value) Int() (int64, error) {
	if !v.valid {
		return 0, v.accessErr(KindInt8)
	}
	switch v.kind {
	case KindInt2, KindInt4, KindInt8:
		return v.i, nil
	default:
		return 0, v.accessErr(KindInt8)
	}
}

// Float returns the value of either float width as float64.
func (v Value) Float() (float64, error) {
	if !v.valid {
		return 0, v.accessErr(KindFloat8)
	}
	switch v.kind {
	case KindFloat4, KindFloat8:
		return v.f, nil
	default:
		return 0, v.accessErr(KindFloat8)
	}
}

func (v Value) Text() (string, error) {
	if !v.valid || v.kind != KindText {
		return "", v.accessErr(KindText)
	}
	return v.s, nil
}

func (v Value) Bytes() ([]byte, error) {
	if !v.valid || v.kind != KindBytes {
		return nil, v.accessErr(KindBytes)
	}
	return v.raw, nil
}

func (v Value) JSON() ([]byte, error) {
	if !v.valid || v.kind != KindJSON {
		return nil, v.accessErr(KindJSON)
	}
	return v.raw, nil
}

// Time returns the time payload of date and timestamp kinds.
func (v Value) Time() (time.Time, error) {
	if !v.valid {
		return time.Time{}, v.accessErr(KindTimestamp)
	}
	switch v.kind {
	case KindDate, KindTimestamp, KindTimestampTZ:
		return v.t, nil
	default:
		return time.Time{}, v.accessErr(KindTimestamp)
	}
}

// TimeOfDay returns the wall-clock offset of a time value.
func (v Value) TimeOfDay() (time.Duration, error) {
	if !v.valid || v.kind != KindTime {
		return 0, v.accessErr(KindTime)
	}
	return time.Duration(v.i), nil
}

func (v Value) UUID() (uuid.UUID, error) {
	if !v.valid || v.kind != KindUUID {
		return uuid.UUID{}, v.accessErr(KindUUID)
	}
	return v.u, nil
}

func (v Value) Decimal() (decimal.Decimal, error) {
	if !v.valid || v.kind != KindDecimal {
		return decimal.Decimal{}, v.accessErr(KindDecimal)
	}
	return v.d, nil
}

func (v Value) Inet() (netip.Prefix, error) {
	if !v.valid || v.kind != KindInet {
		return netip.Prefix{}, v.accessErr(KindInet)
	}
	return v.ip, nil
}

// Elem returns the element kind of an array value, KindInvalid for
// anything else.
func (v Value) Elem() Kind {
	if v.kind != KindArray {
		return KindInvalid
	}
	return v.elem
}

// Items returns the elements of an array value. The slice is shared, not
// copied.
func (v Value) Items() ([]Value, error) {
	if !v.valid || v.kind != KindArray {
		return nil, v.accessErr(KindArray)
	}
	return v.items, nil
}

// BigInt returns a copy of the arbitrary-precision payload.
func (v Value) BigInt() (*big.Int, error) {
	if !v.valid || v.kind != KindBigInt {
		return nil, v.accessErr(KindBigInt)
	}
	return new(big.Int).Set(v.bi), nil
}

// Equal compares two values by kind, nullness and payload.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind || v.valid != other.valid {
		return false
	}
	if !v.valid {
		return true
	}
	switch v.kind {
	case KindBool:
		return v.b == other.b
	case KindInt2, KindInt4, KindInt8, KindTime:
		return v.i == other.i
	case KindFloat4, KindFloat8:
		return v.f == other.f
	case KindText:
		return v.s == other.s
	case KindBytes, KindJSON:
		return bytes.Equal(v.raw, other.raw)
	case KindDate, KindTimestamp, KindTimestampTZ:
		return v.t.Equal(other.t)
	case KindUUID:
		return v.u == other.u
	case KindDecimal:
		return v.d.Equal(other.d)
	case KindInet:
		return v.ip == other.ip
	case KindBigInt:
		return v.bi.Cmp(other.bi) == 0
	case KindArray:
		if v.elem != other.elem || len(v.items) != len(other.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(other.items[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
