package codec

import (
	"math"

	"github.com/wireql/wireql/pkg/sqlerr"
)

type encodeFunc func(buf []byte, v Value) ([]byte, error)
type decodeFunc func(data []byte, ti TypeInfo) (Value, error)

type codecEntry struct {
	enc [2]encodeFunc
	dec [2]decodeFunc
}

// Registry is the type-directed encode/decode table for one backend. The
// per-kind codecs are shared; the wire-type table is supplied by the
// backend when it constructs its registry (the plug-in contract: the
// registry never learns backend opcodes, only type identifiers).
type Registry struct {
	wireTypes map[uint32]TypeInfo
	codecs    map[Kind]*codecEntry
}

// NewRegistry returns a registry with codecs for every supported kind in
// both the text and binary formats, and an empty wire-type table.
func NewRegistry() *Registry {
	r := &Registry{
		wireTypes: make(map[uint32]TypeInfo),
		codecs:    make(map[Kind]*codecEntry),
	}
	r.registerBuiltins()
	return r
}

func (r *Registry) register(kind Kind, textEnc, binEnc encodeFunc, textDec, binDec decodeFunc) {
	r.codecs[kind] = &codecEntry{
		enc: [2]encodeFunc{FormatText: textEnc, FormatBinary: binEnc},
		dec: [2]decodeFunc{FormatText: textDec, FormatBinary: binDec},
	}
}

// RegisterWireType maps one backend wire type identifier onto a kind.
// Backends call this for every entry of their type table.
func (r *Registry) RegisterWireType(id uint32, typeName string, kind Kind) {
	r.wireTypes[id] = TypeInfo{TypeName: typeName, WireType: id, Kind: kind, Nullable: true}
}

// TypeInfoFor resolves a wire type identifier reported by the server.
func (r *Registry) TypeInfoFor(id uint32) (TypeInfo, bool) {
	ti, ok := r.wireTypes[id]
	return ti, ok
}

// Encode appends the wire representation of v, as declared type ti, to
// buf. NULL values are rejected: NULL travels out-of-band as an absent
// payload, never as encoded bytes.
func (r *Registry) Encode(buf []byte, v Value, ti TypeInfo, format Format) ([]byte, error) {
	if v.IsNull() {
		return nil, sqlerr.New(sqlerr.KindTypeMismatch, "NULL has no wire encoding, pass it out-of-band")
	}
	if ti.Kind == KindArray {
		return r.encodeArray(buf, v, ti, format)
	}
	coerced, err := coerce(v, ti.Kind)
	if err != nil {
		return nil, err
	}
	entry, ok := r.codecs[ti.Kind]
	if !ok {
		return nil, sqlerr.Newf(sqlerr.KindTypeMismatch, "no codec for kind %s", ti.Kind)
	}
	return entry.enc[format](buf, coerced)
}

// Decode converts one column payload into a Value. A nil payload is the
// out-of-band NULL marker. Unexpected lengths and unrecognized kinds fail
// with a type mismatch; a partially decoded Value is never returned.
func (r *Registry) Decode(data []byte, ti TypeInfo, format Format) (Value, error) {
	if data == nil {
		if ti.Kind == KindArray {
			return NullArray(ti.Elem), nil
		}
		return Null(ti.Kind), nil
	}
	if ti.Kind == KindArray {
		return r.decodeArray(data, ti, format)
	}
	entry, ok := r.codecs[ti.Kind]
	if !ok {
		return Value{}, sqlerr.Newf(sqlerr.KindTypeMismatch, "no codec for kind %s (wire type %d)", ti.Kind, ti.WireType)
	}
	return entry.dec[format](data, ti)
}

// coerce reshapes v to the declared parameter kind. Only lossless integer
// width changes are permitted; anything else must match exactly.
func coerce(v Value, want Kind) (Value, error) {
	if v.Kind() == want {
		return v, nil
	}
	if isIntegerKind(v.Kind()) && isIntegerKind(want) {
		if !integerFits(v.i, want) {
			return Value{}, sqlerr.Newf(sqlerr.KindTypeMismatch,
				"integer %d overflows declared type %s", v.i, want)
		}
		out := v
		out.kind = want
		return out, nil
	}
	return Value{}, sqlerr.Newf(sqlerr.KindTypeMismatch,
		"cannot convert %s value to declared type %s", v.Kind(), want)
}

func isIntegerKind(k Kind) bool {
	return k == KindInt2 || k == KindInt4 || k == KindInt8
}

func integerFits(v int64, want Kind) bool {
	switch want {
	case KindInt2:
		return v >= math.MinInt16 && v <= math.MaxInt16
	case KindInt4:
		return v >= math.MinInt32 && v <= math.MaxInt32
	default:
		return true
	}
}

func (r *Registry) registerBuiltins() {
	r.register(KindBool, encTextBool, encBinBool, decTextBool, decBinBool)
	r.register(KindInt2, encTextInt, encBinInt2, decTextInt, decBinInt2)
	r.register(KindInt4, encTextInt, encBinInt4, decTextInt, decBinInt4)
	r.register(KindInt8, encTextInt, encBinInt8, decTextInt, decBinInt8)
	r.register(KindFloat4, encTextFloat4, encBinFloat4, decTextFloat4, decBinFloat4)
	r.register(KindFloat8, encTextFloat8, encBinFloat8, decTextFloat8, decBinFloat8)
	r.register(KindDecimal, encTextDecimal, encTextDecimal, decTextDecimal, decTextDecimal)
	r.register(KindText, encTextString, encTextString, decTextString, decTextString)
	r.register(KindBytes, encTextBytes, encBinBytes, decTextBytes, decBinBytes)
	r.register(KindDate, encTextDate, encBinDate, decTextDate, decBinDate)
	r.register(KindTime, encTextTime, encBinTime, decTextTime, decBinTime)
	r.register(KindTimestamp, encTextTimestamp, encBinTimestamp, decTextTimestamp, decBinTimestamp)
	r.register(KindTimestampTZ, encTextTimestampTZ, encBinTimestampTZ, decTextTimestampTZ, decBinTimestampTZ)
	r.register(KindUUID, encTextUUID, encBinUUID, decTextUUID, decBinUUID)
	r.register(KindJSON, encTextJSON, encTextJSON, decTextJSON, decTextJSON)
	r.register(KindInet, encTextInet, encBinInet, decTextInet, decBinInet)
	r.register(KindBigInt, encTextBigInt, encBinBigInt, decTextBigInt, decBinBigInt)
}
