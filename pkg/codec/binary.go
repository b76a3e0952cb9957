package codec

import (
	"encoding/binary"
	"math"
	"math/big"
	"net/netip"
	"time"

	"github.com/google/uuid"
)

// Binary format codecs. Integers and floats travel big-endian (network
// order); the temporal kinds use the 2000-01-01 epoch at microsecond
// resolution. Decimal and JSON reuse their text layout in binary mode:
// neither has a representation that is smaller or less ambiguous than its
// text form.

var binaryEpoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

const (
	inetFamilyV4 = 2
	inetFamilyV6 = 3
)

func lengthErr(kind Kind, want, got int) error {
	return decodeErr(kind, "expected %d bytes, got %d", want, got)
}

func encBinBool(buf []byte, v Value) ([]byte, error) {
	if v.b {
		return append(buf, 1), nil
	}
	return append(buf, 0), nil
}

func decBinBool(data []byte, ti TypeInfo) (Value, error) {
	if len(data) != 1 {
		return Value{}, lengthErr(ti.Kind, 1, len(data))
	}
	switch data[0] {
	case 0:
		return Bool(false), nil
	case 1:
		return Bool(true), nil
	default:
		return Value{}, decodeErr(ti.Kind, "invalid boolean byte %#x", data[0])
	}
}

func encBinInt2(buf []byte, v Value) ([]byte, error) {
	return binary.BigEndian.AppendUint16(buf, uint16(int16(v.i))), nil
}

func decBinInt2(data []byte, ti TypeInfo) (Value, error) {
	if len(data) != 2 {
		return Value{}, lengthErr(ti.Kind, 2, len(data))
	}
	return Int2(int16(binary.BigEndian.Uint16(data))), nil
}

func encBinInt4(buf []byte, v Value) ([]byte, error) {
	return binary.BigEndian.AppendUint32(buf, uint32(int32(v.i))), nil
}

func decBinInt4(data []byte, ti TypeInfo) (Value, error) {
	if len(data) != 4 {
		return Value{}, lengthErr(ti.Kind, 4, len(data))
	}
	return Int4(int32(binary.BigEndian.Uint32(data))), nil
}

func encBinInt8(buf []byte, v Value) ([]byte, error) {
	return binary.BigEndian.AppendUint64(buf, uint64(v.i)), nil
}

func decBinInt8(data []byte, ti TypeInfo) (Value, error) {
	if len(data) != 8 {
		return Value{}, lengthErr(ti.Kind, 8, len(data))
	}
	return Int8(int64(binary.BigEndian.Uint64(data))), nil
}

func encBinFloat4(buf []byte, v Value) ([]byte, error) {
	return binary.BigEndian.AppendUint32(buf, math.Float32bits(float32(v.f))), nil
}

func decBinFloat4(data []byte, ti TypeInfo) (Value, error) {
	if len(data) != 4 {
		return Value{}, lengthErr(ti.Kind, 4, len(data))
	}
	return Float4(math.Float32frombits(binary.BigEndian.Uint32(data))), nil
}

func encBinFloat8(buf []byte, v Value) ([]byte, error) {
	return binary.BigEndian.AppendUint64(buf, math.Float64bits(v.f)), nil
}

func decBinFloat8(data []byte, ti TypeInfo) (Value, error) {
	if len(data) != 8 {
		return Value{}, lengthErr(ti.Kind, 8, len(data))
	}
	return Float8(math.Float64frombits(binary.BigEndian.Uint64(data))), nil
}

func encBinBytes(buf []byte, v Value) ([]byte, error) {
	return append(buf, v.raw...), nil
}

func decBinBytes(data []byte, ti TypeInfo) (Value, error) {
	// Borrows the wire buffer. Clone before the buffer is recycled.
	return Bytes(data), nil
}

func encBinDate(buf []byte, v Value) ([]byte, error) {
	days := int32(v.t.Sub(binaryEpoch) / (24 * time.Hour))
	return binary.BigEndian.AppendUint32(buf, uint32(days)), nil
}

func decBinDate(data []byte, ti TypeInfo) (Value, error) {
	if len(data) != 4 {
		return Value{}, lengthErr(ti.Kind, 4, len(data))
	}
	days := int32(binary.BigEndian.Uint32(data))
	return Date(binaryEpoch.AddDate(0, 0, int(days))), nil
}

func encBinTime(buf []byte, v Value) ([]byte, error) {
	return binary.BigEndian.AppendUint64(buf, uint64(time.Duration(v.i).Microseconds())), nil
}

func decBinTime(data []byte, ti TypeInfo) (Value, error) {
	if len(data) != 8 {
		return Value{}, lengthErr(ti.Kind, 8, len(data))
	}
	// Signed: elapsed-time backends send negative and beyond-a-day values.
	us := int64(binary.BigEndian.Uint64(data))
	return TimeOfDay(time.Duration(us) * time.Microsecond), nil
}

func encBinTimestamp(buf []byte, v Value) ([]byte, error) {
	us := v.t.Sub(binaryEpoch).Microseconds()
	return binary.BigEndian.AppendUint64(buf, uint64(us)), nil
}

func decBinTimestamp(data []byte, ti TypeInfo) (Value, error) {
	if len(data) != 8 {
		return Value{}, lengthErr(ti.Kind, 8, len(data))
	}
	us := int64(binary.BigEndian.Uint64(data))
	return Timestamp(binaryEpoch.Add(time.Duration(us) * time.Microsecond)), nil
}

func encBinTimestampTZ(buf []byte, v Value) ([]byte, error) {
	us := v.t.Sub(binaryEpoch).Microseconds()
	return binary.BigEndian.AppendUint64(buf, uint64(us)), nil
}

func decBinTimestampTZ(data []byte, ti TypeInfo) (Value, error) {
	if len(data) != 8 {
		return Value{}, lengthErr(ti.Kind, 8, len(data))
	}
	us := int64(binary.BigEndian.Uint64(data))
	return TimestampTZ(binaryEpoch.Add(time.Duration(us) * time.Microsecond)), nil
}

func encBinUUID(buf []byte, v Value) ([]byte, error) {
	return append(buf, v.u[:]...), nil
}

func decBinUUID(data []byte, ti TypeInfo) (Value, error) {
	if len(data) != 16 {
		return Value{}, lengthErr(ti.Kind, 16, len(data))
	}
	u, err := uuid.FromBytes(data)
	if err != nil {
		return Value{}, decodeErr(ti.Kind, "invalid uuid bytes")
	}
	return UUID(u), nil
}

func encBinInet(buf []byte, v Value) ([]byte, error) {
	addr := v.ip.Addr()
	family := byte(inetFamilyV4)
	if addr.Is6() {
		family = inetFamilyV6
	}
	raw := addr.AsSlice()
	buf = append(buf, family, byte(v.ip.Bits()), 0, byte(len(raw)))
	return append(buf, raw...), nil
}

func decBinInet(data []byte, ti TypeInfo) (Value, error) {
	if len(data) < 4 {
		return Value{}, decodeErr(ti.Kind, "network value truncated: %d bytes", len(data))
	}
	family, bits, addrLen := data[0], int(data[1]), int(data[3])
	if len(data) != 4+addrLen {
		return Value{}, lengthErr(ti.Kind, 4+addrLen, len(data))
	}
	switch {
	case family == inetFamilyV4 && addrLen == 4:
	case family == inetFamilyV6 && addrLen == 16:
	default:
		return Value{}, decodeErr(ti.Kind, "invalid address family %d with %d address bytes", family, addrLen)
	}
	addr, ok := netip.AddrFromSlice(data[4 : 4+addrLen])
	if !ok || bits > addr.BitLen() {
		return Value{}, decodeErr(ti.Kind, "invalid network address payload")
	}
	return Inet(netip.PrefixFrom(addr, bits)), nil
}

func encBinBigInt(buf []byte, v Value) ([]byte, error) {
	sign := byte(0)
	if v.bi.Sign() < 0 {
		sign = 1
	}
	buf = append(buf, sign)
	return append(buf, v.bi.Bytes()...), nil
}

func decBinBigInt(data []byte, ti TypeInfo) (Value, error) {
	if len(data) < 1 {
		return Value{}, decodeErr(ti.Kind, "integer payload truncated")
	}
	bi := new(big.Int).SetBytes(data[1:])
	if data[0] == 1 {
		bi.Neg(bi)
	} else if data[0] != 0 {
		return Value{}, decodeErr(ti.Kind, "invalid sign byte %#x", data[0])
	}
	return Value{kind: KindBigInt, valid: true, bi: bi}, nil
}
