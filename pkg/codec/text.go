package codec

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wireql/wireql/pkg/sqlerr"
)

// Text format codecs. Layouts follow the Postgres text conventions where
// one exists (t/f booleans, \x-prefixed hex blobs, space-separated
// timestamps at microsecond resolution).

const (
	textDateLayout        = "2006-01-02"
	textTimestampLayout   = "2006-01-02 15:04:05.999999"
	textTimestampTZLayout = "2006-01-02 15:04:05.999999-07:00"
)

func decodeErr(kind Kind, format string, args ...interface{}) error {
	return sqlerr.Newf(sqlerr.KindTypeMismatch, "decode %s: %s", kind, fmt.Sprintf(format, args...))
}

func encTextBool(buf []byte, v Value) ([]byte, error) {
	if v.b {
		return append(buf, 't'), nil
	}
	return append(buf, 'f'), nil
}

func decTextBool(data []byte, ti TypeInfo) (Value, error) {
	switch string(data) {
	case "t", "true":
		return Bool(true), nil
	case "f", "false":
		return Bool(false), nil
	default:
		return Value{}, decodeErr(ti.Kind, "invalid boolean literal %q", data)
	}
}

func encTextInt(buf []byte, v Value) ([]byte, error) {
	return strconv.AppendInt(buf, v.i, 10), nil
}

func decTextInt(data []byte, ti TypeInfo) (Value, error) {
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return Value{}, decodeErr(ti.Kind, "invalid integer literal %q", data)
	}
	if !integerFits(n, ti.Kind) {
		return Value{}, decodeErr(ti.Kind, "integer %d out of range", n)
	}
	return Value{kind: ti.Kind, valid: true, i: n}, nil
}

func encTextFloat4(buf []byte, v Value) ([]byte, error) {
	return strconv.AppendFloat(buf, v.f, 'g', -1, 32), nil
}

func encTextFloat8(buf []byte, v Value) ([]byte, error) {
	return strconv.AppendFloat(buf, v.f, 'g', -1, 64), nil
}

func decTextFloat4(data []byte, ti TypeInfo) (Value, error) {
	f, err := strconv.ParseFloat(string(data), 32)
	if err != nil {
		return Value{}, decodeErr(ti.Kind, "invalid float literal %q", data)
	}
	return Float4(float32(f)), nil
}

func decTextFloat8(data []byte, ti TypeInfo) (Value, error) {
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return Value{}, decodeErr(ti.Kind, "invalid float literal %q", data)
	}
	return Float8(f), nil
}

func encTextDecimal(buf []byte, v Value) ([]byte, error) {
	return append(buf, v.d.String()...), nil
}

func decTextDecimal(data []byte, ti TypeInfo) (Value, error) {
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return Value{}, decodeErr(ti.Kind, "invalid decimal literal %q", data)
	}
	return Decimal(d), nil
}

func encTextString(buf []byte, v Value) ([]byte, error) {
	return append(buf, v.s...), nil
}

func decTextString(data []byte, ti TypeInfo) (Value, error) {
	return Text(string(data)), nil
}

func encTextBytes(buf []byte, v Value) ([]byte, error) {
	buf = append(buf, '\\', 'x')
	dst := make([]byte, hex.EncodedLen(len(v.raw)))
	hex.Encode(dst, v.raw)
	return append(buf, dst...), nil
}

func decTextBytes(data []byte, ti TypeInfo) (Value, error) {
	s := string(data)
	if !strings.HasPrefix(s, `\x`) {
		return Value{}, decodeErr(ti.Kind, "blob literal missing \\x prefix")
	}
	raw, err := hex.DecodeString(s[2:])
	if err != nil {
		return Value{}, decodeErr(ti.Kind, "invalid hex in blob literal")
	}
	return Value{kind: KindBytes, valid: true, raw: raw}, nil
}

func encTextDate(buf []byte, v Value) ([]byte, error) {
	return v.t.AppendFormat(buf, textDateLayout), nil
}

func decTextDate(data []byte, ti TypeInfo) (Value, error) {
	t, err := time.ParseInLocation(textDateLayout, string(data), time.UTC)
	if err != nil {
		return Value{}, decodeErr(ti.Kind, "invalid date literal %q", data)
	}
	return Date(t), nil
}

func encTextTime(buf []byte, v Value) ([]byte, error) {
	return append(buf, formatTimeOfDay(time.Duration(v.i))...), nil
}

func decTextTime(data []byte, ti TypeInfo) (Value, error) {
	d, err := parseTimeOfDay(string(data))
	if err != nil {
		return Value{}, decodeErr(ti.Kind, "invalid time literal %q", data)
	}
	return TimeOfDay(d), nil
}

func encTextTimestamp(buf []byte, v Value) ([]byte, error) {
	return v.t.UTC().AppendFormat(buf, textTimestampLayout), nil
}

func decTextTimestamp(data []byte, ti TypeInfo) (Value, error) {
	t, err := time.ParseInLocation(textTimestampLayout, string(data), time.UTC)
	if err != nil {
		return Value{}, decodeErr(ti.Kind, "invalid timestamp literal %q", data)
	}
	return Timestamp(t), nil
}

func encTextTimestampTZ(buf []byte, v Value) ([]byte, error) {
	return v.t.AppendFormat(buf, textTimestampTZLayout), nil
}

func decTextTimestampTZ(data []byte, ti TypeInfo) (Value, error) {
	t, err := time.Parse(textTimestampTZLayout, string(data))
	if err != nil {
		return Value{}, decodeErr(ti.Kind, "invalid timestamptz literal %q", data)
	}
	return TimestampTZ(t), nil
}

func encTextUUID(buf []byte, v Value) ([]byte, error) {
	return append(buf, v.u.String()...), nil
}

func decTextUUID(data []byte, ti TypeInfo) (Value, error) {
	u, err := uuid.ParseBytes(data)
	if err != nil {
		return Value{}, decodeErr(ti.Kind, "invalid uuid literal %q", data)
	}
	return UUID(u), nil
}

func encTextJSON(buf []byte, v Value) ([]byte, error) {
	return append(buf, v.raw...), nil
}

func decTextJSON(data []byte, ti TypeInfo) (Value, error) {
	// Borrows the wire buffer. Clone before the buffer is recycled.
	return JSON(data), nil
}

func encTextInet(buf []byte, v Value) ([]byte, error) {
	return append(buf, v.ip.String()...), nil
}

func decTextInet(data []byte, ti TypeInfo) (Value, error) {
	p, err := netip.ParsePrefix(string(data))
	if err != nil {
		return Value{}, decodeErr(ti.Kind, "invalid network literal %q", data)
	}
	return Inet(p), nil
}

func encTextBigInt(buf []byte, v Value) ([]byte, error) {
	return append(buf, v.bi.String()...), nil
}

func decTextBigInt(data []byte, ti TypeInfo) (Value, error) {
	bi, ok := new(big.Int).SetString(string(data), 10)
	if !ok {
		return Value{}, decodeErr(ti.Kind, "invalid integer literal %q", data)
	}
	return Value{kind: KindBigInt, valid: true, bi: bi}, nil
}

// formatTimeOfDay renders a signed clock offset. Hours are not bounded:
// a backend whose TIME type is an elapsed time may exceed a day.
func formatTimeOfDay(d time.Duration) string {
	us := d.Microseconds()
	sign := ""
	if us < 0 {
		sign = "-"
		us = -us
	}
	h := us / 3_600_000_000
	us -= h * 3_600_000_000
	m := us / 60_000_000
	us -= m * 60_000_000
	s := us / 1_000_000
	us -= s * 1_000_000
	if us == 0 {
		return fmt.Sprintf("%s%02d:%02d:%02d", sign, h, m, s)
	}
	return fmt.Sprintf("%s%02d:%02d:%02d.%06d", sign, h, m, s, us)
}

func parseTimeOfDay(s string) (time.Duration, error) {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return 0, fmt.Errorf("expected hh:mm:ss, got %q", s)
	}
	h, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || h < 0 {
		return 0, fmt.Errorf("bad hours %q", parts[0])
	}
	m, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("bad minutes %q", parts[1])
	}
	secPart := parts[2]
	var us int64
	if i := strings.IndexByte(secPart, '.'); i >= 0 {
		digits := secPart[i+1:]
		secPart = secPart[:i]
		if len(digits) > 6 {
			digits = digits[:6]
		}
		f, err := strconv.ParseInt(digits, 10, 64)
		if err != nil || f < 0 {
			return 0, fmt.Errorf("bad fractional seconds %q", digits)
		}
		for j := len(digits); j < 6; j++ {
			f *= 10
		}
		us = f
	}
	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil || sec < 0 || sec > 59 {
		return 0, fmt.Errorf("bad seconds %q", secPart)
	}
	total := ((h*60+m)*60+sec)*1_000_000 + us
	if neg {
		total = -total
	}
	return time.Duration(total) * time.Microsecond, nil
}
