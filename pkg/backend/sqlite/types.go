package sqlite

import (
	"database/sql/driver"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wireql/wireql/pkg/codec"
	"github.com/wireql/wireql/pkg/sqlerr"
)

// newRegistry builds the sqlite registry. sqlite has no numeric wire type
// identifiers on the wire, so each kind is registered under a synthetic
// identifier equal to its own tag.
func newRegistry() *codec.Registry {
	reg := codec.NewRegistry()
	for k := codec.KindBool; k <= codec.KindBigInt; k++ {
		reg.RegisterWireType(uint32(k), k.String(), k)
	}
	return reg
}

// declKind maps a declared column type onto a kind following sqlite's
// affinity rules: substring matches, INT before CHAR, blank declarations
// (expressions) decay to text.
func declKind(decl string) codec.Kind {
	d := strings.ToUpper(decl)
	switch {
	case strings.Contains(d, "INT"):
		return codec.KindInt8
	case strings.Contains(d, "CHAR"), strings.Contains(d, "CLOB"), strings.Contains(d, "TEXT"):
		return codec.KindText
	case strings.Contains(d, "BLOB"):
		return codec.KindBytes
	case strings.Contains(d, "REAL"), strings.Contains(d, "FLOA"), strings.Contains(d, "DOUB"):
		return codec.KindFloat8
	case strings.Contains(d, "BOOL"):
		return codec.KindBool
	case strings.Contains(d, "DEC"), strings.Contains(d, "NUMERIC"):
		return codec.KindDecimal
	case strings.Contains(d, "DATE"), strings.Contains(d, "TIME"):
		return codec.KindTimestamp
	case strings.Contains(d, "JSON"):
		return codec.KindJSON
	default:
		return codec.KindText
	}
}

func columnTypeInfo(name, decl string) codec.TypeInfo {
	kind := declKind(decl)
	typeName := strings.ToLower(decl)
	if typeName == "" {
		typeName = kind.String()
	}
	return codec.TypeInfo{
		Name:     name,
		TypeName: typeName,
		WireType: uint32(kind),
		Kind:     kind,
		Nullable: true,
	}
}

const (
	sqliteDateLayout     = "2006-01-02"
	sqliteDateTimeLayout = "2006-01-02 15:04:05.999999"
)

// convertNative reshapes one dynamically typed sqlite value to the
// column's declared kind. sqlite stores whatever was inserted, so every
// storage class must be convertible to every declared kind we map.
func convertNative(ti codec.TypeInfo, v driver.Value) (codec.Value, error) {
	if v == nil {
		return codec.Null(ti.Kind), nil
	}
	switch n := v.(type) {
	case int64:
		return intValue(ti.Kind, n), nil
	case float64:
		return floatValue(ti.Kind, n), nil
	case bool:
		return codec.Bool(n), nil
	case time.Time:
		return timeValue(ti.Kind, n), nil
	case string:
		return textValue(ti.Kind, n), nil
	case []byte:
		return blobValue(ti.Kind, n), nil
	default:
		return codec.Value{}, sqlerr.Newf(sqlerr.KindProtocol, "unexpected sqlite value of type %T", v)
	}
}

func intValue(kind codec.Kind, n int64) codec.Value {
	switch kind {
	case codec.KindBool:
		return codec.Bool(n != 0)
	case codec.KindInt2:
		return codec.Int2(int16(n))
	case codec.KindInt4:
		return codec.Int4(int32(n))
	case codec.KindFloat8:
		return codec.Float8(float64(n))
	case codec.KindDecimal:
		return codec.Decimal(decimal.NewFromInt(n))
	case codec.KindText:
		return codec.Text(strconv.FormatInt(n, 10))
	default:
		return codec.Int8(n)
	}
}

func floatValue(kind codec.Kind, f float64) codec.Value {
	switch kind {
	case codec.KindFloat4:
		return codec.Float4(float32(f))
	case codec.KindDecimal:
		return codec.Decimal(decimal.NewFromFloat(f))
	case codec.KindText:
		return codec.Text(strconv.FormatFloat(f, 'g', -1, 64))
	default:
		return codec.Float8(f)
	}
}

func timeValue(kind codec.Kind, t time.Time) codec.Value {
	switch kind {
	case codec.KindDate:
		return codec.Date(t)
	case codec.KindTimestampTZ:
		return codec.TimestampTZ(t)
	default:
		return codec.Timestamp(t)
	}
}

func textValue(kind codec.Kind, s string) codec.Value {
	switch kind {
	case codec.KindBool:
		switch s {
		case "1", "true", "TRUE":
			return codec.Bool(true)
		case "0", "false", "FALSE":
			return codec.Bool(false)
		}
	case codec.KindInt2, codec.KindInt4, codec.KindInt8:
		n, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			return intValue(kind, n)
		}
	case codec.KindFloat4, codec.KindFloat8:
		f, err := strconv.ParseFloat(s, 64)
		if err == nil {
			return floatValue(kind, f)
		}
	case codec.KindDecimal:
		d, err := decimal.NewFromString(s)
		if err == nil {
			return codec.Decimal(d)
		}
	case codec.KindDate:
		t, err := time.ParseInLocation(sqliteDateLayout, s, time.UTC)
		if err == nil {
			return codec.Date(t)
		}
	case codec.KindTimestamp, codec.KindTimestampTZ:
		t, err := time.ParseInLocation(sqliteDateTimeLayout, s, time.UTC)
		if err == nil {
			if kind == codec.KindTimestampTZ {
				return codec.TimestampTZ(t)
			}
			return codec.Timestamp(t)
		}
	case codec.KindBytes:
		return codec.BytesCopy([]byte(s))
	case codec.KindJSON:
		return codec.JSON([]byte(s)).Clone()
	}
	// Declared affinity did not hold for this cell; hand back the stored
	// text and let the encode step report the mismatch.
	return codec.Text(s)
}

func blobValue(kind codec.Kind, b []byte) codec.Value {
	switch kind {
	case codec.KindText:
		return codec.Text(string(b))
	case codec.KindJSON:
		return codec.JSON(b).Clone()
	default:
		return codec.BytesCopy(b)
	}
}
