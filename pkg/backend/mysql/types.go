package mysql

import (
	gomysql "github.com/siddontang/go-mysql/mysql"

	"github.com/wireql/wireql/pkg/codec"
)

// wireKinds maps the mysql-family column type identifiers onto registry
// kinds. Types with no distinct native value shape (enum, set, geometry)
// decay to text.
var wireKinds = map[byte]codec.Kind{
	gomysql.MYSQL_TYPE_TINY:        codec.KindInt2,
	gomysql.MYSQL_TYPE_SHORT:       codec.KindInt2,
	gomysql.MYSQL_TYPE_INT24:       codec.KindInt4,
	gomysql.MYSQL_TYPE_LONG:        codec.KindInt4,
	gomysql.MYSQL_TYPE_LONGLONG:    codec.KindInt8,
	gomysql.MYSQL_TYPE_YEAR:        codec.KindInt4,
	gomysql.MYSQL_TYPE_FLOAT:       codec.KindFloat4,
	gomysql.MYSQL_TYPE_DOUBLE:      codec.KindFloat8,
	gomysql.MYSQL_TYPE_DECIMAL:     codec.KindDecimal,
	gomysql.MYSQL_TYPE_NEWDECIMAL:  codec.KindDecimal,
	gomysql.MYSQL_TYPE_VARCHAR:     codec.KindText,
	gomysql.MYSQL_TYPE_VAR_STRING:  codec.KindText,
	gomysql.MYSQL_TYPE_STRING:      codec.KindText,
	gomysql.MYSQL_TYPE_ENUM:        codec.KindText,
	gomysql.MYSQL_TYPE_SET:         codec.KindText,
	gomysql.MYSQL_TYPE_TINY_BLOB:   codec.KindBytes,
	gomysql.MYSQL_TYPE_MEDIUM_BLOB: codec.KindBytes,
	gomysql.MYSQL_TYPE_LONG_BLOB:   codec.KindBytes,
	gomysql.MYSQL_TYPE_BLOB:        codec.KindBytes,
	gomysql.MYSQL_TYPE_BIT:         codec.KindBytes,
	gomysql.MYSQL_TYPE_DATE:        codec.KindDate,
	gomysql.MYSQL_TYPE_NEWDATE:     codec.KindDate,
	gomysql.MYSQL_TYPE_TIME:        codec.KindTime,
	gomysql.MYSQL_TYPE_DATETIME:    codec.KindTimestamp,
	gomysql.MYSQL_TYPE_TIMESTAMP:   codec.KindTimestampTZ,
	gomysql.MYSQL_TYPE_JSON:        codec.KindJSON,
}

// newRegistry builds the mysql backend's codec registry from its wire
// type table.
func newRegistry() *codec.Registry {
	reg := codec.NewRegistry()
	for id, kind := range wireKinds {
		reg.RegisterWireType(uint32(id), kind.String(), kind)
	}
	return reg
}

func fieldTypeInfo(reg *codec.Registry, field *gomysql.Field) codec.TypeInfo {
	ti, ok := reg.TypeInfoFor(uint32(field.Type))
	if !ok {
		ti = codec.TypeInfo{TypeName: "unknown", WireType: uint32(field.Type), Kind: codec.KindText}
	}
	ti.Name = string(field.Name)
	ti.Nullable = field.Flag&gomysql.NOT_NULL_FLAG == 0
	if field.Flag&gomysql.UNSIGNED_FLAG != 0 {
		ti.Kind = unsignedKind(ti.Kind)
	}
	return ti
}

// unsignedKind widens an integer kind so the column's full unsigned range
// fits. BIGINT UNSIGNED exceeds int64 and decodes as an arbitrary-precision
// integer.
func unsignedKind(k codec.Kind) codec.Kind {
	switch k {
	case codec.KindInt2:
		return codec.KindInt4
	case codec.KindInt4:
		return codec.KindInt8
	case codec.KindInt8:
		return codec.KindBigInt
	default:
		return k
	}
}
