package mysql

import (
	"math"
	"testing"
	"time"

	gomysql "github.com/siddontang/go-mysql/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wireql/wireql/pkg/codec"
	"github.com/wireql/wireql/pkg/sqlerr"
)

func TestWireKinds(t *testing.T) {
	cases := []struct {
		fieldType byte
		want      codec.Kind
	}{
		{gomysql.MYSQL_TYPE_TINY, codec.KindInt2},
		{gomysql.MYSQL_TYPE_LONG, codec.KindInt4},
		{gomysql.MYSQL_TYPE_LONGLONG, codec.KindInt8},
		{gomysql.MYSQL_TYPE_DOUBLE, codec.KindFloat8},
		{gomysql.MYSQL_TYPE_NEWDECIMAL, codec.KindDecimal},
		{gomysql.MYSQL_TYPE_VAR_STRING, codec.KindText},
		{gomysql.MYSQL_TYPE_BLOB, codec.KindBytes},
		{gomysql.MYSQL_TYPE_DATE, codec.KindDate},
		{gomysql.MYSQL_TYPE_DATETIME, codec.KindTimestamp},
		{gomysql.MYSQL_TYPE_TIMESTAMP, codec.KindTimestampTZ},
		{gomysql.MYSQL_TYPE_JSON, codec.KindJSON},
	}
	reg := newRegistry()
	for _, tc := range cases {
		ti, ok := reg.TypeInfoFor(uint32(tc.fieldType))
		require.True(t, ok, "type %d", tc.fieldType)
		assert.Equal(t, tc.want, ti.Kind, "type %d", tc.fieldType)
	}
}

func TestFieldTypeInfo(t *testing.T) {
	reg := newRegistry()

	field := &gomysql.Field{
		Name: []byte("id"),
		Type: gomysql.MYSQL_TYPE_LONGLONG,
		Flag: gomysql.NOT_NULL_FLAG,
	}
	ti := fieldTypeInfo(reg, field)
	assert.Equal(t, "id", ti.Name)
	assert.Equal(t, codec.KindInt8, ti.Kind)
	assert.False(t, ti.Nullable)

	field = &gomysql.Field{Name: []byte("note"), Type: gomysql.MYSQL_TYPE_VARCHAR}
	ti = fieldTypeInfo(reg, field)
	assert.Equal(t, codec.KindText, ti.Kind)
	assert.True(t, ti.Nullable)

	// Unmapped types decay to text rather than failing the whole row.
	field = &gomysql.Field{Name: []byte("geo"), Type: gomysql.MYSQL_TYPE_GEOMETRY}
	ti = fieldTypeInfo(reg, field)
	assert.Equal(t, codec.KindText, ti.Kind)
	assert.Equal(t, "unknown", ti.TypeName)
}

func TestFieldTypeInfo_UnsignedColumnsWiden(t *testing.T) {
	reg := newRegistry()
	cases := []struct {
		fieldType byte
		want      codec.Kind
	}{
		{gomysql.MYSQL_TYPE_SHORT, codec.KindInt4},
		{gomysql.MYSQL_TYPE_LONG, codec.KindInt8},
		{gomysql.MYSQL_TYPE_LONGLONG, codec.KindBigInt},
		{gomysql.MYSQL_TYPE_DOUBLE, codec.KindFloat8},
	}
	for _, tc := range cases {
		field := &gomysql.Field{
			Name: []byte("n"),
			Type: tc.fieldType,
			Flag: gomysql.UNSIGNED_FLAG,
		}
		assert.Equal(t, tc.want, fieldTypeInfo(reg, field).Kind, "type %d", tc.fieldType)
	}
}

func TestUnsignedValue_KeepsFullRange(t *testing.T) {
	// BIGINT UNSIGNED above MaxInt64 must not wrap negative.
	v := unsignedValue(codec.KindBigInt, math.MaxUint64)
	bi, err := v.BigInt()
	require.NoError(t, err)
	assert.Equal(t, "18446744073709551615", bi.String())

	n, err := unsignedValue(codec.KindInt8, 7).Int()
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}

func TestIntegerValue(t *testing.T) {
	n, err := integerValue(codec.KindInt2, -5).Int()
	require.NoError(t, err)
	assert.Equal(t, int64(-5), n)
	assert.Equal(t, codec.KindInt2, integerValue(codec.KindInt2, -5).Kind())

	b, err := integerValue(codec.KindBool, 1).Bool()
	require.NoError(t, err)
	assert.True(t, b)

	assert.Equal(t, codec.KindInt8, integerValue(codec.KindInt8, 9).Kind())
}

func TestStringValue(t *testing.T) {
	v, err := stringValue(codec.KindDate, []byte("2024-03-14"))
	require.NoError(t, err)
	ts, err := v.Time()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), ts)

	v, err = stringValue(codec.KindTimestamp, []byte("2024-03-14 15:09:26.535897"))
	require.NoError(t, err)
	ts, err = v.Time()
	require.NoError(t, err)
	assert.Equal(t, 535897000, ts.Nanosecond())

	v, err = stringValue(codec.KindTime, []byte("13:14:15.5"))
	require.NoError(t, err)
	d, err := v.TimeOfDay()
	require.NoError(t, err)
	assert.Equal(t, 13*time.Hour+14*time.Minute+15*time.Second+500*time.Millisecond, d)

	v, err = stringValue(codec.KindDecimal, []byte("-12.75"))
	require.NoError(t, err)
	dec, err := v.Decimal()
	require.NoError(t, err)
	assert.Equal(t, "-12.75", dec.String())

	_, err = stringValue(codec.KindDate, []byte("not a date"))
	require.Error(t, err)
	assert.True(t, sqlerr.IsKind(err, sqlerr.KindProtocol))

	v, err = stringValue(codec.KindBytes, []byte{0x00, 0x01})
	require.NoError(t, err)
	raw, err := v.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x01}, raw)
}

func TestParseTime(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"13:14:15.5", 13*time.Hour + 14*time.Minute + 15*time.Second + 500*time.Millisecond},
		{"-01:02:03", -(time.Hour + 2*time.Minute + 3*time.Second)},
		{"838:59:59", 838*time.Hour + 59*time.Minute + 59*time.Second},
		{"-838:59:59", -(838*time.Hour + 59*time.Minute + 59*time.Second)},
		{"00:00:00", 0},
		{"123:45:06.250000", 123*time.Hour + 45*time.Minute + 6*time.Second + 250*time.Millisecond},
	}
	for _, tc := range cases {
		d, err := parseTime(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, d, tc.in)
	}

	for _, bad := range []string{"", "12:34", "12:60:00", "12:00:61", "-:00:00", "abc"} {
		_, err := parseTime(bad)
		assert.Error(t, err, bad)
	}

	v, err := stringValue(codec.KindTime, []byte("-90:00:30"))
	require.NoError(t, err)
	d, err := v.TimeOfDay()
	require.NoError(t, err)
	assert.Equal(t, -(90*time.Hour + 30*time.Second), d)
}

func TestClassifyQuery(t *testing.T) {
	server := &gomysql.MyError{Code: 1064, State: "42000", Message: "syntax"}
	err := classifyQuery(server)
	assert.True(t, sqlerr.IsKind(err, sqlerr.KindQuery))
	se, ok := sqlerr.AsServerError(err)
	require.True(t, ok)
	assert.Equal(t, uint32(1064), se.Code)

	err = classifyQuery(assertableErr{})
	assert.True(t, sqlerr.IsKind(err, sqlerr.KindProtocol))
}

func TestClassifyConnect(t *testing.T) {
	denied := &gomysql.MyError{Code: gomysql.ER_ACCESS_DENIED_ERROR, State: "28000", Message: "nope"}
	assert.True(t, sqlerr.IsKind(classifyConnect(denied), sqlerr.KindAuth))

	other := &gomysql.MyError{Code: 1040, Message: "too many connections"}
	assert.True(t, sqlerr.IsKind(classifyConnect(other), sqlerr.KindConnection))

	assert.True(t, sqlerr.IsKind(classifyConnect(assertableErr{}), sqlerr.KindConnection))
}

type assertableErr struct{}

func (assertableErr) Error() string { return "transport went sideways" }
