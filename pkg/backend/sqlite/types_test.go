package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wireql/wireql/pkg/codec"
)

func TestDeclKind(t *testing.T) {
	cases := []struct {
		decl string
		want codec.Kind
	}{
		{"INTEGER", codec.KindInt8},
		{"int", codec.KindInt8},
		{"BIGINT", codec.KindInt8},
		{"TINYINT", codec.KindInt8},
		{"TEXT", codec.KindText},
		{"VARCHAR(255)", codec.KindText},
		{"NCHAR(10)", codec.KindText},
		{"CLOB", codec.KindText},
		{"BLOB", codec.KindBytes},
		{"REAL", codec.KindFloat8},
		{"DOUBLE PRECISION", codec.KindFloat8},
		{"FLOAT", codec.KindFloat8},
		{"BOOLEAN", codec.KindBool},
		{"DECIMAL(10,2)", codec.KindDecimal},
		{"NUMERIC", codec.KindDecimal},
		{"DATETIME", codec.KindTimestamp},
		{"DATE", codec.KindTimestamp},
		{"JSON", codec.KindJSON},
		{"", codec.KindText},
		{"WIDGET", codec.KindText},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, declKind(tc.decl), "decl %q", tc.decl)
	}
}

func TestColumnTypeInfo(t *testing.T) {
	ti := columnTypeInfo("age", "INTEGER")
	assert.Equal(t, "age", ti.Name)
	assert.Equal(t, "integer", ti.TypeName)
	assert.Equal(t, codec.KindInt8, ti.Kind)
	assert.True(t, ti.Nullable)

	// Expression columns have no declared type.
	ti = columnTypeInfo("count(*)", "")
	assert.Equal(t, codec.KindText, ti.Kind)
	assert.Equal(t, "text", ti.TypeName)
}

func TestConvertNative_Null(t *testing.T) {
	v, err := convertNative(codec.TypeInfo{Kind: codec.KindInt8}, nil)
	require.NoError(t, err)
	assert.True(t, v.IsNull())
	assert.Equal(t, codec.KindInt8, v.Kind())
}

func TestConvertNative_StorageClassCoercion(t *testing.T) {
	// Integer storage feeding a boolean column.
	v, err := convertNative(codec.TypeInfo{Kind: codec.KindBool}, int64(1))
	require.NoError(t, err)
	b, err := v.Bool()
	require.NoError(t, err)
	assert.True(t, b)

	// Integer storage feeding a text column (no declared type).
	v, err = convertNative(codec.TypeInfo{Kind: codec.KindText}, int64(42))
	require.NoError(t, err)
	s, err := v.Text()
	require.NoError(t, err)
	assert.Equal(t, "42", s)

	// Text storage feeding an integer column.
	v, err = convertNative(codec.TypeInfo{Kind: codec.KindInt8}, "17")
	require.NoError(t, err)
	n, err := v.Int()
	require.NoError(t, err)
	assert.Equal(t, int64(17), n)

	// Text storage feeding a decimal column.
	v, err = convertNative(codec.TypeInfo{Kind: codec.KindDecimal}, "99.90")
	require.NoError(t, err)
	d, err := v.Decimal()
	require.NoError(t, err)
	assert.Equal(t, "99.9", d.String())

	// Time storage (driver-converted) feeding a datetime column.
	ts := time.Date(2024, 3, 14, 9, 30, 0, 0, time.UTC)
	v, err = convertNative(codec.TypeInfo{Kind: codec.KindTimestamp}, ts)
	require.NoError(t, err)
	got, err := v.Time()
	require.NoError(t, err)
	assert.True(t, ts.Equal(got))
}

func TestConvertNative_TextDates(t *testing.T) {
	v, err := convertNative(codec.TypeInfo{Kind: codec.KindTimestamp}, "2024-03-14 09:30:00")
	require.NoError(t, err)
	got, err := v.Time()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 14, 9, 30, 0, 0, time.UTC), got)

	v, err = convertNative(codec.TypeInfo{Kind: codec.KindDate}, "2024-03-14")
	require.NoError(t, err)
	got, err = v.Time()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), got)
}

func TestConvertNative_AffinityViolationSurfacesStoredValue(t *testing.T) {
	// sqlite happily stores 'abc' in an INTEGER column; the mismatch is
	// reported at encode time, not silently zeroed here.
	v, err := convertNative(codec.TypeInfo{Kind: codec.KindInt8}, "abc")
	require.NoError(t, err)
	assert.Equal(t, codec.KindText, v.Kind())

	reg := newRegistry()
	_, err = reg.Encode(nil, v, codec.TypeInfo{Kind: codec.KindInt8}, codec.FormatText)
	require.Error(t, err)
}

func TestConvertNative_Blobs(t *testing.T) {
	v, err := convertNative(codec.TypeInfo{Kind: codec.KindBytes}, []byte{0xde, 0xad})
	require.NoError(t, err)
	raw, err := v.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad}, raw)
	assert.False(t, v.Borrowed())

	v, err = convertNative(codec.TypeInfo{Kind: codec.KindText}, []byte("stored as blob"))
	require.NoError(t, err)
	s, err := v.Text()
	require.NoError(t, err)
	assert.Equal(t, "stored as blob", s)
}
