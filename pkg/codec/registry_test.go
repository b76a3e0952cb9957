package codec

import (
	"math"
	"math/big"
	"net/netip"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wireql/wireql/pkg/sqlerr"
)

// roundTrip encodes v under its own kind and decodes it back, in the given
// format. An empty encoding is normalized to a non-nil slice the way the
// execution pipeline does, since only nil marks NULL.
func roundTrip(t *testing.T, reg *Registry, v Value, format Format) Value {
	t.Helper()
	ti := TypeInfo{Kind: v.Kind(), Nullable: true}
	buf, err := reg.Encode(nil, v, ti, format)
	require.NoError(t, err, "encode %s as %s", v.Kind(), format)
	if buf == nil {
		buf = []byte{}
	}
	out, err := reg.Decode(buf, ti, format)
	require.NoError(t, err, "decode %s as %s", v.Kind(), format)
	return out
}

func TestRegistry_RoundTripAllKinds(t *testing.T) {
	reg := NewRegistry()

	bigVal, ok := new(big.Int).SetString("-123456789012345678901234567890", 10)
	require.True(t, ok)

	values := []Value{
		Bool(true),
		Bool(false),
		Int2(math.MinInt16),
		Int2(math.MaxInt16),
		Int4(math.MinInt32),
		Int4(math.MaxInt32),
		Int8(math.MinInt64),
		Int8(math.MaxInt64),
		Float4(-2.5),
		Float8(math.Pi),
		Decimal(decimal.RequireFromString("-98765.43210")),
		Text(""),
		Text("héllo, wörld"),
		Bytes(nil),
		Bytes([]byte{0x00, 0xff, 0x10}),
		Date(time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)),
		Date(time.Date(1969, 12, 31, 0, 0, 0, 0, time.UTC)),
		TimeOfDay(13*time.Hour + 14*time.Minute + 15*time.Second + 123456*time.Microsecond),
		TimeOfDay(0),
		TimeOfDay(-838*time.Hour - 59*time.Minute - 59*time.Second),
		TimeOfDay(100*time.Hour + time.Microsecond),
		Timestamp(time.Date(1999, 12, 31, 23, 59, 59, 999999000, time.UTC)),
		TimestampTZ(time.Date(2024, 6, 1, 12, 0, 0, 250000000, time.FixedZone("CEST", 2*3600))),
		UUID(uuid.MustParse("6f1a9fd8-239d-4dc7-a7ed-9b29f4a7f219")),
		JSON([]byte(`{"a":[1,2,3]}`)),
		Inet(netip.MustParsePrefix("192.168.1.0/24")),
		Inet(netip.MustParsePrefix("2001:db8::/32")),
		BigInt(big.NewInt(0)),
		BigInt(bigVal),
	}

	for _, v := range values {
		for _, format := range []Format{FormatText, FormatBinary} {
			got := roundTrip(t, reg, v, format)
			assert.True(t, v.Equal(got), "%s %s: want %+v got %+v", v.Kind(), format, v, got)
		}
	}
}

func TestRegistry_ElapsedTimeTextLayout(t *testing.T) {
	reg := NewRegistry()
	ti := TypeInfo{Kind: KindTime}

	buf, err := reg.Encode(nil, TimeOfDay(-(838*time.Hour + 59*time.Minute + 59*time.Second)), ti, FormatText)
	require.NoError(t, err)
	assert.Equal(t, "-838:59:59", string(buf))

	v, err := reg.Decode([]byte("-838:59:59"), ti, FormatText)
	require.NoError(t, err)
	d, err := v.TimeOfDay()
	require.NoError(t, err)
	assert.Equal(t, -(838*time.Hour + 59*time.Minute + 59*time.Second), d)
}

func TestRegistry_NullDecode(t *testing.T) {
	reg := NewRegistry()
	for _, format := range []Format{FormatText, FormatBinary} {
		v, err := reg.Decode(nil, TypeInfo{Kind: KindText}, format)
		require.NoError(t, err)
		assert.True(t, v.IsNull())
		assert.Equal(t, KindText, v.Kind())
	}
}

func TestRegistry_NullEncodeRejected(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Encode(nil, Null(KindInt8), TypeInfo{Kind: KindInt8}, FormatBinary)
	assert.True(t, sqlerr.IsKind(err, sqlerr.KindTypeMismatch))
}

func TestRegistry_EmptyPayloadIsNotNull(t *testing.T) {
	reg := NewRegistry()
	v, err := reg.Decode([]byte{}, TypeInfo{Kind: KindText}, FormatText)
	require.NoError(t, err)
	assert.False(t, v.IsNull())
	s, err := v.Text()
	require.NoError(t, err)
	assert.Equal(t, "", s)
}

func TestRegistry_IntegerWidening(t *testing.T) {
	reg := NewRegistry()

	buf, err := reg.Encode(nil, Int2(42), TypeInfo{Kind: KindInt8}, FormatBinary)
	require.NoError(t, err)
	v, err := reg.Decode(buf, TypeInfo{Kind: KindInt8}, FormatBinary)
	require.NoError(t, err)
	n, err := v.Int()
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}

func TestRegistry_IntegerNarrowingChecksRange(t *testing.T) {
	reg := NewRegistry()

	buf, err := reg.Encode(nil, Int8(1000), TypeInfo{Kind: KindInt2}, FormatBinary)
	require.NoError(t, err)
	assert.Len(t, buf, 2)

	_, err = reg.Encode(nil, Int8(math.MaxInt16+1), TypeInfo{Kind: KindInt2}, FormatBinary)
	assert.True(t, sqlerr.IsKind(err, sqlerr.KindTypeMismatch))
}

func TestRegistry_KindMismatchRejected(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Encode(nil, Text("5"), TypeInfo{Kind: KindInt8}, FormatText)
	assert.True(t, sqlerr.IsKind(err, sqlerr.KindTypeMismatch))

	_, err = reg.Encode(nil, Bool(true), TypeInfo{Kind: KindInt8}, FormatBinary)
	assert.True(t, sqlerr.IsKind(err, sqlerr.KindTypeMismatch))
}

func TestRegistry_BinaryLengthChecked(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Decode([]byte{1, 2, 3}, TypeInfo{Kind: KindInt4}, FormatBinary)
	assert.True(t, sqlerr.IsKind(err, sqlerr.KindTypeMismatch))

	_, err = reg.Decode([]byte{1}, TypeInfo{Kind: KindUUID}, FormatBinary)
	assert.True(t, sqlerr.IsKind(err, sqlerr.KindTypeMismatch))
}

func TestRegistry_WireTypeTable(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterWireType(700, "float4", KindFloat4)

	ti, ok := reg.TypeInfoFor(700)
	require.True(t, ok)
	assert.Equal(t, KindFloat4, ti.Kind)
	assert.Equal(t, "float4", ti.TypeName)
	assert.Equal(t, uint32(700), ti.WireType)

	_, ok = reg.TypeInfoFor(999999)
	assert.False(t, ok)
}

func TestRegistry_TextBoolForms(t *testing.T) {
	reg := NewRegistry()
	ti := TypeInfo{Kind: KindBool}

	buf, err := reg.Encode(nil, Bool(true), ti, FormatText)
	require.NoError(t, err)
	assert.Equal(t, "t", string(buf))

	v, err := reg.Decode([]byte("f"), ti, FormatText)
	require.NoError(t, err)
	b, err := v.Bool()
	require.NoError(t, err)
	assert.False(t, b)

	_, err = reg.Decode([]byte("maybe"), ti, FormatText)
	assert.True(t, sqlerr.IsKind(err, sqlerr.KindTypeMismatch))
}
