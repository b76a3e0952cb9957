package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wireql/wireql/pkg/sqlerr"
)

func mustArray(t *testing.T, elem Kind, items ...Value) Value {
	t.Helper()
	v, err := Array(elem, items)
	require.NoError(t, err)
	return v
}

func TestArray_ConstructorValidatesElementKinds(t *testing.T) {
	_, err := Array(KindInt4, []Value{Int4(1), Text("two")})
	require.Error(t, err)
	assert.True(t, sqlerr.IsKind(err, sqlerr.KindTypeMismatch))

	// NULL items are fine regardless of their kind tag.
	v, err := Array(KindInt4, []Value{Int4(1), Null(KindInt4)})
	require.NoError(t, err)
	assert.Equal(t, KindArray, v.Kind())
	assert.Equal(t, KindInt4, v.Elem())

	_, err = Array(KindArray, nil)
	require.Error(t, err)
	_, err = Array(KindInvalid, nil)
	require.Error(t, err)
}

func TestArray_RoundTrip(t *testing.T) {
	reg := NewRegistry()
	cases := []Value{
		mustArray(t, KindInt4, Int4(1), Null(KindInt4), Int4(-3)),
		mustArray(t, KindText,
			Text("plain"),
			Text("a,b"),
			Text(""),
			Text("NULL"),
			Text(`he said "hi"`),
			Text(`back\slash`),
			Text("{braced}"),
		),
		mustArray(t, KindBool, Bool(true), Bool(false)),
		mustArray(t, KindInt8),
		mustArray(t, KindTime, TimeOfDay(-90*time.Minute), TimeOfDay(100*time.Hour)),
	}
	for _, v := range cases {
		ti := TypeInfo{Kind: KindArray, Elem: v.Elem()}
		for _, format := range []Format{FormatText, FormatBinary} {
			buf, err := reg.Encode(nil, v, ti, format)
			require.NoError(t, err, "encode %s %s", v.Elem(), format)
			got, err := reg.Decode(buf, ti, format)
			require.NoError(t, err, "decode %s %s", v.Elem(), format)
			assert.True(t, v.Equal(got), "%s %s: %v != %v", v.Elem(), format, v, got)
		}
	}
}

func TestArray_TextLiteralLayout(t *testing.T) {
	reg := NewRegistry()
	v := mustArray(t, KindText, Text("a b"), Null(KindText), Text("x"))
	buf, err := reg.Encode(nil, v, TypeInfo{Kind: KindArray, Elem: KindText}, FormatText)
	require.NoError(t, err)
	assert.Equal(t, `{"a b",NULL,x}`, string(buf))

	empty := mustArray(t, KindInt4)
	buf, err = reg.Encode(nil, empty, TypeInfo{Kind: KindArray, Elem: KindInt4}, FormatText)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(buf))
}

func TestArray_DecodeRejectsMalformedText(t *testing.T) {
	reg := NewRegistry()
	ti := TypeInfo{Kind: KindArray, Elem: KindText}
	for _, raw := range []string{
		"1,2,3",
		"{a,}",
		"{,a}",
		`{"unterminated}`,
		`{"x"y}`,
	} {
		_, err := reg.Decode([]byte(raw), ti, FormatText)
		assert.Error(t, err, "literal %q", raw)
	}
}

func TestArray_DecodeRejectsMalformedBinary(t *testing.T) {
	reg := NewRegistry()
	ti := TypeInfo{Kind: KindArray, Elem: KindInt4}

	_, err := reg.Decode([]byte{0, 0}, ti, FormatBinary)
	assert.Error(t, err, "truncated count")

	// Count of one but no element header.
	_, err = reg.Decode([]byte{0, 0, 0, 1}, ti, FormatBinary)
	assert.Error(t, err, "missing element header")

	// Valid single element followed by trailing garbage.
	v := mustArray(t, KindInt4, Int4(7))
	buf, err := reg.Encode(nil, v, ti, FormatBinary)
	require.NoError(t, err)
	_, err = reg.Decode(append(buf, 0xFF), ti, FormatBinary)
	assert.Error(t, err, "trailing bytes")
}

func TestArray_EncodeRejectsScalar(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Encode(nil, Int4(1), TypeInfo{Kind: KindArray, Elem: KindInt4}, FormatText)
	require.Error(t, err)

	_, err = reg.Encode(nil, mustArray(t, KindInt4, Int4(1)), TypeInfo{Kind: KindInt4}, FormatText)
	require.Error(t, err)
}

func TestArray_ElementWideningFollowsScalarRules(t *testing.T) {
	reg := NewRegistry()
	// int4 items into a declared int8 array: lossless widening per item.
	v := mustArray(t, KindInt4, Int4(1), Int4(2))
	ti := TypeInfo{Kind: KindArray, Elem: KindInt8}
	buf, err := reg.Encode(nil, v, ti, FormatBinary)
	require.NoError(t, err)
	got, err := reg.Decode(buf, ti, FormatBinary)
	require.NoError(t, err)
	items, err := got.Items()
	require.NoError(t, err)
	require.Len(t, items, 2)
	n, err := items[0].Int()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestArray_NullDecodesOutOfBand(t *testing.T) {
	reg := NewRegistry()
	v, err := reg.Decode(nil, TypeInfo{Kind: KindArray, Elem: KindText}, FormatBinary)
	require.NoError(t, err)
	assert.True(t, v.IsNull())
	assert.Equal(t, KindArray, v.Kind())
	assert.Equal(t, KindText, v.Elem())
}

func TestArray_BorrowedItemsCloneDetaches(t *testing.T) {
	reg := NewRegistry()
	v := mustArray(t, KindBytes, BytesCopy([]byte{1, 2}))
	ti := TypeInfo{Kind: KindArray, Elem: KindBytes}
	buf, err := reg.Encode(nil, v, ti, FormatBinary)
	require.NoError(t, err)

	got, err := reg.Decode(buf, ti, FormatBinary)
	require.NoError(t, err)
	assert.True(t, got.Borrowed(), "binary blob items alias the wire buffer")

	owned := got.Clone()
	assert.False(t, owned.Borrowed())
	buf[len(buf)-1] ^= 0xFF
	assert.True(t, v.Equal(owned))
}

func TestArray_Equal(t *testing.T) {
	a := mustArray(t, KindInt4, Int4(1), Int4(2))
	assert.True(t, a.Equal(mustArray(t, KindInt4, Int4(1), Int4(2))))
	assert.False(t, a.Equal(mustArray(t, KindInt4, Int4(1))))
	assert.False(t, a.Equal(mustArray(t, KindInt4, Int4(2), Int4(1))))
	assert.False(t, a.Equal(mustArray(t, KindInt8, Int8(1), Int8(2))))
	assert.False(t, a.Equal(Int4(1)))
}
