package codec

import (
	"encoding/binary"
	"strings"

	"github.com/wireql/wireql/pkg/sqlerr"
)

// Array wire formats. The text layout follows the Postgres array literal:
// braces, comma separators, double-quoted elements with backslash escapes
// and NULL spelled bare. The binary layout is an element count followed by
// length-prefixed element payloads, length -1 marking NULL.

func (r *Registry) encodeArray(buf []byte, v Value, ti TypeInfo, format Format) ([]byte, error) {
	if v.Kind() != KindArray {
		return nil, sqlerr.Newf(sqlerr.KindTypeMismatch,
			"cannot convert %s value to declared array type", v.Kind())
	}
	elemTI := TypeInfo{TypeName: ti.TypeName, Kind: ti.Elem, Nullable: true}
	if format == FormatBinary {
		return r.encodeBinaryArray(buf, v, elemTI)
	}
	return r.encodeTextArray(buf, v, elemTI)
}

func (r *Registry) decodeArray(data []byte, ti TypeInfo, format Format) (Value, error) {
	elemTI := TypeInfo{TypeName: ti.TypeName, Kind: ti.Elem, Nullable: true}
	if format == FormatBinary {
		return r.decodeBinaryArray(data, ti, elemTI)
	}
	return r.decodeTextArray(data, ti, elemTI)
}

func (r *Registry) encodeTextArray(buf []byte, v Value, elemTI TypeInfo) ([]byte, error) {
	buf = append(buf, '{')
	for i, item := range v.items {
		if i > 0 {
			buf = append(buf, ',')
		}
		if item.IsNull() {
			buf = append(buf, "NULL"...)
			continue
		}
		payload, err := r.Encode(nil, item, elemTI, FormatText)
		if err != nil {
			return nil, err
		}
		buf = appendArrayElem(buf, payload)
	}
	return append(buf, '}'), nil
}

// appendArrayElem writes one element literal, quoting it whenever the raw
// payload would be ambiguous inside the braces.
func appendArrayElem(buf, payload []byte) []byte {
	if !arrayElemNeedsQuoting(payload) {
		return append(buf, payload...)
	}
	buf = append(buf, '"')
	for _, c := range payload {
		if c == '"' || c == '\\' {
			buf = append(buf, '\\')
		}
		buf = append(buf, c)
	}
	return append(buf, '"')
}

func arrayElemNeedsQuoting(payload []byte) bool {
	if len(payload) == 0 || strings.EqualFold(string(payload), "null") {
		return true
	}
	for _, c := range payload {
		switch c {
		case '{', '}', ',', '"', '\\', ' ', '\t', '\n', '\r':
			return true
		}
	}
	return false
}

func (r *Registry) decodeTextArray(data []byte, ti, elemTI TypeInfo) (Value, error) {
	s := string(data)
	if len(s) < 2 || s[0] != '{' || s[len(s)-1] != '}' {
		return Value{}, decodeErr(ti.Kind, "array literal missing braces: %q", s)
	}
	body := s[1 : len(s)-1]
	if body == "" {
		return Array(ti.Elem, nil)
	}

	var items []Value
	for {
		elem, quoted, rest, more, err := scanArrayElem(body)
		if err != nil {
			return Value{}, decodeErr(ti.Kind, "%s in %q", err, s)
		}
		if !quoted && elem == "NULL" {
			items = append(items, Null(ti.Elem))
		} else {
			item, err := r.Decode([]byte(elem), elemTI, FormatText)
			if err != nil {
				return Value{}, err
			}
			items = append(items, item)
		}
		if !more {
			break
		}
		body = rest
	}
	return Array(ti.Elem, items)
}

// scanArrayElem reads one element literal off the front of body, returning
// the unescaped element, whether it was quoted, what follows the separating
// comma, and whether such a comma was consumed.
func scanArrayElem(body string) (elem string, quoted bool, rest string, more bool, err error) {
	if body == "" {
		return "", false, "", false, sqlerr.New(sqlerr.KindTypeMismatch, "empty array element")
	}
	if body[0] != '"' {
		i := strings.IndexByte(body, ',')
		if i < 0 {
			return body, false, "", false, nil
		}
		if i == 0 {
			return "", false, "", false, sqlerr.New(sqlerr.KindTypeMismatch, "empty array element")
		}
		return body[:i], false, body[i+1:], true, nil
	}

	var sb strings.Builder
	i := 1
	for i < len(body) {
		c := body[i]
		switch c {
		case '\\':
			if i+1 >= len(body) {
				return "", false, "", false, sqlerr.New(sqlerr.KindTypeMismatch, "dangling escape")
			}
			sb.WriteByte(body[i+1])
			i += 2
		case '"':
			tail := body[i+1:]
			if tail == "" {
				return sb.String(), true, "", false, nil
			}
			if tail[0] != ',' {
				return "", false, "", false, sqlerr.New(sqlerr.KindTypeMismatch, "garbage after closing quote")
			}
			return sb.String(), true, tail[1:], true, nil
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return "", false, "", false, sqlerr.New(sqlerr.KindTypeMismatch, "unterminated quoted element")
}

func (r *Registry) encodeBinaryArray(buf []byte, v Value, elemTI TypeInfo) ([]byte, error) {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(v.items)))
	for _, item := range v.items {
		if item.IsNull() {
			buf = binary.BigEndian.AppendUint32(buf, uint32(0xFFFFFFFF))
			continue
		}
		payload, err := r.Encode(nil, item, elemTI, FormatBinary)
		if err != nil {
			return nil, err
		}
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(payload)))
		buf = append(buf, payload...)
	}
	return buf, nil
}

func (r *Registry) decodeBinaryArray(data []byte, ti, elemTI TypeInfo) (Value, error) {
	if len(data) < 4 {
		return Value{}, decodeErr(ti.Kind, "array payload truncated: %d bytes", len(data))
	}
	count := int(int32(binary.BigEndian.Uint32(data)))
	if count < 0 {
		return Value{}, decodeErr(ti.Kind, "negative array element count %d", count)
	}
	off := 4
	items := make([]Value, 0, count)
	for i := 0; i < count; i++ {
		if len(data)-off < 4 {
			return Value{}, decodeErr(ti.Kind, "array element %d header truncated", i)
		}
		l := int(int32(binary.BigEndian.Uint32(data[off:])))
		off += 4
		if l == -1 {
			items = append(items, Null(ti.Elem))
			continue
		}
		if l < 0 || len(data)-off < l {
			return Value{}, decodeErr(ti.Kind, "array element %d payload truncated", i)
		}
		item, err := r.Decode(data[off:off+l], elemTI, FormatBinary)
		if err != nil {
			return Value{}, err
		}
		items = append(items, item)
		off += l
	}
	if off != len(data) {
		return Value{}, decodeErr(ti.Kind, "%d trailing bytes after array payload", len(data)-off)
	}
	return Array(ti.Elem, items)
}
