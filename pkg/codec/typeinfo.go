package codec

// TypeInfo describes one column or one prepared statement parameter
// slot: its name (empty for anonymous parameter slots), the declared type
// name, the backend's wire identifier for that type, and the registry's
// backend-agnostic kind tag. Array slots carry the element kind in Elem.
type TypeInfo struct {
	Name     string `json:"name,omitempty"`
	TypeName string `json:"type_name"`
	WireType uint32 `json:"wire_type"`
	Kind     Kind   `json:"kind"`
	Elem     Kind   `json:"elem,omitempty"`
	Nullable bool   `json:"nullable"`
}

// Format selects between the text and binary wire representations of a
// value. Binary is preferred when the backend negotiates it: it is smaller
// and numerically unambiguous.
type Format uint8

const (
	FormatText Format = iota
	FormatBinary
)

func (f Format) String() string {
	if f == FormatBinary {
		return "binary"
	}
	return "text"
}
