// ABOUTME: Closed value variant stored against attribute names
// ABOUTME: Text values are encodable; opaque values carry a type name for kind checks

package item

import (
	"fmt"
	"reflect"
)

// Kind tags the variant held by a Value
type Kind uint8

const (
	// KindText is a plain string value
	KindText Kind = iota + 1

	// KindOpaque is any other Go value, kept in memory only
	KindOpaque
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindOpaque:
		return "opaque"
	default:
		return "invalid"
	}
}

// Value is either Text or Opaque. The zero Value is invalid.
type Value struct {
	kind     Kind
	text     string
	opaque   any
	typeName string
}

// Text creates a text value
func Text(s string) Value {
	return Value{kind: KindText, text: s, typeName: "string"}
}

// Opaque creates an opaque value. A string argument still produces a text value
// so that the runtime type of a value never depends on the constructor used.
func Opaque(v any) Value {
	if s, ok := v.(string); ok {
		return Text(s)
	}
	return Value{kind: KindOpaque, opaque: v, typeName: fmt.Sprintf("%T", v)}
}

// Kind returns the variant tag
func (v Value) Kind() Kind {
	return v.kind
}

// IsText reports whether v holds text
func (v Value) IsText() bool {
	return v.kind == KindText
}

// IsValid reports whether v was built by a constructor
func (v Value) IsValid() bool {
	return v.kind == KindText || v.kind == KindOpaque
}

// AsText returns the text payload and whether v holds text
func (v Value) AsText() (string, bool) {
	if v.kind != KindText {
		return "", false
	}
	return v.text, true
}

// Interface returns the payload as an untyped value
func (v Value) Interface() any {
	if v.kind == KindText {
		return v.text
	}
	return v.opaque
}

// TypeName returns the runtime type name of the payload
func (v Value) TypeName() string {
	return v.typeName
}

// SameType reports whether both values carry the same runtime type
func (v Value) SameType(other Value) bool {
	if !v.IsValid() || !other.IsValid() {
		return false
	}
	return v.kind == other.kind && v.typeName == other.typeName
}

// Equal reports whether both values have the same runtime type and payload
func (v Value) Equal(other Value) bool {
	if !v.SameType(other) {
		return false
	}
	if v.kind == KindText {
		return v.text == other.text
	}
	return reflect.DeepEqual(v.opaque, other.opaque)
}

// String renders the payload for diagnostics
func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindOpaque:
		return fmt.Sprintf("%v", v.opaque)
	default:
		return "<invalid>"
	}
}
