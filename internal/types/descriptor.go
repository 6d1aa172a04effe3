// Package types parses the column type strings sent in the second header
// line of a result and describes them as recursive Descriptor values.
package types

import (
	"fmt"
	"strings"
)

// Descriptor is the parsed form of one type string. Descriptors are built
// once per column and never mutated afterwards.
type Descriptor struct {
	Base     BaseType
	Nullable bool
	// ArrayDepth is the number of directly nested arrays and Elem describes
	// the element below them. A nullable inner array is not merged, it stays
	// in Elem as an array descriptor of its own. Both are zero values for
	// non-array types.
	ArrayDepth int
	Elem       *Descriptor
	// Fields lists tuple or struct members in order.
	Fields    []Field
	Precision int
	Scale     int
	// TimeZone is a validated IANA zone name for timestamps declared with one.
	TimeZone string
}

// Field is a member of a tuple or struct. Name is empty for tuple members.
type Field struct {
	Name string
	Type *Descriptor
}

// ElementBase returns the base type of the innermost element of an array, or
// the descriptor's own base type otherwise.
func (d *Descriptor) ElementBase() BaseType {
	for d.Base == ArrayType && d.Elem != nil {
		d = d.Elem
	}
	return d.Base
}

// IsNamedStruct reports whether the tuple members carry names.
func (d *Descriptor) IsNamedStruct() bool {
	for _, f := range d.Fields {
		if f.Name != "" {
			return true
		}
	}
	return false
}

// String renders the descriptor as a type string that Parse accepts and that
// parses back into an equal descriptor.
func (d *Descriptor) String() string {
	var s string
	switch d.Base {
	case ArrayType:
		s = strings.Repeat("array(", d.ArrayDepth) + d.Elem.String() + strings.Repeat(")", d.ArrayDepth)
	case TupleType:
		keyword := "tuple"
		if d.IsNamedStruct() {
			keyword = "struct"
		}
		members := make([]string, len(d.Fields))
		for i, f := range d.Fields {
			if f.Name != "" {
				members[i] = quoteMemberName(f.Name) + " " + f.Type.String()
			} else {
				members[i] = f.Type.String()
			}
		}
		s = keyword + "(" + strings.Join(members, ", ") + ")"
	case DecimalType:
		s = fmt.Sprintf("numeric(%d, %d)", d.Precision, d.Scale)
	case TimestampType, TimestampTzType:
		s = d.Base.String()
		if d.TimeZone != "" {
			s += fmt.Sprintf("(%d, '%s')", d.Scale, d.TimeZone)
		} else if d.Scale != 0 {
			s += fmt.Sprintf("(%d)", d.Scale)
		}
	default:
		s = d.Base.String()
	}
	if d.Nullable && d.Base != NullType {
		s += " null"
	}
	return s
}

// quoteMemberName quotes name unless it is a plain identifier that is not
// also a type name.
func quoteMemberName(name string) string {
	_, isType := LookupBaseType(name)
	plain := name != "" && !isType
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || i > 0 && c >= '0' && c <= '9' {
			continue
		}
		plain = false
		break
	}
	if plain {
		return name
	}
	if strings.IndexByte(name, '`') < 0 {
		return "`" + name + "`"
	}
	return `"` + name + `"`
}

// Equal reports whether two descriptors describe the same type.
func (d *Descriptor) Equal(o *Descriptor) bool {
	if d == nil || o == nil {
		return d == o
	}
	if d.Base != o.Base || d.Nullable != o.Nullable || d.ArrayDepth != o.ArrayDepth ||
		d.Precision != o.Precision || d.Scale != o.Scale || d.TimeZone != o.TimeZone ||
		len(d.Fields) != len(o.Fields) {
		return false
	}
	if !d.Elem.Equal(o.Elem) {
		return false
	}
	for i := range d.Fields {
		if d.Fields[i].Name != o.Fields[i].Name || !d.Fields[i].Type.Equal(o.Fields[i].Type) {
			return false
		}
	}
	return true
}
