// Package fieldtype defines the closed set of primitive field types the
// record/schema model is built on (spec section 3.1). The set is closed
// deliberately: the config layer maps incoming type strings onto this
// enum through an explicit table rather than any reflection-based lookup.
package fieldtype

import "fmt"

// Type is a 1-byte tag identifying a field's primitive representation.
type Type byte

const (
	Null Type = iota
	Int16
	Int32
	Int64
	Byte
	Float32
	Float64
	Boolean
	DateTime
	Decimal
	Guid
	String
)

// DefaultStringCapacity is the inline capacity given to a String field
// when a schema builder doesn't specify one explicitly.
const DefaultStringCapacity = 256

func (t Type) String() string {
	switch t {
	case Null:
		return "Null"
	case Int16:
		return "Int16"
	case Int32:
		return "Int32"
	case Int64:
		return "Int64"
	case Byte:
		return "Byte"
	case Float32:
		return "Float32"
	case Float64:
		return "Float64"
	case Boolean:
		return "Boolean"
	case DateTime:
		return "DateTime"
	case Decimal:
		return "Decimal"
	case Guid:
		return "Guid"
	case String:
		return "String"
	default:
		return fmt.Sprintf("Type(%d)", byte(t))
	}
}

// FixedSize returns the serialized size in bytes for every type except
// String, whose size is variable and carried on the field descriptor
// instead. Calling FixedSize(String) returns 0, false.
func FixedSize(t Type) (int, bool) {
	switch t {
	case Null:
		return 0, true
	case Byte, Boolean:
		return 1, true
	case Int16:
		return 2, true
	case Int32, Float32:
		return 4, true
	case Int64, Float64, DateTime:
		return 8, true
	case Decimal, Guid:
		return 16, true
	default:
		return 0, false
	}
}

// FromConfigString maps a closed set of config-file type names onto Type,
// replacing the reflection-based string->type lookup the teacher used.
func FromConfigString(s string) (Type, error) {
	switch s {
	case "null":
		return Null, nil
	case "int16", "short":
		return Int16, nil
	case "int32", "int":
		return Int32, nil
	case "int64", "long":
		return Int64, nil
	case "byte":
		return Byte, nil
	case "float32", "single", "float":
		return Float32, nil
	case "float64", "double":
		return Float64, nil
	case "boolean", "bool":
		return Boolean, nil
	case "datetime", "date":
		return DateTime, nil
	case "decimal":
		return Decimal, nil
	case "guid", "uuid":
		return Guid, nil
	case "string", "varchar", "text":
		return String, nil
	default:
		return Null, fmt.Errorf("unrecognized field type %q", s)
	}
}
