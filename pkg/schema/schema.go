// Package schema implements the ordered, immutable field-descriptor list
// (spec section 3.2) that every Record is interpreted through. This is a
// deliberate departure from the teacher's pkg/schema, which validates
// loosely-typed map[string]any documents against a DataSchema of
// string/number/boolean/object/array kinds; that representation is the
// "V1" row shape the spec excludes from the core. This package instead
// describes the byte layout of a fixed record buffer.
package schema

import (
	"fmt"
	"strings"

	"github.com/flowkit/etl/pkg/etlerr"
	"github.com/flowkit/etl/pkg/fieldtype"
)

// FieldDescriptor describes one field's name, type, and position within
// a record buffer.
type FieldDescriptor struct {
	Name   string
	Type   fieldtype.Type
	Offset int
	Length int
	Index  int
}

// Schema is an ordered, immutable list of field descriptors. The zero
// value is not valid; construct with Build.
type Schema struct {
	fields     []FieldDescriptor
	byName     map[string]int
	bufferSize int
}

// FieldSpec is the declaration-order input to Build: a name, a type, and
// (for String fields only) an inline capacity. Capacity is ignored for
// fixed-size types, which derive their length from fieldtype.FixedSize.
type FieldSpec struct {
	Name     string
	Type     fieldtype.Type
	Capacity int // String only; 0 means fieldtype.DefaultStringCapacity
}

// Build assigns dense, non-overlapping offsets to fields in declaration
// order and returns the resulting immutable Schema. This is the pool's
// build_schema operation (spec section 4.2).
func Build(specs []FieldSpec) (*Schema, error) {
	if len(specs) == 0 {
		return nil, etlerr.SchemaMismatch("schema must declare at least one field")
	}
	fields := make([]FieldDescriptor, len(specs))
	byName := make(map[string]int, len(specs))
	offset := 0
	for i, s := range specs {
		if s.Name == "" {
			return nil, etlerr.SchemaMismatch("field %d: name must not be empty", i)
		}
		if _, dup := byName[s.Name]; dup {
			return nil, etlerr.SchemaMismatch("field %d: duplicate field name %q", i, s.Name)
		}
		length, fixed := fieldtype.FixedSize(s.Type)
		if !fixed {
			length = s.Capacity
			if length <= 0 {
				length = fieldtype.DefaultStringCapacity
			}
		}
		fields[i] = FieldDescriptor{
			Name:   s.Name,
			Type:   s.Type,
			Offset: offset,
			Length: length,
			Index:  i,
		}
		byName[s.Name] = i
		offset += length
	}
	return &Schema{fields: fields, byName: byName, bufferSize: offset}, nil
}

// Len returns the number of fields in the schema.
func (s *Schema) Len() int { return len(s.fields) }

// BufferSize is the total number of bytes a record buffer for this schema
// must hold: the last field's offset + length.
func (s *Schema) BufferSize() int { return s.bufferSize }

// Field returns the i-th descriptor.
func (s *Schema) Field(i int) FieldDescriptor { return s.fields[i] }

// Fields returns the full descriptor list. Callers must not mutate the
// returned slice; it is shared with the Schema's internal storage.
func (s *Schema) Fields() []FieldDescriptor { return s.fields }

// IndexOf looks up a field's index by exact, case-sensitive name. Adapter
// boundaries that need case-insensitive matching should use
// IndexOfFold instead.
func (s *Schema) IndexOf(name string) (int, bool) {
	i, ok := s.byName[name]
	return i, ok
}

// IndexOfFold looks up a field's index by case-insensitive name, for use
// at adapter boundaries (spec section 3.2: "case-insensitive matching is
// permitted at adapter boundaries").
func (s *Schema) IndexOfFold(name string) (int, bool) {
	if i, ok := s.byName[name]; ok {
		return i, true
	}
	for i, f := range s.fields {
		if strings.EqualFold(f.Name, name) {
			return i, true
		}
	}
	return 0, false
}

// Descriptor returns the descriptor for a field looked up by name.
func (s *Schema) Descriptor(name string) (FieldDescriptor, bool) {
	i, ok := s.byName[name]
	if !ok {
		return FieldDescriptor{}, false
	}
	return s.fields[i], true
}

// PositionallyCompatible reports whether s and other have the same field
// count and, at every index, the same type/offset/length. Names may
// differ — matching is positional, per spec section 4.6. This backs the
// pipeline orchestrator's SchemaMismatch check at construction.
func (s *Schema) PositionallyCompatible(other *Schema) bool {
	if s.Len() != other.Len() {
		return false
	}
	for i := range s.fields {
		a, b := s.fields[i], other.fields[i]
		if a.Type != b.Type || a.Offset != b.Offset || a.Length != b.Length {
			return false
		}
	}
	return true
}

func (s *Schema) String() string {
	var b strings.Builder
	b.WriteString("Schema{")
	for i, f := range s.fields {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s:%s@%d+%d", f.Name, f.Type, f.Offset, f.Length)
	}
	b.WriteString("}")
	return b.String()
}
