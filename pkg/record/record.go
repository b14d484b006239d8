package record

import (
	"encoding/binary"

	"github.com/google/uuid"

	"github.com/flowkit/etl/pkg/etlerr"
	"github.com/flowkit/etl/pkg/fieldtype"
	"github.com/flowkit/etl/pkg/schema"
)

// Record is a scope-bound view over a mutable byte buffer and a
// read-only schema (spec section 3.4). It owns neither: both are lent
// to it by the buffer pool/pipeline for the duration of one processing
// step. Callers must not retain a Record, or any Value read from one,
// past that step — see spec section 3.4's lifecycle invariants.
type Record struct {
	buf    []byte
	schema *schema.Schema
}

// New wraps buf (which must be at least schema's BufferSize) and s into
// a Record. It does not copy buf.
func New(buf []byte, s *schema.Schema) *Record {
	return &Record{buf: buf, schema: s}
}

// Schema returns the record's schema.
func (r *Record) Schema() *schema.Schema { return r.schema }

// Buffer returns the record's underlying byte buffer. Callers that need
// to hand a record's data across a goroutine boundary must copy this
// slice into a new buffer first (spec section 3.4).
func (r *Record) Buffer() []byte { return r.buf }

// Field looks up a field by exact name and decodes its value, reporting
// false if no such field exists. This is the row["field_name"] lookup
// the expression evaluator's Row container exposes records through.
func (r *Record) Field(name string) (Value, bool) {
	i, ok := r.schema.IndexOf(name)
	if !ok {
		return Value{}, false
	}
	v, err := r.Get(i)
	if err != nil {
		return Value{}, false
	}
	return v, true
}

// Clear zeros the entire buffer.
func (r *Record) Clear() {
	clear(r.buf)
}

// Get decodes the i-th field's value from the buffer. The returned
// Value's tag always equals the descriptor's type (spec section 4.1).
func (r *Record) Get(i int) (Value, error) {
	d := r.schema.Field(i)
	return decode(r.buf[d.Offset:d.Offset+d.Length], d)
}

// GetByName looks up a field by exact name and decodes its value.
func (r *Record) GetByName(name string) (Value, error) {
	i, ok := r.schema.IndexOf(name)
	if !ok {
		return Value{}, etlerr.TypeMismatch(name, errUnknownField(name))
	}
	return r.Get(i)
}

// Set writes v into the i-th field. v's tag must equal the descriptor's
// type, or be Null (which clears the field's region to zeros); any
// other tag fails with TypeMismatch. A String write whose encoded
// length exceeds the field's capacity fails with FieldTooLong.
func (r *Record) Set(i int, v Value) error {
	d := r.schema.Field(i)
	region := r.buf[d.Offset : d.Offset+d.Length]
	if v.Tag == fieldtype.Null {
		clear(region)
		return nil
	}
	if v.Tag != d.Type {
		return etlerr.TypeMismatch(d.Name, errTagMismatch(d.Type, v.Tag))
	}
	return encode(region, d, v)
}

// SetByName looks up a field by exact name and writes v into it.
func (r *Record) SetByName(name string, v Value) error {
	i, ok := r.schema.IndexOf(name)
	if !ok {
		return etlerr.TypeMismatch(name, errUnknownField(name))
	}
	return r.Set(i, v)
}

func decode(region []byte, d schema.FieldDescriptor) (Value, error) {
	switch d.Type {
	case fieldtype.Null:
		return Null(), nil
	case fieldtype.Byte:
		return NewByte(region[0]), nil
	case fieldtype.Boolean:
		return NewBoolean(region[0] != 0), nil
	case fieldtype.Int16:
		return NewInt16(int16(binary.LittleEndian.Uint16(region))), nil
	case fieldtype.Int32:
		return NewInt32(int32(binary.LittleEndian.Uint32(region))), nil
	case fieldtype.Int64:
		return NewInt64(int64(binary.LittleEndian.Uint64(region))), nil
	case fieldtype.Float32:
		return Value{Tag: fieldtype.Float32, num: uint64(binary.LittleEndian.Uint32(region))}, nil
	case fieldtype.Float64:
		return Value{Tag: fieldtype.Float64, num: binary.LittleEndian.Uint64(region)}, nil
	case fieldtype.DateTime:
		return NewDateTimeTicks(int64(binary.LittleEndian.Uint64(region))), nil
	case fieldtype.Decimal:
		return NewDecimal(decodeDecimal(region)), nil
	case fieldtype.Guid:
		var g uuid.UUID
		copy(g[:], region[:16])
		return NewGuid(g), nil
	case fieldtype.String:
		return NewString(decodeString(region)), nil
	default:
		return Value{}, etlerr.TypeMismatch(d.Name, errTagMismatch(d.Type, d.Type))
	}
}

func encode(region []byte, d schema.FieldDescriptor, v Value) error {
	switch d.Type {
	case fieldtype.Byte:
		region[0] = v.AsByte()
	case fieldtype.Boolean:
		if v.AsBoolean() {
			region[0] = 1
		} else {
			region[0] = 0
		}
	case fieldtype.Int16:
		binary.LittleEndian.PutUint16(region, uint16(v.AsInt16()))
	case fieldtype.Int32:
		binary.LittleEndian.PutUint32(region, uint32(v.AsInt32()))
	case fieldtype.Int64:
		binary.LittleEndian.PutUint64(region, uint64(v.AsInt64()))
	case fieldtype.Float32:
		binary.LittleEndian.PutUint32(region, uint32(v.num))
	case fieldtype.Float64:
		binary.LittleEndian.PutUint64(region, v.num)
	case fieldtype.DateTime:
		binary.LittleEndian.PutUint64(region, uint64(v.AsDateTimeTicks()))
	case fieldtype.Decimal:
		encodeDecimal(region, v.AsDecimal())
	case fieldtype.Guid:
		g := v.AsGuid()
		copy(region, g[:])
	case fieldtype.String:
		return encodeString(region, d, v.AsString())
	}
	return nil
}

// encodeDecimal lays out a Decimal into 16 bytes: bytes[0:8] hold the
// unscaled magnitude as a little-endian int64, byte[8] the scale,
// byte[9] the sign (1 = negative), bytes[10:16] reserved/zero.
func encodeDecimal(region []byte, d Decimal) {
	clear(region)
	binary.LittleEndian.PutUint64(region[0:8], uint64(d.Unscaled))
	region[8] = d.Scale
	if d.Negative {
		region[9] = 1
	}
}

func decodeDecimal(region []byte) Decimal {
	return Decimal{
		Unscaled: int64(binary.LittleEndian.Uint64(region[0:8])),
		Scale:    region[8],
		Negative: region[9] != 0,
	}
}

// encodeString clears the field region, writes UTF-8 bytes, and, if
// space remains, a trailing NUL (spec section 4.1's String semantics).
func encodeString(region []byte, d schema.FieldDescriptor, s string) error {
	if len(s) > len(region) {
		return etlerr.FieldTooLong(d.Name, len(s), len(region))
	}
	clear(region)
	copy(region, s)
	return nil
}

// decodeString reads UTF-8 up to the first NUL or the region end.
func decodeString(region []byte) string {
	for i, b := range region {
		if b == 0 {
			return string(region[:i])
		}
	}
	return string(region)
}
