// Package record implements the tagged-union FieldValue (spec section
// 3.3) and the Record view over a rented buffer plus a schema (spec
// section 3.4). This is the typed, pooled representation the spec keeps
// in place of the teacher's map[string]any Record (pkg/stream/types.go,
// pkg/source/source.go) — the "V1" dictionary-of-boxed-values shape the
// spec explicitly excludes from the core (section 9).
package record

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/flowkit/etl/pkg/fieldtype"
)

// ticksPerSecond documents the DateTime tick unit (spec section 9, open
// question 4): ticks are a signed 64-bit count of 100ns units since
// 0001-01-01T00:00:00Z in the proleptic Gregorian calendar, UTC. Every
// adapter that reads or writes a DateTime field must agree on this
// origin; it is defined once, as epoch in time.go, and never redefined
// elsewhere.
const ticksPerSecond = int64(10_000_000)

// Decimal is the core's 128-bit decimal representation: an unscaled
// magnitude (fits in an int64, which covers every value this engine's
// rule-based actions and literal constants need), a power-of-ten scale,
// and a sign. This is a deliberate simplification of a true 96-bit
// unscaled integer decimal (e.g. .NET's System.Decimal) in exchange for
// a fixed, simple 16-byte layout; documented once here and used
// consistently by every Decimal encode/decode path.
type Decimal struct {
	Unscaled int64
	Scale    uint8
	Negative bool
}

// Value is the tagged union described in spec section 3.3: one
// primitive value plus its type tag. Numeric, boolean, date, decimal,
// and GUID variants share fixed in-place storage; String holds a
// reference into the caller's own storage so construction never copies
// until Record.Set writes it into the record buffer.
type Value struct {
	Tag     fieldtype.Type
	num     uint64  // Int16/Int32/Int64/Byte/Float32/Float64/Boolean/DateTime
	decimal Decimal // Decimal
	guid    uuid.UUID
	str     string // String
}

// Null is the Value reported for, and accepted as a universal clearing
// write into, any field.
func Null() Value { return Value{Tag: fieldtype.Null} }

func NewInt16(v int16) Value   { return Value{Tag: fieldtype.Int16, num: uint64(uint16(v))} }
func NewInt32(v int32) Value   { return Value{Tag: fieldtype.Int32, num: uint64(uint32(v))} }
func NewInt64(v int64) Value   { return Value{Tag: fieldtype.Int64, num: uint64(v)} }
func NewByte(v byte) Value     { return Value{Tag: fieldtype.Byte, num: uint64(v)} }
func NewBoolean(v bool) Value {
	var n uint64
	if v {
		n = 1
	}
	return Value{Tag: fieldtype.Boolean, num: n}
}
func NewFloat32(v float32) Value { return Value{Tag: fieldtype.Float32, num: uint64(math.Float32bits(v))} }
func NewFloat64(v float64) Value { return Value{Tag: fieldtype.Float64, num: math.Float64bits(v)} }
func NewDateTimeTicks(ticks int64) Value {
	return Value{Tag: fieldtype.DateTime, num: uint64(ticks)}
}
func NewDecimal(d Decimal) Value { return Value{Tag: fieldtype.Decimal, decimal: d} }
func NewGuid(g uuid.UUID) Value  { return Value{Tag: fieldtype.Guid, guid: g} }
func NewString(v string) Value   { return Value{Tag: fieldtype.String, str: v} }

func (v Value) AsInt16() int16     { return int16(uint16(v.num)) }
func (v Value) AsInt32() int32     { return int32(uint32(v.num)) }
func (v Value) AsInt64() int64     { return int64(v.num) }
func (v Value) AsByte() byte       { return byte(v.num) }
func (v Value) AsBoolean() bool    { return v.num != 0 }
func (v Value) AsFloat32() float32 { return math.Float32frombits(uint32(v.num)) }
func (v Value) AsFloat64() float64 { return math.Float64frombits(v.num) }
func (v Value) AsDateTimeTicks() int64 { return int64(v.num) }
func (v Value) AsDecimal() Decimal { return v.decimal }
func (v Value) AsGuid() uuid.UUID  { return v.guid }
func (v Value) AsString() string   { return v.str }

func (v Value) String() string {
	switch v.Tag {
	case fieldtype.Null:
		return "<null>"
	case fieldtype.Int16:
		return fmt.Sprintf("%d", v.AsInt16())
	case fieldtype.Int32:
		return fmt.Sprintf("%d", v.AsInt32())
	case fieldtype.Int64:
		return fmt.Sprintf("%d", v.AsInt64())
	case fieldtype.Byte:
		return fmt.Sprintf("%d", v.AsByte())
	case fieldtype.Boolean:
		return fmt.Sprintf("%t", v.AsBoolean())
	case fieldtype.Float32:
		return fmt.Sprintf("%g", v.AsFloat32())
	case fieldtype.Float64:
		return fmt.Sprintf("%g", v.AsFloat64())
	case fieldtype.DateTime:
		return fmt.Sprintf("%s", TicksToTime(v.AsDateTimeTicks()))
	case fieldtype.Decimal:
		return fmt.Sprintf("%+v", v.AsDecimal())
	case fieldtype.Guid:
		return v.AsGuid().String()
	case fieldtype.String:
		return v.AsString()
	default:
		return "<invalid>"
	}
}
