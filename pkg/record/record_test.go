package record

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/flowkit/etl/pkg/fieldtype"
	"github.com/flowkit/etl/pkg/schema"
)

func buildAllTypesSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.Build([]schema.FieldSpec{
		{Name: "i16", Type: fieldtype.Int16},
		{Name: "i32", Type: fieldtype.Int32},
		{Name: "i64", Type: fieldtype.Int64},
		{Name: "b", Type: fieldtype.Byte},
		{Name: "f32", Type: fieldtype.Float32},
		{Name: "f64", Type: fieldtype.Float64},
		{Name: "bool", Type: fieldtype.Boolean},
		{Name: "dt", Type: fieldtype.DateTime},
		{Name: "dec", Type: fieldtype.Decimal},
		{Name: "guid", Type: fieldtype.Guid},
		{Name: "str", Type: fieldtype.String, Capacity: 16},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return s
}

func TestRecord_RoundTripAllTypes(t *testing.T) {
	s := buildAllTypesSchema(t)
	buf := make([]byte, s.BufferSize())
	r := New(buf, s)

	g := uuid.New()
	now := time.Date(2024, 3, 15, 12, 30, 0, 0, time.UTC)
	ticks := TimeToTicks(now)

	values := []Value{
		NewInt16(-1234),
		NewInt32(-123456),
		NewInt64(-123456789012),
		NewByte(200),
		NewFloat32(3.5),
		NewFloat64(-2.25),
		NewBoolean(true),
		NewDateTimeTicks(ticks),
		NewDecimal(Decimal{Unscaled: 12345, Scale: 2, Negative: true}),
		NewGuid(g),
		NewString("hello, world"),
	}

	for i, v := range values {
		if err := r.Set(i, v); err != nil {
			t.Fatalf("Set(%d): %v", i, err)
		}
	}

	for i, want := range values {
		got, err := r.Get(i)
		if err != nil {
			t.Fatalf("Get(%d): %v", i, err)
		}
		if got.Tag != want.Tag {
			t.Fatalf("Get(%d).Tag = %v, want %v", i, got.Tag, want.Tag)
		}
	}

	if got, _ := r.Get(0); got.AsInt16() != -1234 {
		t.Errorf("i16 = %d", got.AsInt16())
	}
	if got, _ := r.Get(9); got.AsGuid() != g {
		t.Errorf("guid = %v, want %v", got.AsGuid(), g)
	}
	if got, _ := r.Get(10); got.AsString() != "hello, world" {
		t.Errorf("str = %q", got.AsString())
	}
	if got, _ := r.Get(7); got.AsDateTimeTicks() != ticks {
		t.Errorf("dt ticks = %d, want %d", got.AsDateTimeTicks(), ticks)
	}
	if !TicksToTime(ticks).Equal(now) {
		t.Errorf("TicksToTime round trip = %v, want %v", TicksToTime(ticks), now)
	}
}

func TestRecord_StringNulTerminatedWithSpareCapacity(t *testing.T) {
	s := buildAllTypesSchema(t)
	buf := make([]byte, s.BufferSize())
	r := New(buf, s)
	if err := r.SetByName("str", NewString("hi")); err != nil {
		t.Fatalf("SetByName: %v", err)
	}
	got, err := r.GetByName("str")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if got.AsString() != "hi" {
		t.Fatalf("got %q, want %q", got.AsString(), "hi")
	}
}

func TestRecord_StringTooLongFails(t *testing.T) {
	s := buildAllTypesSchema(t)
	buf := make([]byte, s.BufferSize())
	r := New(buf, s)
	if err := r.SetByName("str", NewString(strings.Repeat("x", 17))); err == nil {
		t.Fatal("expected FieldTooLong error")
	}
}

func TestRecord_SetTypeMismatchFails(t *testing.T) {
	s := buildAllTypesSchema(t)
	buf := make([]byte, s.BufferSize())
	r := New(buf, s)
	if err := r.Set(0, NewInt32(5)); err == nil {
		t.Fatal("expected TypeMismatch error for wrong tag")
	}
}

func TestRecord_NullClearsField(t *testing.T) {
	s := buildAllTypesSchema(t)
	buf := make([]byte, s.BufferSize())
	r := New(buf, s)
	if err := r.Set(1, NewInt32(99)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := r.Set(1, Null()); err != nil {
		t.Fatalf("Set Null: %v", err)
	}
	got, _ := r.Get(1)
	if got.Tag != fieldtype.Int32 {
		t.Fatalf("Get after Null tag = %v, want Int32 (descriptor type)", got.Tag)
	}
	if got.AsInt32() != 0 {
		t.Fatalf("Get after Null value = %d, want 0", got.AsInt32())
	}
}

func TestRecord_Clear(t *testing.T) {
	s := buildAllTypesSchema(t)
	buf := make([]byte, s.BufferSize())
	r := New(buf, s)
	_ = r.Set(1, NewInt32(42))
	r.Clear()
	for _, b := range r.Buffer() {
		if b != 0 {
			t.Fatal("Clear did not zero the buffer")
		}
	}
}
