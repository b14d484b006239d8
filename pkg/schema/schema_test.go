package schema

import (
	"testing"

	"github.com/flowkit/etl/pkg/fieldtype"
)

func mustBuild(t *testing.T, specs []FieldSpec) *Schema {
	t.Helper()
	s, err := Build(specs)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return s
}

func TestBuild_DenseOffsets(t *testing.T) {
	s := mustBuild(t, []FieldSpec{
		{Name: "id", Type: fieldtype.Int32},
		{Name: "name", Type: fieldtype.String, Capacity: 16},
		{Name: "age", Type: fieldtype.Int32},
	})
	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", s.Len())
	}
	id, _ := s.Descriptor("id")
	name, _ := s.Descriptor("name")
	age, _ := s.Descriptor("age")
	if id.Offset != 0 || id.Length != 4 {
		t.Errorf("id descriptor = %+v", id)
	}
	if name.Offset != 4 || name.Length != 16 {
		t.Errorf("name descriptor = %+v", name)
	}
	if age.Offset != 20 || age.Length != 4 {
		t.Errorf("age descriptor = %+v", age)
	}
	if s.BufferSize() != 24 {
		t.Errorf("BufferSize() = %d, want 24", s.BufferSize())
	}
}

func TestBuild_RejectsDuplicateNames(t *testing.T) {
	_, err := Build([]FieldSpec{
		{Name: "id", Type: fieldtype.Int32},
		{Name: "id", Type: fieldtype.String},
	})
	if err == nil {
		t.Fatal("expected error for duplicate field name")
	}
}

func TestBuild_RejectsEmptyName(t *testing.T) {
	_, err := Build([]FieldSpec{{Name: "", Type: fieldtype.Int32}})
	if err == nil {
		t.Fatal("expected error for empty field name")
	}
}

func TestBuild_RejectsEmptySchema(t *testing.T) {
	_, err := Build(nil)
	if err == nil {
		t.Fatal("expected error for empty schema")
	}
}

func TestIndexOfFold(t *testing.T) {
	s := mustBuild(t, []FieldSpec{{Name: "Name", Type: fieldtype.String, Capacity: 8}})
	if _, ok := s.IndexOf("name"); ok {
		t.Error("IndexOf should be case-sensitive")
	}
	if _, ok := s.IndexOfFold("name"); !ok {
		t.Error("IndexOfFold should match case-insensitively")
	}
}

func TestPositionallyCompatible(t *testing.T) {
	a := mustBuild(t, []FieldSpec{
		{Name: "id", Type: fieldtype.Int32},
		{Name: "name", Type: fieldtype.String, Capacity: 16},
	})
	b := mustBuild(t, []FieldSpec{
		{Name: "identifier", Type: fieldtype.Int32},
		{Name: "label", Type: fieldtype.String, Capacity: 16},
	})
	if !a.PositionallyCompatible(b) {
		t.Error("schemas with same types/offsets/lengths but different names should be compatible")
	}
	c := mustBuild(t, []FieldSpec{
		{Name: "id", Type: fieldtype.Int64},
		{Name: "name", Type: fieldtype.String, Capacity: 16},
	})
	if a.PositionallyCompatible(c) {
		t.Error("schemas with different types at the same position should not be compatible")
	}
}
