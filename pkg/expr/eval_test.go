package expr

import (
	"testing"
	"time"

	"github.com/flowkit/etl/pkg/fieldtype"
	"github.com/flowkit/etl/pkg/record"
	"github.com/flowkit/etl/pkg/schema"
)

func testRow(t *testing.T) *record.Record {
	t.Helper()
	s, err := schema.Build([]schema.FieldSpec{
		{Name: "id", Type: fieldtype.Int32},
		{Name: "name", Type: fieldtype.String, Capacity: 32},
		{Name: "age", Type: fieldtype.Int32},
		{Name: "joined", Type: fieldtype.DateTime},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	buf := make([]byte, s.BufferSize())
	r := record.New(buf, s)
	_ = r.SetByName("id", record.NewInt32(1))
	_ = r.SetByName("name", record.NewString("Alice"))
	_ = r.SetByName("age", record.NewInt32(30))
	_ = r.SetByName("joined", record.NewDateTimeTicks(record.TimeToTicks(time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC))))
	return r
}

func TestEvalBool_Comparison(t *testing.T) {
	row := testRow(t)
	c, err := Compile(`row["age"] >= 18`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	ok, err := c.EvalBool(row, 1)
	if err != nil {
		t.Fatalf("EvalBool: %v", err)
	}
	if !ok {
		t.Fatal("expected true")
	}
}

func TestEvalBool_EmptyAndTrueAreBothTrue(t *testing.T) {
	row := testRow(t)
	for _, src := range []string{"", "true"} {
		c, err := Compile(src)
		if err != nil {
			t.Fatalf("Compile(%q): %v", src, err)
		}
		ok, err := c.EvalBool(row, 1)
		if err != nil || !ok {
			t.Fatalf("Compile(%q) EvalBool = %v, %v, want true, nil", src, ok, err)
		}
	}
}

func TestEvalBool_NonBooleanFailsWithInvalidCondition(t *testing.T) {
	row := testRow(t)
	c, err := Compile(`row["age"] + 1`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if _, err := c.EvalBool(row, 1); err == nil {
		t.Fatal("expected InvalidCondition error")
	}
}

func TestEval_TernaryAndStringMethods(t *testing.T) {
	row := testRow(t)
	c, err := Compile(`row["age"] >= 18 ? row["name"].ToUpper() : "minor"`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	v, err := c.Eval(row, 1)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v.AsString() != "ALICE" {
		t.Fatalf("got %q, want ALICE", v.AsString())
	}
}

func TestEval_StartsWith(t *testing.T) {
	row := testRow(t)
	c, err := Compile(`row["name"].StartsWith("Al")`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	v, err := c.Eval(row, 1)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !v.AsBoolean() {
		t.Fatal("expected StartsWith to be true")
	}
}

func TestEval_YearAndAddYears(t *testing.T) {
	row := testRow(t)
	c, err := Compile(`row["joined"].AddYears(1).Year`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	v, err := c.Eval(row, 1)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v.AsFloat64() != 2021 {
		t.Fatalf("got %v, want 2021", v.AsFloat64())
	}
}

func TestEval_ContainsKey(t *testing.T) {
	row := testRow(t)
	yes, err := Compile(`row.ContainsKey("name")`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	v, err := yes.Eval(row, 1)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !v.AsBoolean() {
		t.Fatal("expected ContainsKey(name) to be true")
	}

	no, err := Compile(`row.ContainsKey("missing")`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	v2, err := no.Eval(row, 1)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v2.AsBoolean() {
		t.Fatal("expected ContainsKey(missing) to be false")
	}
}

func TestEval_NullCoalescing(t *testing.T) {
	row := testRow(t)
	c, err := Compile(`row["missing_field_xyz"] ?? "fallback"`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	v, err := c.Eval(row, 1)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v.AsString() != "fallback" {
		t.Fatalf("got %q, want fallback", v.AsString())
	}
}

func TestCompile_ParseErrorIsCompileError(t *testing.T) {
	if _, err := Compile(`row["age"] >=`); err == nil {
		t.Fatal("expected CompileError for malformed expression")
	}
}

func TestCache_CompilesOnce(t *testing.T) {
	c := NewCache()
	a, err := c.Get(`row["age"] >= 18`)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	b, err := c.Get(`row["age"] >= 18`)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if a != b {
		t.Fatal("expected cached Compiled pointer to be reused")
	}
}
