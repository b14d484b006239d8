package sink

import (
	"testing"

	"github.com/flowkit/etl/pkg/bufpool"
	"github.com/flowkit/etl/pkg/fieldtype"
	"github.com/flowkit/etl/pkg/record"
	"github.com/flowkit/etl/pkg/schema"
)

func mustSchema(t *testing.T, specs []schema.FieldSpec) *schema.Schema {
	t.Helper()
	s, err := schema.Build(specs)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return s
}

func TestBuildInsertSQL_MySQLUsesQuestionMarks(t *testing.T) {
	s := mustSchema(t, []schema.FieldSpec{
		{Name: "id", Type: fieldtype.Int32},
		{Name: "name", Type: fieldtype.String, Capacity: 32},
	})
	got := buildInsertSQL("mysql", "users", s)
	want := "INSERT INTO users (id, name) VALUES (?, ?)"
	if got != want {
		t.Errorf("buildInsertSQL() = %q, want %q", got, want)
	}
}

func TestBuildInsertSQL_PostgresUsesDollarPlaceholders(t *testing.T) {
	s := mustSchema(t, []schema.FieldSpec{
		{Name: "id", Type: fieldtype.Int32},
		{Name: "name", Type: fieldtype.String, Capacity: 32},
		{Name: "age", Type: fieldtype.Int32},
	})
	got := buildInsertSQL("postgres", "users", s)
	want := "INSERT INTO users (id, name, age) VALUES ($1, $2, $3)"
	if got != want {
		t.Errorf("buildInsertSQL() = %q, want %q", got, want)
	}
}

func TestNewBatchedSQL_RejectsUnsupportedDriver(t *testing.T) {
	s := mustSchema(t, []schema.FieldSpec{{Name: "id", Type: fieldtype.Int32}})
	_, err := NewBatchedSQL(SQLConfig{Driver: "oracle", DSN: "x", TableName: "t"}, s)
	if err == nil {
		t.Fatal("expected ConfigError for unsupported driver")
	}
}

func TestNewBatchedSQL_RejectsEmptyTableName(t *testing.T) {
	s := mustSchema(t, []schema.FieldSpec{{Name: "id", Type: fieldtype.Int32}})
	_, err := NewBatchedSQL(SQLConfig{Driver: "mysql", DSN: "x"}, s)
	if err == nil {
		t.Fatal("expected ConfigError for empty table name")
	}
}

func TestNewBatchedSQL_DefaultsBatchSizeAndWriteThreads(t *testing.T) {
	s := mustSchema(t, []schema.FieldSpec{{Name: "id", Type: fieldtype.Int32}})
	sink, err := NewBatchedSQL(SQLConfig{Driver: "mysql", DSN: "x", TableName: "t"}, s)
	if err != nil {
		t.Fatalf("NewBatchedSQL: %v", err)
	}
	if sink.cfg.BatchSize != 100 {
		t.Errorf("BatchSize = %d, want default 100", sink.cfg.BatchSize)
	}
	if sink.cfg.WriteThreads != 1 {
		t.Errorf("WriteThreads = %d, want default 1", sink.cfg.WriteThreads)
	}
}

func TestRowArgs_ConvertsEveryFieldInSchemaOrder(t *testing.T) {
	pool := bufpool.New()
	s := mustSchema(t, []schema.FieldSpec{
		{Name: "id", Type: fieldtype.Int32},
		{Name: "name", Type: fieldtype.String, Capacity: 16},
		{Name: "active", Type: fieldtype.Boolean},
	})
	buf := pool.RentBuffer(s.BufferSize())
	r := record.New(buf, s)
	_ = r.SetByName("id", record.NewInt32(7))
	_ = r.SetByName("name", record.NewString("alice"))
	_ = r.SetByName("active", record.NewBoolean(true))

	args, err := rowArgs(r, s)
	if err != nil {
		t.Fatalf("rowArgs: %v", err)
	}
	if len(args) != 3 {
		t.Fatalf("got %d args, want 3", len(args))
	}
	if args[0].(int32) != 7 {
		t.Errorf("args[0] = %v, want 7", args[0])
	}
	if args[1].(string) != "alice" {
		t.Errorf("args[1] = %v, want alice", args[1])
	}
	if args[2].(bool) != true {
		t.Errorf("args[2] = %v, want true", args[2])
	}
}

func TestRowMap_KeysByFieldName(t *testing.T) {
	pool := bufpool.New()
	s := mustSchema(t, []schema.FieldSpec{
		{Name: "id", Type: fieldtype.Int32},
		{Name: "name", Type: fieldtype.String, Capacity: 16},
	})
	buf := pool.RentBuffer(s.BufferSize())
	r := record.New(buf, s)
	_ = r.SetByName("id", record.NewInt32(42))
	_ = r.SetByName("name", record.NewString("bob"))

	doc, err := rowMap(r, s)
	if err != nil {
		t.Fatalf("rowMap: %v", err)
	}
	if doc["id"].(int32) != 42 {
		t.Errorf("doc[id] = %v, want 42", doc["id"])
	}
	if doc["name"].(string) != "bob" {
		t.Errorf("doc[name] = %v, want bob", doc["name"])
	}
}
