package transform

import (
	"context"
	"testing"

	"github.com/flowkit/etl/pkg/bufpool"
	"github.com/flowkit/etl/pkg/fieldtype"
	"github.com/flowkit/etl/pkg/record"
	"github.com/flowkit/etl/pkg/schema"
)

func TestBypass_PassThrough(t *testing.T) {
	pool := bufpool.New()
	s := mustSchema(t, []schema.FieldSpec{
		{Name: "id", Type: fieldtype.Int32},
		{Name: "name", Type: fieldtype.String, Capacity: 16},
	})
	bp := NewBypass(s, 1000)

	in := make(chan *record.Record, 2)
	out := make(chan *record.Record, 2)
	for i, name := range []string{"a", "b"} {
		buf := pool.RentBuffer(s.BufferSize())
		r := record.New(buf, s)
		_ = r.SetByName("id", record.NewInt32(int32(i)))
		_ = r.SetByName("name", record.NewString(name))
		in <- r
	}
	close(in)

	if err := bp.Transform(context.Background(), pool, in, out); err != nil {
		t.Fatalf("Transform: %v", err)
	}
	close(out)

	var results []*record.Record
	for r := range out {
		results = append(results, r)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for i, name := range []string{"a", "b"} {
		got, _ := results[i].GetByName("name")
		if got.AsString() != name {
			t.Errorf("result %d name = %q, want %q", i, got.AsString(), name)
		}
	}
	c := bp.Counters()
	if c.TransformedLines != c.IngestedLines {
		t.Errorf("TransformedLines (%d) != IngestedLines (%d)", c.TransformedLines, c.IngestedLines)
	}
}
