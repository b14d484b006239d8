package bufpool

import (
	"testing"

	"github.com/flowkit/etl/pkg/fieldtype"
	"github.com/flowkit/etl/pkg/schema"
)

func TestRentBuffer_ZeroedAndSized(t *testing.T) {
	p := New()
	buf := p.RentBuffer(32)
	if len(buf) != 32 {
		t.Fatalf("len(buf) = %d, want 32", len(buf))
	}
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d not zeroed: %d", i, b)
		}
	}
}

func TestRentBuffer_ReuseIsZeroedAgain(t *testing.T) {
	p := New()
	buf := p.RentBuffer(16)
	for i := range buf {
		buf[i] = 0xFF
	}
	p.ReturnBuffer(buf)

	buf2 := p.RentBuffer(16)
	for i, b := range buf2 {
		if b != 0 {
			t.Fatalf("reused buffer byte %d not zeroed: %d", i, b)
		}
	}
}

func TestRentBuffer_GrowsPastSmallerCachedBuffer(t *testing.T) {
	p := New()
	small := p.RentBuffer(8)
	p.ReturnBuffer(small)
	big := p.RentBuffer(4096)
	if len(big) != 4096 {
		t.Fatalf("len(big) = %d, want 4096", len(big))
	}
}

func TestRentSchemaArray_ClearedOnReuse(t *testing.T) {
	p := New()
	arr := p.RentSchemaArray(2)
	arr[0] = schema.FieldDescriptor{Name: "x", Type: fieldtype.Int32}
	p.ReturnSchemaArray(arr)

	arr2 := p.RentSchemaArray(2)
	if arr2[0].Name != "" {
		t.Fatalf("reused schema array not cleared: %+v", arr2[0])
	}
}

func TestBufferSizeFor(t *testing.T) {
	s, err := schema.Build([]schema.FieldSpec{
		{Name: "id", Type: fieldtype.Int32},
		{Name: "name", Type: fieldtype.String, Capacity: 8},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := BufferSizeFor(s); got != 12 {
		t.Fatalf("BufferSizeFor() = %d, want 12", got)
	}
}
