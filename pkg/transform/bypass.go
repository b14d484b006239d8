package transform

import (
	"context"

	"github.com/flowkit/etl/pkg/bufpool"
	"github.com/flowkit/etl/pkg/etlerr"
	"github.com/flowkit/etl/pkg/record"
	"github.com/flowkit/etl/pkg/schema"
)

// Bypass forwards every input record to the output unchanged (spec
// section 4.5.1). Its counters mirror the input exactly:
// transformed_lines == ingested_lines for every run, and it exists so
// the pipeline always has a transformer stage even when none is
// configured in the rule set.
type Bypass struct {
	*Base
	schema *schema.Schema
}

// NewBypass builds a Bypass transformer whose input and output schema
// are both s (it never changes field layout).
func NewBypass(s *schema.Schema, raiseChangeEvery int64) *Bypass {
	return &Bypass{Base: NewBase(raiseChangeEvery), schema: s}
}

func (t *Bypass) InputSchema() *schema.Schema  { return t.schema }
func (t *Bypass) OutputSchema() *schema.Schema { return t.schema }

// Transform copies each input record's bytes into a freshly rented
// output buffer — maintaining the buffer hand-off discipline of spec
// section 4.6 even though Bypass performs no field-level change — and
// forwards it, then returns the input's buffer to pool.
func (t *Bypass) Transform(ctx context.Context, pool *bufpool.Pool, in <-chan *record.Record, out chan<- *record.Record) error {
	var line int64
	for {
		select {
		case <-ctx.Done():
			t.EmitError(etlerr.Cancelled(), line, "")
			return etlerr.Cancelled()
		case r, ok := <-in:
			if !ok {
				t.EmitFinish()
				return nil
			}
			line++
			outBuf := pool.RentBuffer(t.schema.BufferSize())
			copy(outBuf, r.Buffer())
			pool.ReturnBuffer(r.Buffer())

			t.RecordInput(1)

			select {
			case <-ctx.Done():
				pool.ReturnBuffer(outBuf)
				t.EmitError(etlerr.Cancelled(), line, "")
				return etlerr.Cancelled()
			case out <- record.New(outBuf, t.schema):
			}
		}
	}
}
