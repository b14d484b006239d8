// Package sink implements the Loader contract (spec sections 4.6, 6.3):
// a stage that drains the transform->load channel, batches records, and
// writes them to an external target. The reference implementation is
// the REQUIRED batched SQL sink (spec section 4.6, realizing Scenario
// F); Elasticsearch and MongoDB sinks are supplemental. All three share
// the batched-flush, write-worker-pool shape of the teacher's
// pkg/stream/sink.go BufferedSink, generalized from one writer goroutine
// to a configurable pool.
package sink

import (
	"context"
	"sync/atomic"

	"github.com/flowkit/etl/pkg/bufpool"
	"github.com/flowkit/etl/pkg/record"
	"github.com/flowkit/etl/pkg/schema"
	"github.com/flowkit/etl/pkg/stage"
)

// Sink is the contract of spec section 6.3.
type Sink interface {
	Schema() *schema.Schema

	// Load drains in until it is closed or ctx is cancelled, batching
	// and writing records, and returns once the final batch is
	// committed (or the run is aborted). pool is used to return each
	// input record's buffer once Load has copied out the values it
	// needs (spec section 4.6's buffer hand-off discipline).
	Load(ctx context.Context, pool *bufpool.Pool, in <-chan *record.Record) error

	OnWrite() <-chan stage.LoadNotification
	Finish() <-chan stage.LoadNotification
	Errors() <-chan stage.ErrorNotification
	Counters() Counters
}

// Counters is the counter set named in spec section 6.3.
type Counters struct {
	CurrentLine    int64
	TotalLines     int64
	PercentWritten float64
}

// Base is embedded by every Sink implementation in this package.
type Base struct {
	raiseChangeEvery int64
	totalLines       atomic.Int64
	currentLine      atomic.Int64

	onWrite *stage.Notifier[stage.LoadNotification]
	finish  *stage.Notifier[stage.LoadNotification]
	errs    *stage.Notifier[stage.ErrorNotification]
}

func NewBase(raiseChangeEvery int64) *Base {
	if raiseChangeEvery <= 0 {
		raiseChangeEvery = 1000
	}
	return &Base{
		raiseChangeEvery: raiseChangeEvery,
		onWrite:          stage.NewNotifier[stage.LoadNotification](),
		finish:           stage.NewNotifier[stage.LoadNotification](),
		errs:             stage.NewNotifier[stage.ErrorNotification](),
	}
}

func (b *Base) OnWrite() <-chan stage.LoadNotification { return b.onWrite.Subscribe() }
func (b *Base) Finish() <-chan stage.LoadNotification  { return b.finish.Subscribe() }
func (b *Base) Errors() <-chan stage.ErrorNotification { return b.errs.Subscribe() }

func (b *Base) SetTotalLines(n int64) { b.totalLines.Store(n) }

// AdvanceLine advances current_line by n (one call per committed batch,
// or per record if the implementation prefers finer granularity) and
// fires on_write exactly every raiseChangeEvery rows.
func (b *Base) AdvanceLine(n int64) int64 {
	line := b.currentLine.Add(n)
	if line%b.raiseChangeEvery < n || n >= b.raiseChangeEvery {
		b.onWrite.Emit(b.notification())
	}
	return line
}

func (b *Base) EmitFinish() {
	b.finish.Emit(b.notification())
	b.finish.Close()
	b.onWrite.Close()
}

func (b *Base) EmitError(cause error, line int64, partial string) {
	b.errs.Emit(stage.ErrorNotification{
		Stage:              stage.Load,
		Cause:              cause,
		CurrentLine:        line,
		PartialRowSnapshot: partial,
	})
	b.errs.Close()
	b.onWrite.Close()
}

func (b *Base) notification() stage.LoadNotification {
	line := b.currentLine.Load()
	total := b.totalLines.Load()
	var pct float64
	if total > 0 {
		pct = float64(line) / float64(total) * 100
	}
	return stage.LoadNotification{CurrentLine: line, TotalLines: total, PercentWritten: pct}
}

func (b *Base) Counters() Counters {
	line := b.currentLine.Load()
	total := b.totalLines.Load()
	var pct float64
	if total > 0 {
		pct = float64(line) / float64(total) * 100
	}
	return Counters{CurrentLine: line, TotalLines: total, PercentWritten: pct}
}
