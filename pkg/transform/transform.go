// Package transform implements the Transformer contract (spec sections
// 4.5, 6.2): a stage that reads records from the extract->transform
// channel and writes zero or more records per input to the
// transform->load channel. Two variants are provided — Bypass and
// RuleBased — matching spec section 4.5's two MUST-provide variants.
// Grounded on the teacher's pkg/stream/stage.go (PassthroughStage,
// FilterStage, RemapStage), generalized from its hardcoded condition
// strings to the compiled pkg/expr grammar.
package transform

import (
	"context"
	"sync/atomic"

	"github.com/flowkit/etl/pkg/bufpool"
	"github.com/flowkit/etl/pkg/record"
	"github.com/flowkit/etl/pkg/schema"
	"github.com/flowkit/etl/pkg/stage"
)

// Transformer is the contract of spec section 6.2.
type Transformer interface {
	InputSchema() *schema.Schema
	OutputSchema() *schema.Schema

	// Transform consumes in until it is closed or ctx is cancelled,
	// sending zero or more output records per input record to out.
	// pool is used to rent buffers for output records; ownership of
	// each input record's buffer passes to Transform on receipt (spec
	// section 4.6's buffer hand-off discipline) and Transform returns
	// it to pool once it no longer needs the input's data.
	Transform(ctx context.Context, pool *bufpool.Pool, in <-chan *record.Record, out chan<- *record.Record) error

	Progress() <-chan stage.TransformNotification
	Finish() <-chan stage.TransformNotification
	Errors() <-chan stage.ErrorNotification
	Counters() Counters
}

// Counters is the counter set named in spec section 6.2.
type Counters struct {
	IngestedLines    int64
	TransformedLines int64
	ExcludedByFilter int64
	PercentDone      float64
	TotalLines       int64
	Speed            float64
}

// Base is embedded by both Transformer implementations in this package,
// providing counters, Notifiers, and progress-frequency bookkeeping.
type Base struct {
	raiseChangeEvery int64
	totalLines       atomic.Int64
	ingested         atomic.Int64
	transformed      atomic.Int64
	excluded         atomic.Int64

	progress *stage.Notifier[stage.TransformNotification]
	finish   *stage.Notifier[stage.TransformNotification]
	errs     *stage.Notifier[stage.ErrorNotification]
}

func NewBase(raiseChangeEvery int64) *Base {
	if raiseChangeEvery <= 0 {
		raiseChangeEvery = 1000
	}
	return &Base{
		raiseChangeEvery: raiseChangeEvery,
		progress:         stage.NewNotifier[stage.TransformNotification](),
		finish:           stage.NewNotifier[stage.TransformNotification](),
		errs:             stage.NewNotifier[stage.ErrorNotification](),
	}
}

func (b *Base) Progress() <-chan stage.TransformNotification { return b.progress.Subscribe() }
func (b *Base) Finish() <-chan stage.TransformNotification   { return b.finish.Subscribe() }
func (b *Base) Errors() <-chan stage.ErrorNotification       { return b.errs.Subscribe() }

func (b *Base) SetTotalLines(n int64) { b.totalLines.Store(n) }

// RecordInput increments ingested_lines by 1 and transformed_lines by
// outputs, incrementing excluded_by_filter separately via
// RecordExcluded. Fires on_progress exactly every raiseChangeEvery
// input rows (spec section 9, open question 2).
func (b *Base) RecordInput(outputs int) {
	line := b.ingested.Add(1)
	b.transformed.Add(int64(outputs))
	if line%b.raiseChangeEvery == 0 {
		b.progress.Emit(b.notification())
	}
}

// RecordExcluded increments excluded_by_filter by 1.
func (b *Base) RecordExcluded() {
	b.excluded.Add(1)
}

func (b *Base) EmitFinish() {
	b.finish.Emit(b.notification())
	b.finish.Close()
	b.progress.Close()
}

func (b *Base) EmitError(cause error, line int64, partial string) {
	b.errs.Emit(stage.ErrorNotification{
		Stage:              stage.Transform,
		Cause:              cause,
		CurrentLine:        line,
		PartialRowSnapshot: partial,
	})
	b.errs.Close()
	b.progress.Close()
}

func (b *Base) notification() stage.TransformNotification {
	total := b.totalLines.Load()
	ingested := b.ingested.Load()
	var pct float64
	if total > 0 {
		pct = float64(ingested) / float64(total) * 100
	}
	return stage.TransformNotification{
		IngestedLines:    ingested,
		TransformedLines: b.transformed.Load(),
		ExcludedByFilter: b.excluded.Load(),
		PercentDone:      pct,
		TotalLines:       total,
	}
}

func (b *Base) Counters() Counters {
	total := b.totalLines.Load()
	ingested := b.ingested.Load()
	var pct float64
	if total > 0 {
		pct = float64(ingested) / float64(total) * 100
	}
	return Counters{
		IngestedLines:    ingested,
		TransformedLines: b.transformed.Load(),
		ExcludedByFilter: b.excluded.Load(),
		PercentDone:      pct,
		TotalLines:       total,
	}
}
