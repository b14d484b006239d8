// Package pipeline wires a Source, a Transformer, and a Sink into one
// cooperating run (spec sections 4.6, 5, 6): a schema compatibility
// check at construction, two bounded channels carrying buffer
// ownership across stage boundaries, a shared cancellation token, and
// the completion protocol (Source closes extract->transform on
// exhaustion, Transformer closes transform->load on input exhaustion,
// Sink drains and flushes before reporting finish). Grounded on the
// teacher's pkg/stream/pipeline_actor.go, which wires its own three
// stages the same way over buffered Go channels plus a shared
// context.Context.
package pipeline

import (
	"context"
	"sync"

	"github.com/flowkit/etl/pkg/bufpool"
	"github.com/flowkit/etl/pkg/etlerr"
	"github.com/flowkit/etl/pkg/record"
	"github.com/flowkit/etl/pkg/sink"
	"github.com/flowkit/etl/pkg/source"
	"github.com/flowkit/etl/pkg/telemetry"
	"github.com/flowkit/etl/pkg/transform"
)

// defaultChannelCapacity is the recommended backpressure default of
// spec section 4.6.
const defaultChannelCapacity = 256

// Pipeline orchestrates one Source -> Transformer -> Sink run.
type Pipeline struct {
	source      source.Source
	transformer transform.Transformer
	sink        sink.Sink
	pool        *bufpool.Pool
	channelCap  int
	telemetry   *telemetry.Telemetry
}

// Option configures a Pipeline at construction.
type Option func(*Pipeline)

// WithChannelCapacity sets the bounded capacity of both inter-stage
// channels (spec section 4.6's recommended-default backpressure knob).
func WithChannelCapacity(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.channelCap = n
		}
	}
}

// WithPool supplies a pre-built buffer pool instead of a fresh one, so
// callers can share a single pool across multiple pipeline runs.
func WithPool(pool *bufpool.Pool) Option {
	return func(p *Pipeline) { p.pool = pool }
}

// New validates that src's output schema, tr's input/output schemas,
// and sk's schema are positionally compatible (spec section 4.6), and
// returns a ready-to-run Pipeline. An incompatible schema chain is
// reported as SchemaMismatch before any data flows (spec section 8.1).
func New(src source.Source, tr transform.Transformer, sk sink.Sink, opts ...Option) (*Pipeline, error) {
	if !src.Schema().PositionallyCompatible(tr.InputSchema()) {
		return nil, etlerr.SchemaMismatch("source schema incompatible with transformer input schema")
	}
	if !tr.OutputSchema().PositionallyCompatible(sk.Schema()) {
		return nil, etlerr.SchemaMismatch("transformer output schema incompatible with sink schema")
	}
	p := &Pipeline{
		source:      src,
		transformer: tr,
		sink:        sk,
		pool:        bufpool.New(),
		channelCap:  defaultChannelCapacity,
		telemetry:   telemetry.New(),
	}
	for _, opt := range opts {
		opt(p)
	}
	telemetry.WatchExtract(p.telemetry, src)
	telemetry.WatchTransform(p.telemetry, tr)
	telemetry.WatchLoad(p.telemetry, sk)
	return p, nil
}

// Telemetry returns the aggregator wired to this pipeline's three
// stages (spec section 4.7).
func (p *Pipeline) Telemetry() *telemetry.Telemetry { return p.telemetry }

// Execute runs all three stages concurrently and returns once every
// stage has terminated. A cancelled ctx, or any stage's own error,
// cancels the other two stages cooperatively (spec section 4.6's error
// and cancellation propagation); Execute's own return value is the
// first error observed across the three stages, or nil on success
// (spec section 7: "Success iff no error event was fired").
func (p *Pipeline) Execute(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	extractToTransform := make(chan *record.Record, p.channelCap)
	transformToLoad := make(chan *record.Record, p.channelCap)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	report := func(err error) {
		if err == nil {
			return
		}
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
		cancel()
	}

	wg.Add(3)

	go func() {
		defer wg.Done()
		defer close(extractToTransform)
		err := p.source.Extract(runCtx, func(r *record.Record) error {
			cp := p.pool.RentBuffer(len(r.Buffer()))
			copy(cp, r.Buffer())
			out := record.New(cp, r.Schema())
			select {
			case extractToTransform <- out:
				return nil
			case <-runCtx.Done():
				p.pool.ReturnBuffer(cp)
				return etlerr.Cancelled()
			}
		})
		report(err)
	}()

	go func() {
		defer wg.Done()
		defer close(transformToLoad)
		err := p.transformer.Transform(runCtx, p.pool, extractToTransform, transformToLoad)
		report(err)
	}()

	go func() {
		defer wg.Done()
		err := p.sink.Load(runCtx, p.pool, transformToLoad)
		report(err)
	}()

	wg.Wait()

	// A cancellation signaled on the caller's own ctx takes priority
	// over whatever wrapped error an individual stage happened to
	// return while unwinding (spec section 8.2, Scenario E: "execute()
	// completes with a Cancelled cause"). A stage error that triggered
	// our *internal* cancellation (runCtx) without the caller's ctx
	// itself being cancelled is reported as-is (Scenario D).
	if ctx.Err() != nil {
		return etlerr.Cancelled()
	}
	return firstErr
}
