// Package telemetry aggregates the three stages' progress and error
// streams into the four stage_progress records of spec section 4.7,
// keyed by {Extract, Transform, Load, Global}. Modeled after the
// teacher's pkg/stream/types.go ProcessorStats/StageStats: a lock-
// protected snapshot plus a push event, rather than an events-only
// design, since the teacher's own StreamProcessor.Stats() offers a
// pull-based snapshot alongside on_progress/on_finish.
package telemetry

import (
	"sync"
	"time"

	"github.com/flowkit/etl/pkg/stage"
)

// Snapshot is a point-in-time copy of all four stage_progress records.
type Snapshot map[stage.Name]stage.Progress

// Telemetry aggregates Extract, Transform, and Load progress into
// itself plus a derived Global record. The zero value is not usable;
// construct with New.
type Telemetry struct {
	mu      sync.Mutex
	started time.Time
	stages  map[stage.Name]stage.Progress

	onChange *stage.Notifier[Snapshot]
	onError  *stage.Notifier[stage.ErrorNotification]
}

// New constructs a Telemetry and starts its process-wide elapsed-time
// clock (spec section 4.7: "Global is computed from the Load stage's
// counters plus a process-wide elapsed-time clock started when
// telemetry is constructed").
func New() *Telemetry {
	t := &Telemetry{
		started: time.Now(),
		stages: map[stage.Name]stage.Progress{
			stage.Extract:   {Stage: stage.Extract, Status: stage.Idle},
			stage.Transform: {Stage: stage.Transform, Status: stage.Idle},
			stage.Load:      {Stage: stage.Load, Status: stage.Idle},
			stage.Global:    {Stage: stage.Global, Status: stage.Idle},
		},
		onChange: stage.NewNotifier[Snapshot](),
		onError:  stage.NewNotifier[stage.ErrorNotification](),
	}
	return t
}

// OnChange fires once per any stage's progress update, carrying a full
// snapshot of all four records (spec section 4.7's single on_change
// event).
func (t *Telemetry) OnChange() <-chan Snapshot { return t.onChange.Subscribe() }

// OnError re-emits any stage's on_error unchanged.
func (t *Telemetry) OnError() <-chan stage.ErrorNotification { return t.onError.Subscribe() }

// Stats returns a snapshot of the current state of all four records,
// for pull-based inspection alongside the push-based OnChange stream.
func (t *Telemetry) Stats() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.copyLocked()
}

func (t *Telemetry) copyLocked() Snapshot {
	out := make(Snapshot, len(t.stages))
	for k, v := range t.stages {
		out[k] = v
	}
	return out
}

// update records name's current/total counters and status, recomputes
// speed/estimated_remaining from the elapsed-time clock, recomputes
// Global, and fires OnChange with the new snapshot.
func (t *Telemetry) update(name stage.Name, current, total int64, status stage.Status) {
	t.mu.Lock()
	elapsed := time.Since(t.started).Seconds()
	var speed float64
	if elapsed > 0 {
		speed = float64(current) / elapsed
	}
	var pct float64
	if total > 0 {
		pct = float64(current) / float64(total) * 100
	}
	var remaining time.Duration
	if speed > 0 && total > current {
		remaining = time.Duration(float64(total-current) / speed * float64(time.Second))
	}
	t.stages[name] = stage.Progress{
		Stage:              name,
		CurrentLine:        current,
		TotalLines:         total,
		PercentComplete:    pct,
		Status:             status,
		SpeedRowsPerSec:    speed,
		EstimatedRemaining: remaining,
	}
	t.recomputeGlobalLocked()
	snap := t.copyLocked()
	t.mu.Unlock()

	t.onChange.Emit(snap)
}

// setStatus changes name's status without touching its counters (used
// when a stage starts running, before its first progress event).
func (t *Telemetry) setStatus(name stage.Name, status stage.Status) {
	t.mu.Lock()
	p := t.stages[name]
	p.Status = status
	t.stages[name] = p
	t.recomputeGlobalLocked()
	snap := t.copyLocked()
	t.mu.Unlock()

	t.onChange.Emit(snap)
}

// recomputeGlobalLocked derives the Global record from the Load stage's
// counters plus the shared elapsed-time clock (spec section 4.7), and
// derives Global's status from the three data-moving stages: Completed
// once all three are Completed, Failed as soon as any one is Failed,
// Running if anything has started, Idle otherwise. Caller must hold mu.
func (t *Telemetry) recomputeGlobalLocked() {
	load := t.stages[stage.Load]

	status := stage.Idle
	anyRunning, anyFailed, allCompleted := false, false, true
	for _, name := range []stage.Name{stage.Extract, stage.Transform, stage.Load} {
		s := t.stages[name].Status
		switch s {
		case stage.Failed:
			anyFailed = true
			allCompleted = false
		case stage.Running:
			anyRunning = true
			allCompleted = false
		case stage.Idle:
			allCompleted = false
		}
	}
	switch {
	case anyFailed:
		status = stage.Failed
	case allCompleted:
		status = stage.Completed
	case anyRunning:
		status = stage.Running
	}

	t.stages[stage.Global] = stage.Progress{
		Stage:              stage.Global,
		CurrentLine:        load.CurrentLine,
		TotalLines:         load.TotalLines,
		PercentComplete:    load.PercentComplete,
		Status:             status,
		SpeedRowsPerSec:    load.SpeedRowsPerSec,
		EstimatedRemaining: load.EstimatedRemaining,
	}
}

// fail marks name Failed and re-emits cause unchanged on OnError (spec
// section 4.7's "re-emits any stage's on_error unchanged").
func (t *Telemetry) fail(name stage.Name, cause stage.ErrorNotification) {
	t.mu.Lock()
	p := t.stages[name]
	p.Status = stage.Failed
	t.stages[name] = p
	t.recomputeGlobalLocked()
	snap := t.copyLocked()
	t.mu.Unlock()

	t.onChange.Emit(snap)
	t.onError.Emit(cause)
}
