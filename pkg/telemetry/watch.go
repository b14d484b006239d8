package telemetry

import (
	"github.com/flowkit/etl/pkg/sink"
	"github.com/flowkit/etl/pkg/source"
	"github.com/flowkit/etl/pkg/stage"
	"github.com/flowkit/etl/pkg/transform"
)

// watch drains progress and finish until finish fires or errs reports a
// failure, updating name's record via extract at each step. It is
// generic over the three stages' distinct notification shapes so the
// same goroutine body serves Extract, Transform, and Load.
func watch[N any](t *Telemetry, name stage.Name, progress, finish <-chan N, errs <-chan stage.ErrorNotification, extract func(N) (current, total int64)) {
	t.setStatus(name, stage.Running)
	go func() {
		p, f, e := progress, finish, errs
		for {
			select {
			case n, ok := <-p:
				if !ok {
					p = nil
					continue
				}
				cur, total := extract(n)
				t.update(name, cur, total, stage.Running)
			case n, ok := <-f:
				if !ok {
					return
				}
				cur, total := extract(n)
				t.update(name, cur, total, stage.Completed)
				return
			case err, ok := <-e:
				if !ok {
					e = nil
					continue
				}
				t.fail(name, err)
				return
			}
		}
	}()
}

// WatchExtract wires a Source's progress/finish/error channels in.
func WatchExtract(t *Telemetry, s source.Source) {
	watch(t, stage.Extract, s.Progress(), s.Finish(), s.Errors(), func(n stage.ExtractNotification) (int64, int64) {
		return n.LineNumber, n.TotalLines
	})
}

// WatchTransform wires a Transformer's progress/finish/error channels in.
func WatchTransform(t *Telemetry, tr transform.Transformer) {
	watch(t, stage.Transform, tr.Progress(), tr.Finish(), tr.Errors(), func(n stage.TransformNotification) (int64, int64) {
		return n.IngestedLines, n.TotalLines
	})
}

// WatchLoad wires a Sink's write/finish/error channels in.
func WatchLoad(t *Telemetry, sk sink.Sink) {
	watch(t, stage.Load, sk.OnWrite(), sk.Finish(), sk.Errors(), func(n stage.LoadNotification) (int64, int64) {
		return n.CurrentLine, n.TotalLines
	})
}
