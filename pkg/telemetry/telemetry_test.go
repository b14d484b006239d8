package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowkit/etl/pkg/stage"
)

func TestTelemetry_GlobalCompletesOnlyWhenAllStagesComplete(t *testing.T) {
	tel := New()

	extractProgress := make(chan stage.ExtractNotification)
	extractFinish := make(chan stage.ExtractNotification, 1)
	extractErrs := make(chan stage.ErrorNotification)
	transformProgress := make(chan stage.TransformNotification)
	transformFinish := make(chan stage.TransformNotification, 1)
	transformErrs := make(chan stage.ErrorNotification)
	loadWrite := make(chan stage.LoadNotification)
	loadFinish := make(chan stage.LoadNotification, 1)
	loadErrs := make(chan stage.ErrorNotification)

	watch(tel, stage.Extract, extractProgress, extractFinish, extractErrs, func(n stage.ExtractNotification) (int64, int64) {
		return n.LineNumber, n.TotalLines
	})
	watch(tel, stage.Transform, transformProgress, transformFinish, transformErrs, func(n stage.TransformNotification) (int64, int64) {
		return n.IngestedLines, n.TotalLines
	})
	watch(tel, stage.Load, loadWrite, loadFinish, loadErrs, func(n stage.LoadNotification) (int64, int64) {
		return n.CurrentLine, n.TotalLines
	})

	require.Equal(t, stage.Running, tel.Stats()[stage.Global].Status, "Global should be Running once any stage starts")

	extractFinish <- stage.ExtractNotification{LineNumber: 10, TotalLines: 10}
	waitForStatus(t, tel, stage.Extract, stage.Completed)
	assert.NotEqual(t, stage.Completed, tel.Stats()[stage.Global].Status, "Global must not complete while Transform/Load are still running")

	transformFinish <- stage.TransformNotification{IngestedLines: 10, TransformedLines: 10, TotalLines: 10}
	waitForStatus(t, tel, stage.Transform, stage.Completed)
	assert.NotEqual(t, stage.Completed, tel.Stats()[stage.Global].Status, "Global must not complete while Load is still running")

	loadFinish <- stage.LoadNotification{CurrentLine: 10, TotalLines: 10, PercentWritten: 100}
	waitForStatus(t, tel, stage.Load, stage.Completed)
	waitForStatus(t, tel, stage.Global, stage.Completed)
}

func TestTelemetry_AnyStageFailureFailsGlobalImmediately(t *testing.T) {
	tel := New()

	extractProgress := make(chan stage.ExtractNotification)
	extractFinish := make(chan stage.ExtractNotification, 1)
	extractErrs := make(chan stage.ErrorNotification, 1)
	transformProgress := make(chan stage.TransformNotification)
	transformFinish := make(chan stage.TransformNotification, 1)
	transformErrs := make(chan stage.ErrorNotification)

	watch(tel, stage.Extract, extractProgress, extractFinish, extractErrs, func(n stage.ExtractNotification) (int64, int64) {
		return n.LineNumber, n.TotalLines
	})
	watch(tel, stage.Transform, transformProgress, transformFinish, transformErrs, func(n stage.TransformNotification) (int64, int64) {
		return n.IngestedLines, n.TotalLines
	})

	errCh := tel.OnError()
	extractErrs <- stage.ErrorNotification{Stage: stage.Extract, CurrentLine: 3}

	select {
	case e := <-errCh:
		assert.Equal(t, stage.Extract, e.Stage)
		assert.Equal(t, int64(3), e.CurrentLine)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for OnError")
	}
	waitForStatus(t, tel, stage.Extract, stage.Failed)
	waitForStatus(t, tel, stage.Global, stage.Failed)
}

func waitForStatus(t *testing.T, tel *Telemetry, name stage.Name, want stage.Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		return tel.Stats()[name].Status == want
	}, time.Second, time.Millisecond, "%s status never reached %v, got %v", name, want, tel.Stats()[name].Status)
}
