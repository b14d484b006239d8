package pipeline

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flowkit/etl/pkg/bufpool"
	"github.com/flowkit/etl/pkg/etlerr"
	"github.com/flowkit/etl/pkg/fieldtype"
	"github.com/flowkit/etl/pkg/record"
	"github.com/flowkit/etl/pkg/schema"
	"github.com/flowkit/etl/pkg/sink"
	"github.com/flowkit/etl/pkg/source"
	"github.com/flowkit/etl/pkg/stage"
	"github.com/flowkit/etl/pkg/transform"
)

// fakeSink is an in-memory Sink used only by this package's tests: it
// records every row it receives as a name/age pair so scenarios can
// assert on exactly what reached the Sink.
type fakeSink struct {
	*sink.Base
	schema *schema.Schema
	mu     sync.Mutex
	rows   [][]string
}

func newFakeSink(s *schema.Schema) *fakeSink {
	return &fakeSink{Base: sink.NewBase(1000), schema: s}
}

func (f *fakeSink) Schema() *schema.Schema { return f.schema }

func (f *fakeSink) Rows() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.rows))
	copy(out, f.rows)
	return out
}

func (f *fakeSink) Load(ctx context.Context, pool *bufpool.Pool, in <-chan *record.Record) error {
	var line int64
	for {
		select {
		case <-ctx.Done():
			f.EmitError(etlerr.Cancelled(), line, "")
			return etlerr.Cancelled()
		case r, ok := <-in:
			if !ok {
				f.EmitFinish()
				return nil
			}
			line++
			row := make([]string, f.schema.Len())
			for i := range row {
				v, _ := r.Get(i)
				row[i] = v.String()
			}
			pool.ReturnBuffer(r.Buffer())

			f.mu.Lock()
			f.rows = append(f.rows, row)
			f.mu.Unlock()
			f.AdvanceLine(1)
		}
	}
}

func writeTempCSV(t *testing.T, lines []string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "pipeline-*.csv")
	require.NoError(t, err)
	defer f.Close()
	for _, line := range lines {
		_, err := f.WriteString(line + "\n")
		require.NoError(t, err)
	}
	return f.Name()
}

func csvColumns() []source.ColumnSpec {
	return []source.ColumnSpec{
		{Name: "name", Type: fieldtype.String, Position: 0, Capacity: 16},
		{Name: "age", Type: fieldtype.Int32, Position: 1},
	}
}

// TestPipeline_HappyPath runs a small delimited-text source through a
// bypass transform into the fake sink and checks every row arrives in
// order (spec section 8.1's ordering invariant).
func TestPipeline_HappyPath(t *testing.T) {
	path := writeTempCSV(t, []string{"Alice,30", "Bob,40", "Carol,50"})
	pool := bufpool.New()
	src, err := source.NewDelimitedTextSource(source.DelimitedTextConfig{
		FilePath: path,
		Columns:  csvColumns(),
	}, pool)
	require.NoError(t, err)

	tr := transform.NewBypass(src.Schema(), 1000)
	sk := newFakeSink(src.Schema())

	p, err := New(src, tr, sk)
	require.NoError(t, err)
	require.NoError(t, p.Execute(context.Background()))

	rows := sk.Rows()
	require.Len(t, rows, 3)
	wantNames := []string{"Alice", "Bob", "Carol"}
	for i, want := range wantNames {
		require.Equal(t, want, rows[i][0], "row %d", i)
	}
}

// TestPipeline_SchemaMismatchFailsAtConstruction covers spec section
// 8.1's "Schema validation" invariant: incompatible schemas raise
// SchemaMismatch before any data flows.
func TestPipeline_SchemaMismatchFailsAtConstruction(t *testing.T) {
	path := writeTempCSV(t, []string{"Alice,30"})
	pool := bufpool.New()
	src, err := source.NewDelimitedTextSource(source.DelimitedTextConfig{
		FilePath: path,
		Columns:  csvColumns(),
	}, pool)
	require.NoError(t, err)

	otherSchema, err := schema.Build([]schema.FieldSpec{{Name: "only_field", Type: fieldtype.Int32}})
	require.NoError(t, err)

	tr := transform.NewBypass(otherSchema, 1000)
	sk := newFakeSink(otherSchema)

	_, err = New(src, tr, sk)
	require.Error(t, err)
	var etlErr *etlerr.Error
	require.ErrorAs(t, err, &etlErr)
	require.Equal(t, etlerr.KindSchemaMismatch, etlErr.Kind)
}

// TestPipeline_ExtractionErrorStopsAllStages realizes Scenario D: a
// malformed row partway through the input surfaces as an ExtractError
// and the sink never sees rows past the failure point.
func TestPipeline_ExtractionErrorStopsAllStages(t *testing.T) {
	path := writeTempCSV(t, []string{
		"Alice,30",
		"Bob,40",
		"Carol,not-a-number",
		"Dave,50",
		"Eve,60",
	})
	pool := bufpool.New()
	src, err := source.NewDelimitedTextSource(source.DelimitedTextConfig{
		FilePath: path,
		Columns:  csvColumns(),
	}, pool)
	require.NoError(t, err)

	tr := transform.NewBypass(src.Schema(), 1000)
	sk := newFakeSink(src.Schema())
	errCh := src.Errors()

	p, err := New(src, tr, sk)
	require.NoError(t, err)

	err = p.Execute(context.Background())
	require.Error(t, err, "expected an error for the malformed row")

	var errNotif stage.ErrorNotification
	select {
	case errNotif = <-errCh:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Source's on_error")
	}
	require.Equal(t, stage.Extract, errNotif.Stage)
	require.Equal(t, int64(3), errNotif.CurrentLine)

	require.LessOrEqual(t, len(sk.Rows()), 2, "sink must not see rows past the failing line")
}

// TestPipeline_CancellationStopsWithoutFinish realizes Scenario E:
// cancelling the context passed to Execute reports a Cancelled cause
// and the sink's on_finish never fires.
func TestPipeline_CancellationStopsWithoutFinish(t *testing.T) {
	lines := make([]string, 10_000)
	for i := range lines {
		lines[i] = "Name,1"
	}
	path := writeTempCSV(t, lines)
	pool := bufpool.New()
	src, err := source.NewDelimitedTextSource(source.DelimitedTextConfig{
		FilePath: path,
		Columns:  csvColumns(),
	}, pool)
	require.NoError(t, err)

	tr := transform.NewBypass(src.Schema(), 1000)
	sk := newFakeSink(src.Schema())
	finishCh := sk.Finish()

	p, err := New(src, tr, sk, WithChannelCapacity(1))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	err = p.Execute(ctx)
	var etlErr *etlerr.Error
	require.ErrorAs(t, err, &etlErr)
	require.Equal(t, etlerr.KindCancelled, etlErr.Kind)

	select {
	case _, ok := <-finishCh:
		require.False(t, ok, "sink's on_finish fired despite cancellation")
	case <-time.After(50 * time.Millisecond):
	}

	require.Less(t, len(sk.Rows()), 10_000, "cancellation had no effect on the run")
}
