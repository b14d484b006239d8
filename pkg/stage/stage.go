// Package stage defines the small set of types shared by every pipeline
// stage (Extract, Transform, Load) and by Telemetry's aggregation of them:
// the stage/status enums and the progress/error notification shapes from
// spec section 6.5. It has no dependencies on source/transform/sink/
// pipeline so those packages can all depend on it without cycles.
package stage

import "time"

// Name identifies one of the three data-moving stages, or the synthetic
// Global aggregation telemetry computes on top of them.
type Name string

const (
	Extract  Name = "Extract"
	Transform Name = "Transform"
	Load     Name = "Load"
	Global   Name = "Global"
)

// Status is a stage's lifecycle state as observed by telemetry.
type Status string

const (
	Idle      Status = "Idle"
	Running   Status = "Running"
	Completed Status = "Completed"
	Failed    Status = "Failed"
)

// Progress is the common shape of a stage_progress record, keyed by Name
// in telemetry's aggregation.
type Progress struct {
	Stage             Name
	CurrentLine       int64
	TotalLines        int64
	PercentComplete   float64
	Status            Status
	SpeedRowsPerSec   float64
	EstimatedRemaining time.Duration
}

// ExtractNotification is emitted on a Source's on_progress/on_finish events.
type ExtractNotification struct {
	LineNumber  int64
	BytesRead   int64
	PercentRead float64
	TotalLines  int64
	SourceSize  int64
}

// TransformNotification is emitted on a Transformer's on_progress/on_finish
// events.
type TransformNotification struct {
	IngestedLines    int64
	TransformedLines int64
	ExcludedByFilter int64
	PercentDone      float64
	TotalLines       int64
	Speed            float64
}

// LoadNotification is emitted on a Sink's on_write/on_finish events.
type LoadNotification struct {
	CurrentLine     int64
	TotalLines      int64
	PercentWritten  float64
}

// ErrorNotification is the payload delivered on a stage's on_error event,
// per spec section 6.5. Cause carries the underlying *etlerr.Error.
type ErrorNotification struct {
	Stage            Name
	Cause            error
	CurrentLine      int64
	PartialRowSnapshot string
}
