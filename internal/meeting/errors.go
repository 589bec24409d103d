package meeting

import (
	"fmt"
)

// DeviceError reports that no usable input device could be opened when a
// meeting was started.
type DeviceError struct {
	Err error
}

func (e *DeviceError) Error() string { return "meeting: audio device: " + e.Err.Error() }
func (e *DeviceError) Unwrap() error { return e.Err }

// CaptureError describes trouble in the capture loop. Overflows are counted
// and never fatal; Fatal is set when the loop ended on a read failure.
type CaptureError struct {
	Overflows int64
	Fatal     bool
	Err       error
}

func (e *CaptureError) Error() string {
	if e.Fatal {
		return fmt.Sprintf("meeting: capture failed after %d overflows: %v", e.Overflows, e.Err)
	}
	return fmt.Sprintf("meeting: capture degraded, %d overflows", e.Overflows)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// StateConflictError is returned when an operation is not allowed in the
// orchestrator's current state, e.g. starting while a meeting is active.
type StateConflictError struct {
	Op    string
	State State
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("meeting: cannot %s while %s", e.Op, e.State)
}

// Stage names the engine step an [EngineError] came from.
type Stage string

const (
	StageStream     Stage = "stream"
	StageTranscribe Stage = "transcribe"
	StageSummarize  Stage = "summarize"
)

// EngineError wraps a transcription or summarization failure.
type EngineError struct {
	Stage Stage
	Err   error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("meeting: %s: %v", e.Stage, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// PersistenceError reports that a store rejected a meeting record after
// Attempts tries.
type PersistenceError struct {
	Store    string
	Attempts int
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("meeting: save to %s failed after %d attempt(s): %v", e.Store, e.Attempts, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
