// Package pipeline - Status events.
package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/nvr-ai/go-detect/models"
)

// EventType classifies a status event.
type EventType string

const (
	// EventStarted fires once per successful Start.
	EventStarted EventType = "started"
	// EventCycleCompleted fires after a cycle renders.
	EventCycleCompleted EventType = "cycle_completed"
	// EventCycleFailed fires when a cycle is abandoned; the loop keeps going.
	EventCycleFailed EventType = "cycle_failed"
	// EventFrameDropped fires when a frame arrives while a cycle is in
	// flight. Carries the cumulative drop count.
	EventFrameDropped EventType = "frame_dropped"
	// EventStreamEnded fires when a finite source runs out of frames.
	EventStreamEnded EventType = "stream_ended"
	// EventStopped fires once per Stop that actually tore a session down.
	EventStopped EventType = "stopped"
	// EventConfigSwitched fires after SwitchConfig brings the new
	// configuration up.
	EventConfigSwitched EventType = "config_switched"
)

// CycleMetrics is the timing record of one cycle, from the frame leaving the
// source to the overlays hitting the renderer.
type CycleMetrics struct {
	// FrameID identifies the frame the cycle processed.
	FrameID uuid.UUID
	// Sequence is the source-local frame number.
	Sequence uint64
	// CapturedAt is when the source produced the frame.
	CapturedAt time.Time
	// Start and End bound the processing of this cycle.
	Start time.Time
	End   time.Time
	// Latency is End minus Start.
	Latency time.Duration
	// FPS is derived from this cycle's end and the previous cycle's end.
	// Zero for the first cycle of a session.
	FPS float64

	// Per-stage durations.
	InferTime    time.Duration
	DecodeTime   time.Duration
	SuppressTime time.Duration
	MapTime      time.Duration
	RenderTime   time.Duration

	// Candidates is the detection count after decoding, Rendered the count
	// after suppression and mapping.
	Candidates int
	Rendered   int
}

// Event is one status update from the pipeline to its owner. Nothing the
// pipeline does is silently swallowed: every failure, drop and transition
// shows up here.
type Event struct {
	// Type classifies the event.
	Type EventType
	// At is when the event fired.
	At time.Time
	// Stream identifies the capture session the event belongs to.
	Stream uuid.UUID
	// Config names the model configuration active when the event fired.
	Config models.Name
	// Cycle carries per-cycle numbers on completion and failure events.
	Cycle *CycleMetrics
	// Err is set on failure events.
	Err error
	// Dropped is the cumulative drop count, set on drop events.
	Dropped int64
}
