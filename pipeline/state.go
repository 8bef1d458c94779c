// Package pipeline - Frame scheduling and lifecycle control.
//
// The pipeline drives the capture, infer, decode, suppress, map, render cycle
// with at most one inference in flight. Frames arriving while a cycle runs
// are dropped, never queued, trading frame completeness for bounded latency.
package pipeline

import (
	"time"

	"go.uber.org/atomic"
)

// SchedulerState is the shared state of one pipeline instance: the busy gate
// serializing cycles, the running flag, and the cycle timing the frame rate
// derives from. The scheduler loop mutates the busy gate and timestamps; the
// lifecycle controller mutates the running flag. Nothing else writes here.
type SchedulerState struct {
	running atomic.Bool
	busy    atomic.Bool
	dropped atomic.Int64
	cycles  atomic.Uint64

	// prevEnd is only touched from the cycle goroutine.
	prevEnd time.Time
}

// NewSchedulerState creates state with everything idle.
func NewSchedulerState() *SchedulerState {
	return &SchedulerState{}
}

// Request attempts the Idle to Busy transition for a new cycle.
//
// Returns:
//   - bool: True when the caller owns the cycle slot. False when a cycle is
//     already in flight and the frame must be dropped.
func (s *SchedulerState) Request() bool {
	return s.busy.CompareAndSwap(false, true)
}

// CompleteCycle performs the unconditional Busy to Idle transition and
// returns the instantaneous frame rate derived from consecutive cycle end
// times: 1000 / (currentEnd - previousEnd), in millisecond timestamps. The
// first cycle has no predecessor and reports 0.
//
// Arguments:
//   - end: The completion time of the cycle.
//
// Returns:
//   - float64: Frames per second across the last two cycle ends.
func (s *SchedulerState) CompleteCycle(end time.Time) float64 {
	fps := 0.0
	if !s.prevEnd.IsZero() {
		deltaMs := float64(end.Sub(s.prevEnd).Nanoseconds()) / 1e6
		if deltaMs > 0 {
			fps = 1000.0 / deltaMs
		}
	}
	s.prevEnd = end
	s.cycles.Inc()
	s.busy.Store(false)
	return fps
}

// RecordDrop counts one frame dropped while busy.
//
// Returns:
//   - int64: The cumulative drop count including this one.
func (s *SchedulerState) RecordDrop() int64 {
	return s.dropped.Inc()
}

// SetRunning flips the running flag. Only the lifecycle controller calls
// this.
func (s *SchedulerState) SetRunning(v bool) {
	s.running.Store(v)
}

// Running reports whether the loop is supposed to keep cycling.
func (s *SchedulerState) Running() bool {
	return s.running.Load()
}

// Busy reports whether a cycle is in flight.
func (s *SchedulerState) Busy() bool {
	return s.busy.Load()
}

// Dropped returns the number of frames dropped since the last reset.
func (s *SchedulerState) Dropped() int64 {
	return s.dropped.Load()
}

// Cycles returns the number of completed cycles since the last reset.
func (s *SchedulerState) Cycles() uint64 {
	return s.cycles.Load()
}

// Reset returns the state to its initial values. Called by the lifecycle
// controller after the loop goroutines have exited.
func (s *SchedulerState) Reset() {
	s.running.Store(false)
	s.busy.Store(false)
	s.dropped.Store(0)
	s.cycles.Store(0)
	s.prevEnd = time.Time{}
}
