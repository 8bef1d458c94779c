// Package capture - Frame acquisition from cameras, files and synthetic
// sources.
//
// A Source produces a stream of timestamped frames for the detection
// pipeline. Camera-backed sources live in the webcam subpackage so this
// package stays free of native dependencies.
package capture

import (
	"context"
	"image"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrResourceUnavailable indicates the underlying device or stream could not
// be opened. Fatal to pipeline start.
var ErrResourceUnavailable = errors.New("capture resource unavailable")

// ErrStreamEnded indicates a finite source ran out of frames. Not a fault;
// the pipeline shuts down cleanly when it sees it.
var ErrStreamEnded = errors.New("stream ended")

// Frame is a single captured image plus the identity and timing the pipeline
// threads through inference, suppression and rendering.
type Frame struct {
	// ID uniquely identifies the frame across the process lifetime.
	ID uuid.UUID
	// Sequence increments by one for every frame the source hands out.
	Sequence uint64
	// Image holds the decoded pixels.
	Image image.Image
	// CapturedAt is when the source produced the frame.
	CapturedAt time.Time
}

// NewFrame stamps an image with a fresh identity.
//
// Arguments:
//   - img: The decoded pixels.
//   - seq: The source-local sequence number.
//
// Returns:
//   - Frame: The stamped frame.
func NewFrame(img image.Image, seq uint64) Frame {
	return Frame{
		ID:         uuid.New(),
		Sequence:   seq,
		Image:      img,
		CapturedAt: time.Now(),
	}
}

// Source is a stream of frames.
//
// Sources are not safe for concurrent use: the pipeline reads from exactly
// one goroutine and releases the source when its loop exits.
type Source interface {
	// Acquire opens the underlying device or stream. Open failures wrap
	// ErrResourceUnavailable.
	Acquire(ctx context.Context) error

	// Read blocks until the next frame is available. Finite sources return
	// ErrStreamEnded once exhausted. Any other error spoils only the frame
	// being read, not the stream.
	Read(ctx context.Context) (Frame, error)

	// Release frees the underlying device. Safe to call more than once.
	Release() error
}
