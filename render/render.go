// Package render - Presentation of processed frames.
//
// A Renderer consumes frames with their mapped detections. The on-screen
// implementation lives in the window subpackage so the native OpenCV
// dependency only lands in binaries that draw.
package render

import (
	"github.com/nvr-ai/go-detect/capture"
	"github.com/nvr-ai/go-detect/images"
)

// Overlay is one detection ready to draw: a box in render-surface pixels plus
// its resolved label and confidence.
type Overlay struct {
	// Box is the detection rectangle in render coordinates.
	Box images.Rect
	// Label is the human-readable class name.
	Label string
	// Score is the detection confidence in [0,1].
	Score float32
	// Class is the numeric class index the label was resolved from.
	Class int
}

// Renderer is the presentation end of the pipeline.
//
// Draw is called from exactly one goroutine; implementations do not need
// internal locking.
type Renderer interface {
	// Size returns the pixel dimensions of the render surface. Detections
	// are scaled from model space into these dimensions before Draw.
	Size() (width, height int)

	// Draw presents one processed frame with its overlays.
	Draw(frame capture.Frame, overlays []Overlay) error

	// Close releases the render surface.
	Close() error
}
