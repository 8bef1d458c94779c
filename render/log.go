// Package render - Headless rendering into structured logs.
package render

import (
	"go.uber.org/zap"

	"github.com/nvr-ai/go-detect/capture"
)

// LogRenderer writes one log line per frame instead of drawing. It stands in
// for the window on servers and in long-running soak tests.
type LogRenderer struct {
	width  int
	height int
	logger *zap.Logger
	frames uint64
}

// NewLogRenderer creates a renderer reporting a surface of the given size.
//
// Arguments:
//   - width: Reported surface width in pixels.
//   - height: Reported surface height in pixels.
//   - logger: Destination logger. Nil logs nothing.
//
// Returns:
//   - *LogRenderer: The renderer.
func NewLogRenderer(width, height int, logger *zap.Logger) *LogRenderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogRenderer{width: width, height: height, logger: logger}
}

// Size returns the configured surface dimensions.
func (r *LogRenderer) Size() (int, int) {
	return r.width, r.height
}

// Draw logs the frame's detections.
func (r *LogRenderer) Draw(frame capture.Frame, overlays []Overlay) error {
	r.frames++

	fields := []zap.Field{
		zap.String("frame", frame.ID.String()),
		zap.Uint64("sequence", frame.Sequence),
		zap.Int("detections", len(overlays)),
	}
	if len(overlays) > 0 {
		top := overlays[0]
		fields = append(fields,
			zap.String("top_label", top.Label),
			zap.Float32("top_score", top.Score),
		)
	}
	r.logger.Debug("frame rendered", fields...)
	return nil
}

// Frames returns how many frames have been drawn since creation.
func (r *LogRenderer) Frames() uint64 {
	return r.frames
}

// Close is a no-op; the logger is owned by the caller.
func (r *LogRenderer) Close() error {
	return nil
}
