// Package capture - Procedural frame generation.
package capture

import (
	"context"
	"image"
	"image/color"
	"time"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detect/images"
)

// SyntheticSource renders procedurally generated frames: a drifting sinusoidal
// gradient with a bright block orbiting the center. It gives the pipeline real
// pixel data to chew on without camera hardware or fixture files.
type SyntheticSource struct {
	resolution images.Resolution
	interval   time.Duration
	seq        uint64
	acquired   bool
}

// NewSyntheticSource creates a generator producing frames at the given
// resolution, no faster than one per interval. A zero interval produces
// frames as fast as they are read.
//
// Arguments:
//   - resolution: The frame size to render.
//   - interval: Minimum spacing between frames.
//
// Returns:
//   - *SyntheticSource: The source.
func NewSyntheticSource(resolution images.Resolution, interval time.Duration) *SyntheticSource {
	return &SyntheticSource{resolution: resolution, interval: interval}
}

// Acquire marks the source ready. Generation cannot fail, so this never
// returns an error.
func (s *SyntheticSource) Acquire(_ context.Context) error {
	s.acquired = true
	return nil
}

// Read renders the next frame, waiting out the configured interval first.
func (s *SyntheticSource) Read(ctx context.Context) (Frame, error) {
	if !s.acquired {
		return Frame{}, errors.Wrap(ErrResourceUnavailable, "source not acquired")
	}
	if s.interval > 0 {
		select {
		case <-time.After(s.interval):
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		}
	}
	s.seq++
	return NewFrame(s.render(), s.seq), nil
}

// Release stops the generator. Reads after Release fail until the source is
// acquired again.
func (s *SyntheticSource) Release() error {
	s.acquired = false
	return nil
}

// render paints the frame for the current sequence number. Deterministic in
// seq, so two sources at the same position produce identical pixels.
func (s *SyntheticSource) render() image.Image {
	w := s.resolution.Pixels.Width
	h := s.resolution.Pixels.Height
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	phase := float32(s.seq) * 0.1
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := 0.5 + 0.25*math32.Sin(0.05*float32(x)+phase) +
				0.25*math32.Sin(0.05*float32(y)-phase)
			g := uint8(v * 255)
			img.SetRGBA(x, y, color.RGBA{R: g, G: g, B: g, A: 255})
		}
	}

	// A bright block orbiting the center gives downstream stages a stable
	// high-contrast region that moves from frame to frame.
	cx := float32(w)/2 + float32(w)/4*math32.Cos(phase)
	cy := float32(h)/2 + float32(h)/4*math32.Sin(phase)
	side := h / 8
	for dy := -side / 2; dy < side/2; dy++ {
		for dx := -side / 2; dx < side/2; dx++ {
			x := int(cx) + dx
			y := int(cy) + dy
			if x >= 0 && x < w && y >= 0 && y < h {
				img.SetRGBA(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
			}
		}
	}
	return img
}
