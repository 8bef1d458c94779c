package postprocess

import (
	"github.com/pkg/errors"
)

// Mapper rescales detection boxes from the model's square input space to the
// render target's pixel space.
//
// Suppression is scale-invariant as long as every box of a frame shares the
// same scale pair, so the pipeline maps exactly once, after suppression.
type Mapper struct {
	ScaleX float32
	ScaleY float32
}

// NewMapper derives the per-axis scale factors for a model input side length
// and a render target.
//
// Arguments:
//   - inputSize: Side length S of the square model input (e.g. 640).
//   - renderWidth: Width of the render target in pixels.
//   - renderHeight: Height of the render target in pixels.
//
// Returns:
//   - Mapper: ScaleX = renderWidth/S, ScaleY = renderHeight/S.
//   - error: An error when any dimension is not positive.
func NewMapper(inputSize, renderWidth, renderHeight int) (Mapper, error) {
	if inputSize <= 0 {
		return Mapper{}, errors.Errorf("input size must be positive, got %d", inputSize)
	}
	if renderWidth <= 0 || renderHeight <= 0 {
		return Mapper{}, errors.Errorf("render dimensions must be positive, got %dx%d",
			renderWidth, renderHeight)
	}

	return Mapper{
		ScaleX: float32(renderWidth) / float32(inputSize),
		ScaleY: float32(renderHeight) / float32(inputSize),
	}, nil
}

// Apply maps the boxes of all detections into render space, in place, and
// returns the same slice.
func (m Mapper) Apply(detections []Detection) []Detection {
	for i := range detections {
		detections[i].Box = detections[i].Box.Scale(m.ScaleX, m.ScaleY)
	}
	return detections
}

// Inverse returns the mapper going the opposite direction. Valid because
// NewMapper only produces strictly positive scale factors.
func (m Mapper) Inverse() Mapper {
	return Mapper{
		ScaleX: 1 / m.ScaleX,
		ScaleY: 1 / m.ScaleY,
	}
}
