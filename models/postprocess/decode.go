package postprocess

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-detect/images"
)

// ErrShapeMismatch indicates the output tensor's dimensions disagree with the
// active model configuration. The cycle that produced the tensor is abandoned;
// decoding never silently truncates.
var ErrShapeMismatch = errors.New("output tensor shape mismatch")

// DecodeDetections turns one raw output tensor into candidate detections.
//
// The expected layout is [1, 4+C, N]: channels 0-3 hold the center-form box
// (cx, cy, w, h) and channels 4..4+C hold per-class scores, each spanning N
// candidate positions. For every position the class channel with the maximum
// score wins, ties resolving to the lowest channel index. Candidates scoring
// below the confidence threshold are dropped before they ever become
// detections; survivors are converted to corner form, still in the model's
// square input-pixel space.
//
// The scan walks the tensor's flat backing directly. With N in the thousands
// this runs once per frame on the hot path, so it must not allocate per
// candidate beyond the result slice itself.
//
// Arguments:
//   - out: The model output tensor of shape [1, 4+C, N] with float32 data.
//   - numClasses: The class count C of the active model.
//   - confidenceThreshold: Minimum winning score for a candidate to survive.
//
// Returns:
//   - []Detection: Decoded detections in candidate-index order.
//   - error: ErrShapeMismatch (wrapped) when the tensor does not conform.
func DecodeDetections(out *tensor.Dense, numClasses int, confidenceThreshold float32) ([]Detection, error) {
	if numClasses <= 0 {
		return nil, errors.Errorf("class count must be positive, got %d", numClasses)
	}
	if out == nil {
		return nil, errors.Wrap(ErrShapeMismatch, "nil output tensor")
	}

	shape := out.Shape()
	if len(shape) != 3 || shape[0] != 1 {
		return nil, errors.Wrapf(ErrShapeMismatch, "expected [1, 4+C, N], got %v", shape)
	}

	channels := shape[1]
	positions := shape[2]
	if want := 4 + numClasses; channels != want {
		return nil, errors.Wrapf(ErrShapeMismatch,
			"channel count %d does not match 4+%d classes", channels, numClasses)
	}

	data, ok := out.Data().([]float32)
	if !ok {
		return nil, errors.Wrapf(ErrShapeMismatch, "expected float32 data, got %T", out.Data())
	}
	if len(data) != channels*positions {
		return nil, errors.Wrapf(ErrShapeMismatch,
			"unexpected element count: got %d, want %d", len(data), channels*positions)
	}

	detections := make([]Detection, 0, positions)

	for i := 0; i < positions; i++ {
		// Channel c for position i lives at data[c*positions + i].
		classID := 0
		maxScore := data[4*positions+i]
		for c := 1; c < numClasses; c++ {
			if score := data[(4+c)*positions+i]; score > maxScore {
				maxScore = score
				classID = c
			}
		}

		if maxScore < confidenceThreshold {
			continue
		}

		cx := data[i]
		cy := data[positions+i]
		w := data[2*positions+i]
		h := data[3*positions+i]

		detections = append(detections, Detection{
			Box: images.Rect{
				X1: cx - w/2,
				Y1: cy - h/2,
				X2: cx + w/2,
				Y2: cy + h/2,
			},
			Score: maxScore,
			Class: classID,
		})
	}

	return detections, nil
}
