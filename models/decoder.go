// Package models - Family-keyed decoder construction.
package models

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-detect/models/postprocess"
)

// Decoder turns one raw engine output into scored detections, using the class
// count and confidence threshold of the configuration it was built for.
type Decoder interface {
	Decode(out *tensor.Dense) ([]postprocess.Detection, error)
}

// denseDecoder reads the single-tensor [1, 4+C, N] layout. Both supported
// families emit it; they differ only in the class table C indexes into.
type denseDecoder struct {
	numClasses          int
	confidenceThreshold float32
}

func (d denseDecoder) Decode(out *tensor.Dense) ([]postprocess.Detection, error) {
	return postprocess.DecodeDetections(out, d.numClasses, d.confidenceThreshold)
}

// NewDecoder builds the output decoder for a model configuration. Resolving
// the family here keeps an unservable configuration from ever starting a
// cycle.
//
// Arguments:
//   - cfg: The model configuration naming the family and thresholds.
//
// Returns:
//   - Decoder: The decoder for the family's output layout.
//   - error: An error when the family has no known layout or label set.
func NewDecoder(cfg Config) (Decoder, error) {
	switch cfg.Family {
	case FamilyYOLO, FamilyCOCO:
		numClasses := cfg.NumClasses()
		if numClasses <= 0 {
			return nil, errors.Errorf("family %q has no class table", cfg.Family)
		}
		return denseDecoder{
			numClasses:          numClasses,
			confidenceThreshold: cfg.ConfidenceThreshold,
		}, nil
	default:
		return nil, errors.Errorf("no decoder for model family %q", cfg.Family)
	}
}
