// Package postprocess - Decoding and suppression of raw detection output.
package postprocess

import "github.com/nvr-ai/go-detect/images"

// Detection represents a single decoded detection.
type Detection struct {
	// The bounding box of the detection.
	Box images.Rect
	// The confidence score of the detection.
	Score float32
	// The predicted class index of the detection.
	Class int
}
