// Package models - Model metadata: families, identifiers and configurations.
package models

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detect/models/postprocess"
)

// Family is the architecture family of a model. The family determines the
// output tensor layout and the class label set.
type Family string

const (
	// FamilyYOLO covers the single-output YOLO generations (v8 and later)
	// that emit a [1, 4+C, N] tensor.
	FamilyYOLO Family = "yolo"
	// FamilyCOCO covers TF-style models indexed against the COCO label set
	// with a background class at index 0.
	FamilyCOCO Family = "coco"
)

// Name is the unique identifier of a model.
type Name string

const (
	// ModelNameYOLOv8n is the nano YOLOv8 variant.
	ModelNameYOLOv8n Name = "yolov8n"
	// ModelNameYOLOv8s is the small YOLOv8 variant.
	ModelNameYOLOv8s Name = "yolov8s"
	// ModelNameYOLOv8m is the medium YOLOv8 variant.
	ModelNameYOLOv8m Name = "yolov8m"
	// ModelNameYOLO11n is the nano YOLO11 variant.
	ModelNameYOLO11n Name = "yolo11n"
)

// Config carries everything needed to load a model and interpret its output.
type Config struct {
	// Model identifier, resolvable through the registry.
	Name Name `json:"name"   yaml:"name"`
	// Architecture family, selects output layout and label set.
	Family Family `json:"family" yaml:"family"`
	// Filesystem path of the ONNX graph.
	Path string `json:"path"   yaml:"path"`
	// Side length of the square input the model expects (e.g. 640).
	InputSize int `json:"inputSize" yaml:"inputSize"`
	// Candidates scoring below this never become detections.
	ConfidenceThreshold float32 `json:"confidenceThreshold" yaml:"confidenceThreshold"`
	// Suppression parameters applied after decoding.
	NMS postprocess.NMSConfig `json:"nms" yaml:"nms"`
	// Number of throwaway inferences to run at load time so first-frame
	// latency is not paid mid-stream.
	WarmupRuns int `json:"warmupRuns" yaml:"warmupRuns"`
}

// Validate checks the configuration for values the pipeline cannot run with.
//
// Returns:
//   - error: A description of the first offending field, or nil.
func (c Config) Validate() error {
	if c.Path == "" {
		return errors.New("model path is required")
	}
	if c.InputSize <= 0 {
		return errors.Errorf("input size must be positive, got %d", c.InputSize)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return errors.Errorf("confidence threshold must be in [0,1], got %f", c.ConfidenceThreshold)
	}
	if c.NMS.IoUThreshold <= 0 || c.NMS.IoUThreshold > 1 {
		return errors.Errorf("IoU threshold must be in (0,1], got %f", c.NMS.IoUThreshold)
	}
	if c.WarmupRuns < 0 {
		return errors.Errorf("warmup runs must not be negative, got %d", c.WarmupRuns)
	}
	return nil
}

// NumClasses returns the class count C of the model's label set. The decoder
// uses it to validate the channel dimension of the output tensor.
func (c Config) NumClasses() int {
	set, ok := DefaultClassManager().GetSet(c.Family)
	if !ok {
		return 0
	}
	return len(set.Classes)
}

// OutputPositions returns the number of candidate positions N the model emits
// per frame. YOLO-family heads predict one candidate per grid cell across the
// stride-8, stride-16 and stride-32 feature maps, so a 640 input yields 8400.
func (c Config) OutputPositions() int {
	n := 0
	for _, stride := range []int{8, 16, 32} {
		side := c.InputSize / stride
		n += side * side
	}
	return n
}
