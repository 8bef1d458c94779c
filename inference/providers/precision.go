// Package providers - Numeric precision selection for accelerated backends.
package providers

// Precision represents the numeric precision a backend executes with.
type Precision string

// Precision constants are the supported precisions for inference.
const (
	PrecisionINT8 Precision = "INT8"
	PrecisionFP16 Precision = "FP16"
	PrecisionFP32 Precision = "FP32"
	// PrecisionAccuracy keeps the model's own input precision (OpenVINO).
	PrecisionAccuracy Precision = "ACCURACY"
)
