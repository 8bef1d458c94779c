// Package inference - Engine-facing contracts of the detection pipeline.
//
// The package is deliberately free of native bindings: it defines what an
// inference engine looks like to the rest of the system and the pure helpers
// every engine needs. Concrete runtimes live in subpackages (inference/ort).
package inference

import (
	"context"
	"image"

	"gorgonia.org/tensor"
)

// Engine runs one forward pass per captured frame.
//
// Implementations own preprocessing: callers hand over the frame as captured
// and receive the raw output tensor, shaped [1, 4+C, N] for detection models.
type Engine interface {
	// Infer executes a single inference. It must be safe to call from one
	// goroutine at a time; the scheduler guarantees no overlapping calls.
	Infer(ctx context.Context, img image.Image) (*tensor.Dense, error)

	// Close releases the engine's native resources. No Infer calls may be
	// in flight or issued afterwards.
	Close() error
}

// EngineType is the type of the engine.
type EngineType string

const (
	// EngineONNX is the onnxruntime-backed engine.
	EngineONNX EngineType = "onnx"
	// EngineStatic replays a fixed tensor, for benchmarks and dry runs.
	EngineStatic EngineType = "static"
)

// Engines is a list of all supported engine types.
var Engines = []EngineType{EngineONNX, EngineStatic}
