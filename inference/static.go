package inference

import (
	"context"
	"image"
	"time"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// StaticEngine replays a fixed output tensor for every frame.
//
// It exists for benchmarks and dry runs: the downstream decode/suppress/map
// path behaves exactly as with a live runtime, without needing model files or
// native libraries.
type StaticEngine struct {
	output  *tensor.Dense
	latency time.Duration
	closed  bool
}

// NewStaticEngine builds an engine that returns the given tensor on every
// Infer call, after an optional simulated latency.
func NewStaticEngine(output *tensor.Dense, latency time.Duration) (*StaticEngine, error) {
	if output == nil {
		return nil, errors.Wrap(ErrModelLoadFailed, "static engine needs an output tensor")
	}
	return &StaticEngine{output: output, latency: latency}, nil
}

// Infer returns the configured tensor, honoring context cancellation during
// the simulated latency window.
func (e *StaticEngine) Infer(ctx context.Context, _ image.Image) (*tensor.Dense, error) {
	if e.closed {
		return nil, errors.Wrap(ErrInferenceFailure, "engine is closed")
	}
	if e.latency > 0 {
		select {
		case <-time.After(e.latency):
		case <-ctx.Done():
			return nil, errors.Wrap(ErrInferenceFailure, ctx.Err().Error())
		}
	}
	return e.output, nil
}

// Close marks the engine unusable.
func (e *StaticEngine) Close() error {
	e.closed = true
	return nil
}
