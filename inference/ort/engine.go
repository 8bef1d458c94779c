// Package ort - Engine implementation on top of the native session.
package ort

import (
	"context"
	"image"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/inference/providers"
	"github.com/nvr-ai/go-detect/models"
)

// Engine runs detection models through onnxruntime.
//
// One Engine owns one loaded model and its preallocated native tensors. Calls
// are not internally synchronized; the frame scheduler guarantees at most one
// in-flight Infer per engine.
type Engine struct {
	model     models.Config
	session   *session
	channels  int
	positions int
	closed    bool
}

// Statically assert the interface is satisfied.
var _ inference.Engine = (*Engine)(nil)

// NewEngine loads the model, provisions the native session and runs the
// configured number of warmup passes so first-frame latency reflects steady
// state. Every failure wraps inference.ErrModelLoadFailed.
//
// Arguments:
//   - model: The model to load.
//   - provider: The execution provider configuration.
//
// Returns:
//   - *Engine: The ready engine.
//   - error: An error if loading or warmup fails.
func NewEngine(model models.Config, provider providers.Config) (*Engine, error) {
	if err := model.Validate(); err != nil {
		return nil, errors.Wrapf(inference.ErrModelLoadFailed, "invalid model config: %v", err)
	}
	if err := provider.Validate(); err != nil {
		return nil, errors.Wrapf(inference.ErrModelLoadFailed, "invalid provider config: %v", err)
	}

	sess, err := newSession(model, provider)
	if err != nil {
		return nil, errors.Wrapf(inference.ErrModelLoadFailed, "%v", err)
	}

	e := &Engine{
		model:     model,
		session:   sess,
		channels:  4 + model.NumClasses(),
		positions: model.OutputPositions(),
	}
	if err := e.warmup(model.WarmupRuns); err != nil {
		e.Close()
		return nil, errors.Wrapf(inference.ErrModelLoadFailed, "warmup: %v", err)
	}
	return e, nil
}

// warmup runs the session over the zero-filled input tensor. The first runs
// through a fresh session pay for lazy kernel selection and, on GPU
// providers, memory pool growth.
func (e *Engine) warmup(runs int) error {
	for i := 0; i < runs; i++ {
		if err := e.session.session.Run(); err != nil {
			return err
		}
	}
	return nil
}

// Infer executes one forward pass over the frame.
//
// The native run cannot be interrupted once started; cancellation is only
// observed before it begins. The returned tensor is copied out of the
// session-owned output buffer, so callers may hold it across later cycles.
//
// Arguments:
//   - ctx: The context for the inference.
//   - img: The captured frame.
//
// Returns:
//   - *tensor.Dense: The raw model output, shaped [1, 4+C, N].
//   - error: An error wrapping inference.ErrInferenceFailure if the run fails.
func (e *Engine) Infer(ctx context.Context, img image.Image) (*tensor.Dense, error) {
	if e.closed {
		return nil, errors.Wrap(inference.ErrInferenceFailure, "engine is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(inference.ErrInferenceFailure, err.Error())
	}

	if err := inference.PrepareInput(img, e.model.InputSize, e.session.input.GetData()); err != nil {
		return nil, errors.Wrapf(inference.ErrInferenceFailure, "preparing input: %v", err)
	}
	if err := e.session.session.Run(); err != nil {
		return nil, errors.Wrapf(inference.ErrInferenceFailure, "running session: %v", err)
	}

	// The session writes into the same output buffer on the next run.
	raw := e.session.output.GetData()
	out := make([]float32, len(raw))
	copy(out, raw)
	return tensor.New(
		tensor.WithShape(1, e.channels, e.positions),
		tensor.WithBacking(out),
	), nil
}

// Model returns the configuration the engine was loaded with.
func (e *Engine) Model() models.Config {
	return e.model
}

// Close releases the native session and tensors. Safe to call more than once;
// no Infer calls may be in flight.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	return e.session.Close()
}
