// Package ort - Fluent engine construction.
package ort

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/inference/providers"
	"github.com/nvr-ai/go-detect/models"
)

// Builder assembles an Engine with a fluent API. The first error sticks and
// short-circuits every later step, so call sites only check once at Build.
type Builder struct {
	model    models.Config
	provider providers.Config
	hasModel bool
	err      error
}

// NewBuilder creates a new engine builder.
//
// Returns:
//   - *Builder: The engine builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithModel sets the model configuration for the engine.
//
// Arguments:
//   - cfg: The model configuration.
//
// Returns:
//   - *Builder: The engine builder.
func (b *Builder) WithModel(cfg models.Config) *Builder {
	if b.HasError() {
		return b
	}
	if err := cfg.Validate(); err != nil {
		b.err = err
		return b
	}
	b.model = cfg
	b.hasModel = true
	return b
}

// WithPreset resolves a registered model name into a full configuration.
//
// Arguments:
//   - name: The registered model name.
//   - path: The filesystem path of the ONNX graph.
//
// Returns:
//   - *Builder: The engine builder.
func (b *Builder) WithPreset(name models.Name, path string) *Builder {
	if b.HasError() {
		return b
	}
	cfg, err := models.NewConfig(name, path)
	if err != nil {
		b.err = err
		return b
	}
	b.model = cfg
	b.hasModel = true
	return b
}

// WithProvider sets the execution provider configuration for the engine.
//
// Arguments:
//   - cfg: The provider configuration. The zero value selects the CPU.
//
// Returns:
//   - *Builder: The engine builder.
func (b *Builder) WithProvider(cfg providers.Config) *Builder {
	if b.HasError() {
		return b
	}
	if err := cfg.Validate(); err != nil {
		b.err = err
		return b
	}
	b.provider = cfg
	return b
}

// HasError checks if the engine builder has errors.
//
// Returns:
//   - bool: True if there are errors, false otherwise.
func (b *Builder) HasError() bool {
	return b.err != nil
}

// Build builds the engine.
//
// Returns:
//   - *Engine: The engine.
//   - error: The error if any, wrapping inference.ErrModelLoadFailed.
func (b *Builder) Build() (*Engine, error) {
	if b.HasError() {
		return nil, errors.Wrapf(inference.ErrModelLoadFailed, "%v", b.err)
	}
	if !b.hasModel {
		return nil, errors.Wrap(inference.ErrModelLoadFailed, "model not configured")
	}
	return NewEngine(b.model, b.provider)
}

// MustBuild builds the engine and panics if there is an error.
//
// Returns:
//   - *Engine: The engine.
func (b *Builder) MustBuild() *Engine {
	e, err := b.Build()
	if err != nil {
		panic(err)
	}
	return e
}
