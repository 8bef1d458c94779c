package ort

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/inference/providers"
	"github.com/nvr-ai/go-detect/models"
)

// None of these cases reach the native runtime: builder validation and the
// shared library check happen first, so they run without onnxruntime
// installed.

func TestBuilder_RequiresModel(t *testing.T) {
	_, err := NewBuilder().Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, inference.ErrModelLoadFailed)
}

func TestBuilder_InvalidModelSticks(t *testing.T) {
	b := NewBuilder().WithModel(models.Config{})
	assert.True(t, b.HasError())

	_, err := b.Build()
	assert.ErrorIs(t, err, inference.ErrModelLoadFailed)
}

func TestBuilder_UnknownPresetSticks(t *testing.T) {
	b := NewBuilder().WithPreset("yolov99", "model.onnx")
	assert.True(t, b.HasError())

	_, err := b.Build()
	assert.ErrorIs(t, err, inference.ErrModelLoadFailed)
}

func TestBuilder_InvalidProviderSticks(t *testing.T) {
	b := NewBuilder().
		WithPreset(models.ModelNameYOLOv8n, "model.onnx").
		WithProvider(providers.Config{Device: "tpu"})
	assert.True(t, b.HasError())

	_, err := b.Build()
	assert.ErrorIs(t, err, inference.ErrModelLoadFailed)
}

func TestBuilder_FirstErrorWins(t *testing.T) {
	b := NewBuilder().
		WithPreset("yolov99", "model.onnx").
		WithPreset(models.ModelNameYOLOv8n, "model.onnx")
	require.True(t, b.HasError())

	_, err := b.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "yolov99")
}

func TestBuild_MissingLibrary(t *testing.T) {
	cfg, err := models.NewConfig(models.ModelNameYOLOv8n, "model.onnx")
	require.NoError(t, err)

	_, err = NewBuilder().
		WithModel(cfg).
		WithProvider(providers.Config{
			LibraryPath: filepath.Join(t.TempDir(), "missing.so"),
		}).
		Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, inference.ErrModelLoadFailed)
	assert.Contains(t, err.Error(), "not found")
}
