package inference

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestNewStaticEngine_RequiresOutput(t *testing.T) {
	_, err := NewStaticEngine(nil, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelLoadFailed)
}

func TestStaticEngine_ReplaysOutput(t *testing.T) {
	out := tensor.New(tensor.WithShape(1, 6, 3), tensor.WithBacking(make([]float32, 18)))
	e, err := NewStaticEngine(out, 0)
	require.NoError(t, err)
	defer e.Close()

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < 3; i++ {
		got, err := e.Infer(context.Background(), img)
		require.NoError(t, err)
		assert.Same(t, out, got)
	}
}

func TestStaticEngine_ClosedFails(t *testing.T) {
	out := tensor.New(tensor.WithShape(1, 6, 3), tensor.WithBacking(make([]float32, 18)))
	e, err := NewStaticEngine(out, 0)
	require.NoError(t, err)
	require.NoError(t, e.Close())

	_, err = e.Infer(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)))
	assert.ErrorIs(t, err, ErrInferenceFailure)
}

func TestStaticEngine_CancellationDuringLatency(t *testing.T) {
	out := tensor.New(tensor.WithShape(1, 6, 3), tensor.WithBacking(make([]float32, 18)))
	e, err := NewStaticEngine(out, time.Minute)
	require.NoError(t, err)
	defer e.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = e.Infer(ctx, image.NewRGBA(image.Rect(0, 0, 4, 4)))
	assert.ErrorIs(t, err, ErrInferenceFailure)
}
