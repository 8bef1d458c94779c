package inference

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// uniformImage returns a w x h image filled with a single color.
func uniformImage(w, h int, c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestPrepareInput_PlanarLayoutAndNormalization(t *testing.T) {
	const inputSize = 8
	channelSize := inputSize * inputSize

	// Distinct channel values so a layout mistake cannot cancel out. Resizing
	// a uniform image yields a uniform image, whatever the filter does.
	img := uniformImage(32, 24, color.RGBA{R: 200, G: 100, B: 50, A: 255})
	dst := make([]float32, 3*channelSize)

	require.NoError(t, PrepareInput(img, inputSize, dst))

	for i := 0; i < channelSize; i++ {
		assert.InDelta(t, 200.0/255.0, dst[i], 2.0/255.0, "red plane at %d", i)
		assert.InDelta(t, 100.0/255.0, dst[channelSize+i], 2.0/255.0, "green plane at %d", i)
		assert.InDelta(t, 50.0/255.0, dst[2*channelSize+i], 2.0/255.0, "blue plane at %d", i)
	}
}

func TestPrepareInput_ValuesStayInRange(t *testing.T) {
	const inputSize = 8

	// A hard edge makes Lanczos ring; the output must still be usable as
	// normalized tensor data.
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			if x < 16 {
				img.SetRGBA(x, y, color.RGBA{R: 255, A: 255})
			} else {
				img.SetRGBA(x, y, color.RGBA{B: 255, A: 255})
			}
		}
	}
	dst := make([]float32, 3*inputSize*inputSize)

	require.NoError(t, PrepareInput(img, inputSize, dst))

	for i, v := range dst {
		assert.GreaterOrEqual(t, v, float32(0), "value at %d", i)
		assert.LessOrEqual(t, v, float32(1), "value at %d", i)
	}
}

func TestPrepareInput_RejectsShortBuffer(t *testing.T) {
	img := uniformImage(4, 4, color.RGBA{A: 255})

	err := PrepareInput(img, 8, make([]float32, 3*8*8-1))
	assert.Error(t, err)
}

func TestPrepareInput_RejectsNonPositiveSize(t *testing.T) {
	img := uniformImage(4, 4, color.RGBA{A: 255})

	assert.Error(t, PrepareInput(img, 0, make([]float32, 16)))
	assert.Error(t, PrepareInput(img, -640, make([]float32, 16)))
}

func TestPrepareInput_ExactBufferSucceeds(t *testing.T) {
	img := uniformImage(16, 16, color.RGBA{R: 128, G: 128, B: 128, A: 255})

	err := PrepareInput(img, 4, make([]float32, 3*4*4))
	assert.NoError(t, err)
}
