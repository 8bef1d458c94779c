package inference

import (
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// PrepareInput converts a captured frame into the CHW float32 layout detection
// models expect, writing into a caller-owned buffer.
//
// The frame is resized to inputSize x inputSize with Lanczos3 resampling, then
// split into planar red, green and blue channels normalized to [0, 1]. The
// destination must hold at least 3*inputSize*inputSize floats; engines pass
// their input tensor's backing slice so no per-frame buffer is allocated.
//
// Arguments:
//   - img: The image to prepare.
//   - inputSize: Side length of the square model input.
//   - dst: The destination buffer to populate.
//
// Returns:
//   - error: An error if the input preparation fails.
func PrepareInput(img image.Image, inputSize int, dst []float32) error {
	if inputSize <= 0 {
		return errors.Errorf("input size must be positive, got %d", inputSize)
	}
	channelSize := inputSize * inputSize
	if len(dst) < channelSize*3 {
		return errors.Errorf("destination buffer only holds %d floats, needs "+
			"%d (make sure it's the right shape!)", len(dst), channelSize*3)
	}
	red := dst[0:channelSize]
	green := dst[channelSize : channelSize*2]
	blue := dst[channelSize*2 : channelSize*3]

	// Resize the image using the Lanczos3 algorithm.
	img = resize.Resize(uint(inputSize), uint(inputSize), img, resize.Lanczos3)

	i := 0
	for y := 0; y < inputSize; y++ {
		for x := 0; x < inputSize; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			red[i] = float32(r>>8) / 255.0
			green[i] = float32(g>>8) / 255.0
			blue[i] = float32(b>>8) / 255.0
			i++
		}
	}
	return nil
}
