// Package webcam - Camera and video file capture through OpenCV.
//
// Kept separate from the capture package so the native OpenCV dependency only
// lands in binaries that actually open devices.
package webcam

import (
	"context"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-detect/capture"
	"github.com/nvr-ai/go-detect/images"
)

// Device streams frames from a camera device or a video file.
type Device struct {
	// OpenCV accepts either a device index or a file path here.
	input      interface{}
	resolution *images.Resolution
	cam        *gocv.VideoCapture
	mat        gocv.Mat
	seq        uint64
}

// NewDevice creates a source reading from the camera at the given index,
// negotiated to the given capture resolution.
//
// Arguments:
//   - deviceID: The OpenCV device index (0 is the default camera).
//   - resolution: The capture resolution to request from the driver.
//
// Returns:
//   - *Device: The source.
func NewDevice(deviceID int, resolution images.Resolution) *Device {
	return &Device{input: deviceID, resolution: &resolution}
}

// NewFile creates a source reading a video file at its native resolution.
//
// Arguments:
//   - path: The video file path.
//
// Returns:
//   - *Device: The source.
func NewFile(path string) *Device {
	return &Device{input: path}
}

// Acquire opens the device or file. Failures wrap
// capture.ErrResourceUnavailable.
func (d *Device) Acquire(_ context.Context) error {
	cam, err := gocv.OpenVideoCapture(d.input)
	if err != nil {
		return errors.Wrapf(capture.ErrResourceUnavailable, "opening %v: %v", d.input, err)
	}
	if d.resolution != nil {
		// Drivers may pick the nearest supported mode; frames are resized to
		// the model input later regardless.
		cam.Set(gocv.VideoCaptureFrameWidth, float64(d.resolution.Pixels.Width))
		cam.Set(gocv.VideoCaptureFrameHeight, float64(d.resolution.Pixels.Height))
	}
	d.cam = cam
	d.mat = gocv.NewMat()
	return nil
}

// Read grabs the next frame. A closed device or exhausted file returns
// capture.ErrStreamEnded.
func (d *Device) Read(ctx context.Context) (capture.Frame, error) {
	if d.cam == nil {
		return capture.Frame{}, errors.Wrap(capture.ErrResourceUnavailable, "device not acquired")
	}

	for {
		if err := ctx.Err(); err != nil {
			return capture.Frame{}, err
		}
		if ok := d.cam.Read(&d.mat); !ok {
			return capture.Frame{}, capture.ErrStreamEnded
		}
		// Cameras occasionally deliver empty grabs while warming up.
		if d.mat.Empty() {
			continue
		}

		img, err := d.mat.ToImage()
		if err != nil {
			return capture.Frame{}, errors.Wrap(err, "converting frame")
		}
		d.seq++
		return capture.NewFrame(img, d.seq), nil
	}
}

// Release closes the device and frees the working buffer. Safe to call more
// than once.
func (d *Device) Release() error {
	if d.cam == nil {
		return nil
	}
	err := d.cam.Close()
	d.cam = nil
	if mErr := d.mat.Close(); err == nil {
		err = mErr
	}
	return err
}
