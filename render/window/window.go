// Package window - On-screen rendering through OpenCV.
package window

import (
	"fmt"
	"image"
	"image/color"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-detect/capture"
	"github.com/nvr-ai/go-detect/render"
)

// Box colors cycle by class index so adjacent classes stay distinguishable.
var palette = []color.RGBA{
	{R: 255, A: 255},
	{G: 255, A: 255},
	{B: 255, A: 255},
	{R: 255, G: 255, A: 255},
	{G: 255, B: 255, A: 255},
	{R: 255, B: 255, A: 255},
}

// Window draws frames and their detections into an OpenCV window.
type Window struct {
	win    *gocv.Window
	width  int
	height int
	// status is written by whoever consumes pipeline events and read on the
	// draw goroutine.
	status atomic.String
}

// New creates a visible window with a render surface of the given size.
//
// Arguments:
//   - title: The window title.
//   - width: Surface width in pixels.
//   - height: Surface height in pixels.
//
// Returns:
//   - *Window: The window.
func New(title string, width, height int) *Window {
	return &Window{win: gocv.NewWindow(title), width: width, height: height}
}

// Size returns the surface dimensions detections are mapped into.
func (w *Window) Size() (int, int) {
	return w.width, w.height
}

// SetStatus sets the status line drawn in the top-left corner of every frame,
// e.g. the current frame rate. Safe to call from any goroutine.
func (w *Window) SetStatus(text string) {
	w.status.Store(text)
}

// Draw paints the frame, its detection boxes and labels, then pumps the
// OpenCV event loop.
func (w *Window) Draw(frame capture.Frame, overlays []render.Overlay) error {
	mat, err := gocv.ImageToMatRGB(frame.Image)
	if err != nil {
		return errors.Wrap(err, "converting frame")
	}
	defer mat.Close()

	// OpenCV draws and displays in BGR order.
	gocv.CvtColor(mat, &mat, gocv.ColorRGBToBGR)

	if mat.Cols() != w.width || mat.Rows() != w.height {
		gocv.Resize(mat, &mat, image.Pt(w.width, w.height), 0, 0, gocv.InterpolationLinear)
	}

	for _, o := range overlays {
		rect := image.Rect(int(o.Box.X1), int(o.Box.Y1), int(o.Box.X2), int(o.Box.Y2))
		c := palette[o.Class%len(palette)]
		gocv.Rectangle(&mat, rect, c, 2)

		label := fmt.Sprintf("%s %.2f", o.Label, o.Score)
		origin := image.Pt(rect.Min.X, rect.Min.Y-5)
		// Keep labels of boxes near the top edge inside the frame.
		if origin.Y < 12 {
			origin.Y = rect.Min.Y + 14
		}
		gocv.PutText(&mat, label, origin, gocv.FontHersheyPlain, 1.2, c, 2)
	}

	if s := w.status.Load(); s != "" {
		white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
		gocv.PutText(&mat, s, image.Pt(10, 30), gocv.FontHersheyPlain, 1.2, white, 2)
	}

	w.win.IMShow(mat)
	w.win.WaitKey(1)
	return nil
}

// Close destroys the window.
func (w *Window) Close() error {
	return w.win.Close()
}
