// Package images - Geometry primitives shared by the detection pipeline.
package images

import (
	"github.com/chewxy/math32"
)

// Rect is a lightweight bounding box in corner form.
//
// Coordinates are float32 because boxes flow out of model tensors and through
// coordinate-space scaling before anything rasterizes them. X2,Y2 are exclusive
// (like image.Rectangle).
type Rect struct {
	X1, Y1, X2, Y2 float32
}

// Width returns the horizontal extent of the rectangle.
func (r Rect) Width() float32 {
	return r.X2 - r.X1
}

// Height returns the vertical extent of the rectangle.
func (r Rect) Height() float32 {
	return r.Y2 - r.Y1
}

// Area returns the covered surface. Degenerate rectangles (zero or inverted
// extent on either axis) have area 0.
func (r Rect) Area() float32 {
	w := r.Width()
	h := r.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Scale multiplies both corners by per-axis factors and returns the result.
// It maps a box from one coordinate space to another, e.g. from the model's
// square input space to the render target's pixel space.
//
// Arguments:
//   - sx: The horizontal scale factor.
//   - sy: The vertical scale factor.
//
// Returns:
//   - Rect: The rectangle expressed in the destination space.
func (r Rect) Scale(sx, sy float32) Rect {
	return Rect{
		X1: r.X1 * sx,
		Y1: r.Y1 * sy,
		X2: r.X2 * sx,
		Y2: r.Y2 * sy,
	}
}

// CalculateIoU computes the Intersection over Union of two rectangles.
//
// IoU is the standard overlap metric in object detection:
//
//	IoU = Area of Intersection / Area of Union
//
//   - 1.0 means the rectangles are identical.
//   - 0.0 means they do not overlap at all.
//
// The intersection corners are the maximum of the two top-left corners and the
// minimum of the two bottom-right corners: the overlap cannot start before both
// rectangles have begun and must end as soon as the first one ends. If either
// intersection extent is zero or negative the rectangles are disjoint and the
// result is 0. The union comes from the principle of inclusion-exclusion,
//
//	Union(A, B) = Area(A) + Area(B) - Intersection(A, B)
//
// and a union of zero (two degenerate rectangles) also yields 0 rather than a
// division by zero.
//
// Arguments:
//   - r: The first rectangle.
//   - o: The other rectangle to compare against.
//
// Returns:
//   - float32: A value between 0.0 and 1.0 representing the IoU score.
func CalculateIoU(r, o Rect) float32 {
	ix1 := math32.Max(r.X1, o.X1)
	iy1 := math32.Max(r.Y1, o.Y1)
	ix2 := math32.Min(r.X2, o.X2)
	iy2 := math32.Min(r.Y2, o.Y2)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0.0
	}
	interArea := interW * interH

	unionArea := r.Area() + o.Area() - interArea
	if unionArea <= 0 {
		return 0.0
	}

	return interArea / unionArea
}
