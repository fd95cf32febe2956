// Package gesture turns hand landmarks into pointer targets and drag transitions.
package gesture

import (
	"image"
	"math"

	"github.com/ayusman/airmouse/internal/detector"
)

// FrameGeometry is the pixel size of a captured frame. It is read from every
// frame since a source may change resolution mid-session.
type FrameGeometry struct {
	Width  int
	Height int
}

// ScreenGeometry is the pixel size of the display the pointer moves on.
type ScreenGeometry struct {
	Width  int
	Height int
}

// Point is a screen position in pixels.
type Point struct {
	X float64
	Y float64
}

// Pixel truncates p to integer screen pixels.
func (p Point) Pixel() image.Point {
	return image.Point{X: int(p.X), Y: int(p.Y)}
}

// MapToScreen rescales a normalized landmark to screen pixels, clamping each
// axis to [0, size] so tracking jitter past the frame edge stays on screen.
//
// Going through frame pixels (x*fw, then sw/fw*px) cancels out to x*sw, so the
// frame size is not needed here.
func MapToScreen(p detector.Point3D, screen ScreenGeometry) Point {
	sw := float64(screen.Width)
	sh := float64(screen.Height)
	return Point{
		X: clamp(p.X*sw, 0, sw),
		Y: clamp(p.Y*sh, 0, sh),
	}
}

// FramePixel returns the landmark position in frame pixels, used for drawing
// and for the pinch metric.
func FramePixel(p detector.Point3D, frame FrameGeometry) image.Point {
	return p.Pixel(frame.Width, frame.Height)
}

// PinchDistance is the vertical pixel gap between index fingertip and thumb tip.
func PinchDistance(index, thumb detector.Point3D, frame FrameGeometry) float64 {
	iy := FramePixel(index, frame).Y
	ty := FramePixel(thumb, frame).Y
	return math.Abs(float64(iy - ty))
}

// EuclideanDistance is the full-plane pixel gap between index fingertip and thumb tip.
// It is not used for drag decisions: unlike PinchDistance it grows when the
// hand is turned so the fingers separate horizontally.
func EuclideanDistance(index, thumb detector.Point3D, frame FrameGeometry) float64 {
	i := FramePixel(index, frame)
	t := FramePixel(thumb, frame)
	return math.Hypot(float64(i.X-t.X), float64(i.Y-t.Y))
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
