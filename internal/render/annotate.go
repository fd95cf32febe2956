package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/ayusman/airmouse/internal/detector"
	"github.com/ayusman/airmouse/internal/gesture"
	"gocv.io/x/gocv"
)

var (
	colorSkeleton = color.RGBA{R: 0, G: 200, B: 0, A: 0}
	colorJoint    = color.RGBA{R: 255, G: 255, B: 255, A: 0}
	colorTip      = color.RGBA{R: 255, G: 255, B: 0, A: 0}
	colorDrag     = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	colorText     = color.RGBA{R: 255, G: 255, B: 255, A: 0}
	colorWarn     = color.RGBA{R: 255, G: 80, B: 80, A: 0}
)

const (
	tipRadius     = 10
	dragRadius    = 20
	markerOutline = 2
)

// Annotate draws the hand skeleton, fingertip markers and a status line onto frame.
func Annotate(frame *gocv.Mat, st Status) {
	if frame == nil || frame.Empty() {
		return
	}

	if st.Landmarks != nil {
		drawSkeleton(frame, st.Landmarks)
	}

	if st.Hand {
		gocv.Circle(frame, st.Index, tipRadius, colorTip, markerOutline)
		gocv.Circle(frame, st.Thumb, tipRadius, colorTip, markerOutline)
		if st.Event == gesture.EventDragStart {
			gocv.Circle(frame, st.Thumb, dragRadius, colorDrag, markerOutline)
		}
	}

	gocv.PutText(frame, StatusLine(st), image.Pt(10, 24), gocv.FontHersheySimplex, 0.6, colorText, 2)
	if st.Warning != "" {
		gocv.PutText(frame, st.Warning, image.Pt(10, frame.Rows()-12), gocv.FontHersheySimplex, 0.5, colorWarn, 1)
	}
}

// StatusLine is the one-line summary shown on the preview.
func StatusLine(st Status) string {
	if !st.Hand {
		return fmt.Sprintf("No hand | %s", st.State)
	}
	return fmt.Sprintf("Distance: %.0f | %s", st.Distance, st.State)
}

func drawSkeleton(frame *gocv.Mat, hand *detector.HandLandmarks) {
	w, h := frame.Cols(), frame.Rows()

	var px [detector.NumLandmarks]image.Point
	for i, p := range hand.Points {
		px[i] = p.Pixel(w, h)
	}

	for _, c := range detector.Connections {
		gocv.Line(frame, px[c[0]], px[c[1]], colorSkeleton, 2)
	}
	for _, p := range px {
		gocv.Circle(frame, p, 3, colorJoint, -1)
	}
}
