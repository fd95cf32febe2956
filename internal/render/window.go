package render

import "gocv.io/x/gocv"

const keyEsc = 27

// WindowSink shows frames in a HighGUI window. ESC ends the session.
type WindowSink struct {
	window *gocv.Window
}

// NewWindowSink opens a window titled title.
func NewWindowSink(title string) *WindowSink {
	return &WindowSink{window: gocv.NewWindow(title)}
}

func (w *WindowSink) Present(frame *gocv.Mat, st Status) error {
	if frame == nil || frame.Empty() {
		return nil
	}
	w.window.IMShow(*frame)
	if w.window.WaitKey(1) == keyEsc {
		return ErrStopRequested
	}
	return nil
}

func (w *WindowSink) Close() error {
	return w.window.Close()
}
