package render

import (
	"fmt"
	"log/slog"

	vidio "github.com/AlexEidt/Vidio"
	"gocv.io/x/gocv"
)

// frameWriter is the part of vidio.VideoWriter the video sink uses.
type frameWriter interface {
	Write(frame []byte) error
	Close() error
}

type openWriterFunc func(path string, width, height int, fps float64) (frameWriter, error)

func openVidio(path string, width, height int, fps float64) (frameWriter, error) {
	w, err := vidio.NewVideoWriter(path, width, height, &vidio.Options{FPS: fps})
	if err != nil {
		return nil, err
	}
	return vidioWriter{w}, nil
}

// vidioWriter adapts vidio.VideoWriter, whose Close returns nothing, to frameWriter.
type vidioWriter struct{ *vidio.VideoWriter }

func (w vidioWriter) Close() error {
	w.VideoWriter.Close()
	return nil
}

// VideoSink records the annotated session to a video file via ffmpeg.
// The writer is opened on the first frame, once the frame size is known.
type VideoSink struct {
	path   string
	fps    float64
	open   openWriterFunc
	writer frameWriter
	width  int
	height int
	rgba   gocv.Mat
	frames int
}

// NewVideoSink returns a sink that writes to path at fps frames per second.
func NewVideoSink(path string, fps float64) *VideoSink {
	return &VideoSink{
		path: path,
		fps:  fps,
		open: openVidio,
		rgba: gocv.NewMat(),
	}
}

func (v *VideoSink) Present(frame *gocv.Mat, _ Status) error {
	if frame == nil || frame.Empty() {
		return nil
	}

	if v.writer == nil {
		w, err := v.open(v.path, frame.Cols(), frame.Rows(), v.fps)
		if err != nil {
			return fmt.Errorf("open recording %s: %w", v.path, err)
		}
		v.writer = w
		v.width, v.height = frame.Cols(), frame.Rows()
		slog.Info("recording started", "path", v.path, "width", v.width, "height", v.height, "fps", v.fps)
	}

	if frame.Cols() != v.width || frame.Rows() != v.height {
		return fmt.Errorf("frame size %dx%d differs from recording size %dx%d", frame.Cols(), frame.Rows(), v.width, v.height)
	}

	gocv.CvtColor(*frame, &v.rgba, gocv.ColorBGRToRGBA)
	if err := v.writer.Write(v.rgba.ToBytes()); err != nil {
		return fmt.Errorf("write recording: %w", err)
	}
	v.frames++
	return nil
}

// Frames returns how many frames were written.
func (v *VideoSink) Frames() int {
	return v.frames
}

func (v *VideoSink) Close() error {
	defer v.rgba.Close()
	if v.writer == nil {
		return nil
	}
	slog.Info("recording finished", "path", v.path, "frames", v.frames)
	return v.writer.Close()
}
