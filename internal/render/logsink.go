package render

import (
	"log/slog"

	"github.com/ayusman/airmouse/internal/gesture"
	"gocv.io/x/gocv"
)

// LogSink reports drag transitions and warnings through slog.
// It is the only sink in headless mode.
type LogSink struct {
	logger      *slog.Logger
	lastWarning string
	handSeen    bool
}

// NewLogSink returns a sink writing to logger, or slog.Default when nil.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (l *LogSink) Present(_ *gocv.Mat, st Status) error {
	switch st.Event {
	case gesture.EventDragStart:
		l.logger.Info("started dragging", "session", st.Session, "frame", st.Frame, "distance", st.Distance, "x", st.Target.X, "y", st.Target.Y)
	case gesture.EventDragEnd:
		l.logger.Info("released drag", "session", st.Session, "frame", st.Frame, "distance", st.Distance)
	}

	if st.Hand != l.handSeen {
		l.handSeen = st.Hand
		l.logger.Debug("hand tracking changed", "session", st.Session, "frame", st.Frame, "hand", st.Hand)
	}

	if st.Warning != "" && st.Warning != l.lastWarning {
		l.logger.Warn("frame warning", "session", st.Session, "frame", st.Frame, "warning", st.Warning)
	}
	l.lastWarning = st.Warning
	return nil
}

func (l *LogSink) Close() error {
	return nil
}
