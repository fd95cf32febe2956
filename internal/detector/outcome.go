package detector

import "gocv.io/x/gocv"

// OutcomeKind classifies the result of running detection on one frame.
type OutcomeKind int

const (
	// NoHand means detection ran and found nothing.
	NoHand OutcomeKind = iota
	// Detected means at least one hand was found.
	Detected
	// Failed means detection itself errored; the frame should be skipped.
	Failed
)

func (k OutcomeKind) String() string {
	switch k {
	case Detected:
		return "detected"
	case Failed:
		return "failed"
	default:
		return "no-hand"
	}
}

// Outcome is the per-frame detection result.
type Outcome struct {
	Kind  OutcomeKind
	Hands []HandLandmarks
	Err   error
}

// Hand returns the first detected hand, or nil when none was detected.
func (o Outcome) Hand() *HandLandmarks {
	if o.Kind != Detected || len(o.Hands) == 0 {
		return nil
	}
	return &o.Hands[0]
}

// Classify runs d on frame and folds the result into an Outcome.
// A panic inside the detector is reported as Failed.
func Classify(d Detector, frame *gocv.Mat) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Kind: Failed, Err: &PanicError{Value: r}}
		}
	}()

	hands, err := d.Detect(frame)
	switch {
	case err != nil:
		return Outcome{Kind: Failed, Err: err}
	case len(hands) == 0:
		return Outcome{Kind: NoHand}
	default:
		return Outcome{Kind: Detected, Hands: hands}
	}
}
